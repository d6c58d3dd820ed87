package artifact

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Sender is the part of *tele.Bot the store uses.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramStore uploads artifacts to a storage chat and uses the returned
// file_id as the reference.
type TelegramStore struct {
	sender Sender
	chat   tele.ChatID
	logger *slog.Logger
}

// NewTelegramStore creates a store that posts into chatID.
func NewTelegramStore(sender Sender, chatID int64, logger *slog.Logger) *TelegramStore {
	return &TelegramStore{
		sender: sender,
		chat:   tele.ChatID(chatID),
		logger: logger,
	}
}

// Upload sends the file to the storage chat.
func (s *TelegramStore) Upload(ctx context.Context, a Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file := tele.FromDisk(a.Path)
	var what interface{}
	switch a.Kind {
	case domain.ArtifactVideo:
		what = &tele.Video{File: file, FileName: a.Name(), Caption: a.Title, Streaming: true}
	case domain.ArtifactAudio:
		what = &tele.Audio{File: file, FileName: a.Name(), Title: a.Title, Caption: a.Title}
	default:
		what = &tele.Document{File: file, FileName: a.Name(), Caption: a.Title}
	}

	msg, err := s.sender.Send(s.chat, what)
	if err != nil {
		return "", fmt.Errorf("telegram upload: %w", err)
	}

	ref := fileIDOf(msg)
	if ref == "" {
		return "", ErrEmptyReference
	}

	s.logger.Debug("artifact uploaded to telegram",
		"fingerprint", a.Fingerprint.Short(),
		"kind", a.Kind,
		"size_bytes", a.Size,
	)
	return ref, nil
}

// fileIDOf returns the file_id Telegram assigned. Telegram may store a
// video as an animation or document, so every media field is checked.
func fileIDOf(msg *tele.Message) string {
	if msg == nil {
		return ""
	}
	switch {
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	case msg.Animation != nil:
		return msg.Animation.FileID
	case msg.Voice != nil:
		return msg.Voice.FileID
	}
	return ""
}
