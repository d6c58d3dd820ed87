package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// UserStatusStore returns stored per-user access flags.
type UserStatusStore interface {
	GetAccessStatus(ctx context.Context, userID int64) (domain.AccessStatus, error)
}

// MemberLookup fetches a user's chat membership. *tele.Bot satisfies it.
type MemberLookup interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Directory implements DecisionService from configured admins, the users
// table and live Telegram membership queries. Membership is never cached.
type Directory struct {
	admins  map[int64]struct{}
	users   UserStatusStore
	members MemberLookup
	logger  *slog.Logger
}

// NewDirectory creates a decision service. members may be nil when no bot
// token is configured; membership checks then fail.
func NewDirectory(adminIDs []int64, users UserStatusStore, members MemberLookup, logger *slog.Logger) *Directory {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Directory{
		admins:  admins,
		users:   users,
		members: members,
		logger:  logger,
	}
}

// IsAdmin reports whether userID is a configured admin.
func (d *Directory) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	_, ok := d.admins[userID]
	return ok, nil
}

// IsBanned reports whether the user is banned.
func (d *Directory) IsBanned(ctx context.Context, userID int64) (bool, error) {
	status, err := d.users.GetAccessStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return status == domain.AccessStatusBanned, nil
}

// IsWhitelisted reports whether the user is whitelisted.
func (d *Directory) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	status, err := d.users.GetAccessStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return status == domain.AccessStatusWhitelisted, nil
}

// IsMemberOfAny reports whether the user belongs to at least one channel.
// A confirmed membership wins over errors from other channels.
func (d *Directory) IsMemberOfAny(ctx context.Context, userID int64, channelIDs []int64) (bool, error) {
	if d.members == nil {
		return false, errors.New("membership lookup not configured")
	}

	var errs []error
	for _, channelID := range channelIDs {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		member, err := d.members.ChatMemberOf(tele.ChatID(channelID), &tele.User{ID: userID})
		if err != nil {
			if isNotParticipant(err) {
				continue
			}
			d.logger.Warn("membership check failed", "user_id", userID, "channel_id", channelID, "error", err)
			errs = append(errs, fmt.Errorf("channel %d: %w", channelID, err))
			continue
		}
		if isMemberRole(member.Role) {
			return true, nil
		}
	}

	return false, errors.Join(errs...)
}

func isMemberRole(role tele.MemberStatus) bool {
	switch role {
	case tele.Creator, tele.Administrator, tele.Member, tele.Restricted:
		return true
	}
	return false
}

func isNotParticipant(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user not found") || strings.Contains(msg, "participant")
}
