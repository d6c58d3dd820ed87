package domain

import (
	"fmt"
	"strings"
)

// Quality is the requested quality tier of a download.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
	QualityAudio  Quality = "audio"
	QualityCustom Quality = "custom"
)

// Valid reports whether q is one of the known quality tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityHigh, QualityMedium, QualityLow, QualityAudio, QualityCustom:
		return true
	}
	return false
}

// MaxHeight returns the video height cap for the tier, or 0 for no cap.
func (q Quality) MaxHeight() int {
	switch q {
	case QualityMedium:
		return 720
	case QualityLow:
		return 480
	}
	return 0
}

// ParseQuality parses a user supplied quality name.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", fmt.Errorf("%w: unknown quality %q", ErrInvalidRequest, s)
	}
	return q, nil
}

// OutputFormat is the container the user wants to receive.
type OutputFormat string

const (
	FormatVideo    OutputFormat = "video"
	FormatAudio    OutputFormat = "audio"
	FormatDocument OutputFormat = "document"
)

// Valid reports whether f is a known output format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatVideo, FormatAudio, FormatDocument:
		return true
	}
	return false
}

// ParseOutputFormat parses a user supplied output format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, s)
	}
	return f, nil
}

// DownloadRequest is a single user request to fetch media.
// Values are passed by copy and never mutated after construction.
type DownloadRequest struct {
	SourceURL    string
	Quality      Quality
	Format       OutputFormat
	UserID       int64
	PlatformHint PlatformID

	// FormatID pins an exact upstream format. Only used with QualityCustom.
	FormatID string

	// Force skips the cache and replaces any stored entry.
	Force bool
}

// WithQuality returns a copy of the request with the quality replaced.
func (r DownloadRequest) WithQuality(q Quality) DownloadRequest {
	r.Quality = q
	return r
}

// Validate checks the request fields that do not depend on the URL shape.
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.SourceURL) == "" {
		return fmt.Errorf("%w: source url is empty", ErrInvalidRequest)
	}
	if r.Quality != "" && !r.Quality.Valid() {
		return fmt.Errorf("%w: unknown quality %q", ErrInvalidRequest, r.Quality)
	}
	if r.Format != "" && !r.Format.Valid() {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, r.Format)
	}
	if r.Quality == QualityCustom && r.FormatID == "" {
		return fmt.Errorf("%w: custom quality needs a format id", ErrInvalidRequest)
	}
	return nil
}

// WantsAudio reports whether the caller expects an audio-only artifact.
func (r DownloadRequest) WantsAudio() bool {
	return r.Format == FormatAudio || r.Quality == QualityAudio
}
