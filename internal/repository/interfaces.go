package repository

import (
	"context"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// JobRepository manages the async download queue.
type JobRepository interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next pending job (FIFO).
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// ListPending returns all queued/retrying jobs.
	ListPending(ctx context.Context) ([]*domain.Job, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

// UserRepository stores per-user access flags.
type UserRepository interface {
	// GetAccessStatus returns the stored status; unknown users are normal.
	GetAccessStatus(ctx context.Context, userID int64) (domain.AccessStatus, error)

	// SetAccessStatus creates or updates the user row.
	SetAccessStatus(ctx context.Context, userID int64, status domain.AccessStatus) error
}

// ChannelRepository stores the required channels.
type ChannelRepository interface {
	// ListActive returns channels users must be a member of.
	ListActive(ctx context.Context) ([]domain.Channel, error)

	// List returns all channels.
	List(ctx context.Context) ([]domain.Channel, error)

	// Add creates or replaces a channel.
	Add(ctx context.Context, ch domain.Channel) error

	// SetActive toggles whether the channel is required.
	SetActive(ctx context.Context, channelID int64, active bool) error

	// Remove deletes a channel.
	Remove(ctx context.Context, channelID int64) error
}

// PreferenceRepository stores per-user download settings.
type PreferenceRepository interface {
	// GetPreference returns the quality for the platform, falling back to
	// the user's global setting and then to domain.DefaultQuality.
	GetPreference(ctx context.Context, userID int64, platform domain.PlatformID) (domain.Quality, error)

	// Get returns the effective settings for the platform.
	Get(ctx context.Context, userID int64, platform domain.PlatformID) (*domain.UserSettings, error)

	// Set stores settings. An empty platform sets the global default.
	Set(ctx context.Context, settings domain.UserSettings) error
}

// StatsRepository persists download statistics.
type StatsRepository interface {
	Insert(ctx context.Context, stat domain.DownloadStat) error

	// Summary aggregates rows created at or after since per platform.
	Summary(ctx context.Context, since time.Time) ([]domain.PlatformSummary, error)
}

// EventRepository persists operator events.
type EventRepository interface {
	Insert(ctx context.Context, event domain.Event) error
	Query(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
