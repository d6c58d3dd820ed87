package domain

import "time"

// UserSettings holds the persisted download preferences of a user.
type UserSettings struct {
	UserID    int64
	Platform  PlatformID
	Quality   Quality
	Format    OutputFormat
	UpdatedAt time.Time
}

// DefaultQuality is used when a user never stored a preference.
const DefaultQuality = QualityHigh

// DownloadStat is one persisted row of download statistics.
type DownloadStat struct {
	UserID       int64
	Platform     PlatformID
	URL          string
	Success      bool
	FailureKind  FailureKind
	CacheHit     bool
	FileSize     int64
	DownloadTime time.Duration
	CreatedAt    time.Time
}

// StatFromResult converts a download result into a statistics row.
func StatFromResult(r DownloadResult, at time.Time) DownloadStat {
	return DownloadStat{
		UserID:       r.UserID,
		Platform:     r.EngineUsed,
		URL:          r.SourceURL,
		Success:      r.Succeeded(),
		FailureKind:  r.FailureKind,
		CacheHit:     r.CacheHit,
		FileSize:     r.BytesTransferred,
		DownloadTime: r.Duration,
		CreatedAt:    at,
	}
}

// PlatformSummary aggregates statistics for one platform.
type PlatformSummary struct {
	Platform  PlatformID `json:"platform" db:"platform"`
	Total     int64      `json:"total" db:"total"`
	Succeeded int64      `json:"succeeded" db:"succeeded"`
	Bytes     int64      `json:"bytes" db:"bytes"`
}
