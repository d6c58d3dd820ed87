package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

// SQLStatsRepository implements StatsRepository on the download_stats table.
type SQLStatsRepository struct {
	db *database.DB
}

// NewSQLStatsRepository creates a stats repository.
func NewSQLStatsRepository(db *database.DB) *SQLStatsRepository {
	return &SQLStatsRepository{db: db}
}

// Insert appends one statistics row.
func (r *SQLStatsRepository) Insert(ctx context.Context, stat domain.DownloadStat) error {
	query, args, err := r.db.Builder().
		Insert("download_stats").
		Columns("user_id", "platform", "url", "success", "failure_kind", "cache_hit", "file_size", "download_time_ms", "created_at").
		Values(
			stat.UserID,
			string(stat.Platform),
			stat.URL,
			stat.Success,
			string(stat.FailureKind),
			stat.CacheHit,
			stat.FileSize,
			stat.DownloadTime.Milliseconds(),
			database.Millis(stat.CreatedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert stat: %w", err)
	}
	return nil
}

// Summary aggregates statistics per platform.
func (r *SQLStatsRepository) Summary(ctx context.Context, since time.Time) ([]domain.PlatformSummary, error) {
	query, args, err := r.db.Builder().
		Select(
			"platform",
			"COUNT(*) AS total",
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded",
			"COALESCE(SUM(file_size), 0) AS bytes",
		).
		From("download_stats").
		Where(squirrel.GtOrEq{"created_at": database.Millis(since)}).
		GroupBy("platform").
		OrderBy("total DESC", "platform").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var summary []domain.PlatformSummary
	if err := r.db.SelectContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("summarize stats: %w", err)
	}
	return summary, nil
}
