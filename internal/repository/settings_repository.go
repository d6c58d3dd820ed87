package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

type settingsRow struct {
	UserID    int64  `db:"user_id"`
	Platform  string `db:"platform"`
	Quality   string `db:"quality"`
	Format    string `db:"format"`
	UpdatedAt int64  `db:"updated_at"`
}

// SQLPreferenceRepository implements PreferenceRepository on the settings table.
type SQLPreferenceRepository struct {
	db *database.DB
}

// NewSQLPreferenceRepository creates a preference repository.
func NewSQLPreferenceRepository(db *database.DB) *SQLPreferenceRepository {
	return &SQLPreferenceRepository{db: db}
}

// Get returns the effective settings for platform.
func (r *SQLPreferenceRepository) Get(ctx context.Context, userID int64, platform domain.PlatformID) (*domain.UserSettings, error) {
	query, args, err := r.db.Builder().
		Select("user_id", "platform", "quality", "format", "updated_at").
		From("settings").
		Where(squirrel.Eq{"user_id": userID, "platform": []string{string(platform), ""}}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []settingsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	settings := &domain.UserSettings{
		UserID:   userID,
		Platform: platform,
		Quality:  domain.DefaultQuality,
		Format:   domain.FormatVideo,
	}

	// A platform row wins over the global row.
	var chosen *settingsRow
	for i := range rows {
		if rows[i].Platform == string(platform) {
			chosen = &rows[i]
			break
		}
		chosen = &rows[i]
	}
	if chosen == nil {
		return settings, nil
	}

	if q := domain.Quality(chosen.Quality); q.Valid() {
		settings.Quality = q
	}
	if f := domain.OutputFormat(chosen.Format); f.Valid() {
		settings.Format = f
	}
	settings.UpdatedAt = database.FromMillis(chosen.UpdatedAt)
	return settings, nil
}

// GetPreference returns the stored quality for platform.
func (r *SQLPreferenceRepository) GetPreference(ctx context.Context, userID int64, platform domain.PlatformID) (domain.Quality, error) {
	settings, err := r.Get(ctx, userID, platform)
	if err != nil {
		return "", err
	}
	return settings.Quality, nil
}

// Set stores settings for the user and platform.
func (r *SQLPreferenceRepository) Set(ctx context.Context, settings domain.UserSettings) error {
	if !settings.Quality.Valid() {
		return fmt.Errorf("%w: unknown quality %q", domain.ErrInvalidRequest, settings.Quality)
	}
	if settings.Format == "" {
		settings.Format = domain.FormatVideo
	}
	if !settings.Format.Valid() {
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidRequest, settings.Format)
	}

	query, args, err := r.db.Builder().
		Insert("settings").
		Columns("user_id", "platform", "quality", "format", "updated_at").
		Values(settings.UserID, string(settings.Platform), string(settings.Quality), string(settings.Format), database.Millis(time.Now())).
		Suffix(`ON CONFLICT (user_id, platform) DO UPDATE SET
			quality = excluded.quality,
			format = excluded.format,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}
