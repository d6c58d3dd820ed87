package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

type channelRow struct {
	ChannelID int64  `db:"channel_id"`
	Name      string `db:"name"`
	Link      string `db:"link"`
	IsActive  bool   `db:"is_active"`
	AddedBy   int64  `db:"added_by"`
	CreatedAt int64  `db:"created_at"`
}

func (r channelRow) channel() domain.Channel {
	return domain.Channel{
		ChannelID: r.ChannelID,
		Name:      r.Name,
		Link:      r.Link,
		IsActive:  r.IsActive,
		AddedBy:   r.AddedBy,
		CreatedAt: database.FromMillis(r.CreatedAt),
	}
}

// SQLChannelRepository implements ChannelRepository on the channels table.
type SQLChannelRepository struct {
	db *database.DB
}

// NewSQLChannelRepository creates a channel repository.
func NewSQLChannelRepository(db *database.DB) *SQLChannelRepository {
	return &SQLChannelRepository{db: db}
}

func (r *SQLChannelRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.Channel, error) {
	b := r.db.Builder().
		Select("channel_id", "name", "link", "is_active", "added_by", "created_at").
		From("channels").
		OrderBy("channel_id")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []channelRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	channels := make([]domain.Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, row.channel())
	}
	return channels, nil
}

// ListActive returns required channels.
func (r *SQLChannelRepository) ListActive(ctx context.Context) ([]domain.Channel, error) {
	return r.list(ctx, squirrel.Eq{"is_active": true})
}

// List returns all channels.
func (r *SQLChannelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	return r.list(ctx, nil)
}

// Add creates or replaces a channel.
func (r *SQLChannelRepository) Add(ctx context.Context, ch domain.Channel) error {
	query, args, err := r.db.Builder().
		Insert("channels").
		Columns("channel_id", "name", "link", "is_active", "added_by", "created_at").
		Values(ch.ChannelID, ch.Name, ch.Link, ch.IsActive, ch.AddedBy, database.Millis(ch.CreatedAt)).
		Suffix(`ON CONFLICT (channel_id) DO UPDATE SET
			name = excluded.name,
			link = excluded.link,
			is_active = excluded.is_active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add channel: %w", err)
	}
	return nil
}

// SetActive toggles whether the channel is required.
func (r *SQLChannelRepository) SetActive(ctx context.Context, channelID int64, active bool) error {
	query, args, err := r.db.Builder().
		Update("channels").
		Set("is_active", active).
		Where(squirrel.Eq{"channel_id": channelID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.execOne(ctx, query, args, "update channel")
}

// Remove deletes a channel.
func (r *SQLChannelRepository) Remove(ctx context.Context, channelID int64) error {
	query, args, err := r.db.Builder().
		Delete("channels").
		Where(squirrel.Eq{"channel_id": channelID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.execOne(ctx, query, args, "remove channel")
}

func (r *SQLChannelRepository) execOne(ctx context.Context, query string, args []interface{}, op string) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}
