package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

type eventRow struct {
	ID        string `db:"id"`
	Timestamp int64  `db:"timestamp"`
	Severity  string `db:"severity"`
	Category  string `db:"category"`
	Message   string `db:"message"`
	Source    string `db:"source"`
	Metadata  string `db:"metadata"`
}

// SQLEventRepository implements EventRepository on the events table.
type SQLEventRepository struct {
	db *database.DB
}

// NewSQLEventRepository creates an event repository.
func NewSQLEventRepository(db *database.DB) *SQLEventRepository {
	return &SQLEventRepository{db: db}
}

// Insert persists one event.
func (r *SQLEventRepository) Insert(ctx context.Context, event domain.Event) error {
	query, args, err := r.db.Builder().
		Insert("events").
		Columns("id", "timestamp", "severity", "category", "message", "source", "metadata").
		Values(
			string(event.ID),
			database.Millis(event.Timestamp),
			string(event.Severity),
			string(event.Category),
			event.Message,
			event.Source,
			string(event.Metadata),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func eventConditions(filter domain.EventFilter) squirrel.And {
	conds := squirrel.And{}
	if filter.Severity != nil {
		conds = append(conds, squirrel.Eq{"severity": string(*filter.Severity)})
	}
	if filter.Category != nil {
		conds = append(conds, squirrel.Eq{"category": string(*filter.Category)})
	}
	if filter.Source != "" {
		conds = append(conds, squirrel.Eq{"source": filter.Source})
	}
	if filter.StartTime != nil {
		conds = append(conds, squirrel.GtOrEq{"timestamp": database.Millis(*filter.StartTime)})
	}
	if filter.EndTime != nil {
		conds = append(conds, squirrel.LtOrEq{"timestamp": database.Millis(*filter.EndTime)})
	}
	if filter.SearchText != "" {
		conds = append(conds, squirrel.Like{"message": "%" + filter.SearchText + "%"})
	}
	return conds
}

// Query returns events matching the filter, newest first.
func (r *SQLEventRepository) Query(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	conds := eventConditions(q.Filter)

	countQuery, countArgs, err := r.db.Builder().
		Select("COUNT(*)").
		From("events").
		Where(conds).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	selectQuery, args, err := r.db.Builder().
		Select("id", "timestamp", "severity", "category", "message", "source", "metadata").
		From("events").
		Where(conds).
		OrderBy("timestamp DESC", "id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, selectQuery, args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		event := domain.Event{
			ID:        domain.EventID(row.ID),
			Timestamp: database.FromMillis(row.Timestamp),
			Severity:  domain.EventSeverity(row.Severity),
			Category:  domain.EventCategory(row.Category),
			Message:   row.Message,
			Source:    row.Source,
		}
		if row.Metadata != "" {
			event.Metadata = json.RawMessage(row.Metadata)
		}
		events = append(events, event)
	}

	return &domain.EventQueryResult{
		Events:  events,
		Total:   total,
		HasMore: q.Offset+len(events) < total,
	}, nil
}

// DeleteBefore removes events older than cutoff.
func (r *SQLEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := r.db.Builder().
		Delete("events").
		Where(squirrel.Lt{"timestamp": database.Millis(cutoff)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
