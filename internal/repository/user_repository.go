package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

// SQLUserRepository implements UserRepository on the users table.
type SQLUserRepository struct {
	db *database.DB
}

// NewSQLUserRepository creates a user repository.
func NewSQLUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// GetAccessStatus returns the stored status for userID.
func (r *SQLUserRepository) GetAccessStatus(ctx context.Context, userID int64) (domain.AccessStatus, error) {
	query, args, err := r.db.Builder().
		Select("access_status").
		From("users").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.AccessStatusNormal, fmt.Errorf("build query: %w", err)
	}

	var status int
	if err := r.db.GetContext(ctx, &status, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AccessStatusNormal, nil
		}
		return domain.AccessStatusNormal, fmt.Errorf("get access status: %w", err)
	}
	return domain.AccessStatus(status), nil
}

// SetAccessStatus creates or updates the user row.
func (r *SQLUserRepository) SetAccessStatus(ctx context.Context, userID int64, status domain.AccessStatus) error {
	query, args, err := r.db.Builder().
		Insert("users").
		Columns("user_id", "access_status", "updated_at").
		Values(userID, int(status), database.Millis(time.Now())).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET access_status = excluded.access_status, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set access status: %w", err)
	}
	return nil
}
