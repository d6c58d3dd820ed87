package cache

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

const cacheTable = "cache_entries"

var cacheColumns = []string{
	"fingerprint", "artifact_reference", "created_at", "last_validated_at", "size_bytes", "artifact_kind",
}

type cacheRow struct {
	Fingerprint       string `db:"fingerprint"`
	ArtifactReference string `db:"artifact_reference"`
	CreatedAt         int64  `db:"created_at"`
	LastValidatedAt   int64  `db:"last_validated_at"`
	SizeBytes         int64  `db:"size_bytes"`
	ArtifactKind      string `db:"artifact_kind"`
}

func (r cacheRow) entry() *domain.CacheEntry {
	return &domain.CacheEntry{
		Fingerprint:       domain.Fingerprint(r.Fingerprint),
		ArtifactReference: r.ArtifactReference,
		CreatedAt:         database.FromMillis(r.CreatedAt),
		LastValidatedAt:   database.FromMillis(r.LastValidatedAt),
		SizeBytes:         r.SizeBytes,
		ArtifactKind:      domain.ArtifactKind(r.ArtifactKind),
	}
}

// SQLStore implements Store on the cache_entries table.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a store over an opened database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns the entry for fp.
func (s *SQLStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	query, args, err := s.db.Builder().
		Select(cacheColumns...).
		From(cacheTable).
		Where(squirrel.Eq{"fingerprint": string(fp)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row cacheRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return row.entry(), nil
}

// Upsert writes the entry in one statement.
func (s *SQLStore) Upsert(ctx context.Context, entry domain.CacheEntry) (*domain.CacheEntry, error) {
	query, args, err := s.db.Builder().
		Insert(cacheTable).
		Columns(cacheColumns...).
		Values(
			string(entry.Fingerprint),
			entry.ArtifactReference,
			database.Millis(entry.CreatedAt),
			database.Millis(entry.LastValidatedAt),
			entry.SizeBytes,
			string(entry.ArtifactKind),
		).
		Suffix(`ON CONFLICT (fingerprint) DO UPDATE SET
			artifact_reference = excluded.artifact_reference,
			last_validated_at = excluded.last_validated_at,
			size_bytes = excluded.size_bytes,
			artifact_kind = excluded.artifact_kind
			RETURNING fingerprint, artifact_reference, created_at, last_validated_at, size_bytes, artifact_kind`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row cacheRow
	if err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		return nil, fmt.Errorf("upsert cache entry: %w", err)
	}
	return row.entry(), nil
}

// Delete removes the entry for fp.
func (s *SQLStore) Delete(ctx context.Context, fp domain.Fingerprint) error {
	query, args, err := s.db.Builder().
		Delete(cacheTable).
		Where(squirrel.Eq{"fingerprint": string(fp)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteValidatedBefore removes stale entries.
func (s *SQLStore) DeleteValidatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := s.db.Builder().
		Delete(cacheTable).
		Where(squirrel.Lt{"last_validated_at": database.Millis(cutoff)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("evict cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
