// Package dbtest opens throwaway in-memory databases for repository tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/YuldShah/uptovipnew/internal/database"
)

// New returns a migrated in-memory sqlite database closed at test cleanup.
func New(tb testing.TB) *database.DB {
	tb.Helper()

	db, err := database.Open(context.Background(), database.DriverSQLite, ":memory:")
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}
