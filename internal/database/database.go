// Package database opens the relational store shared by the cache,
// access, preference, statistics and event repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a sqlx handle with a statement builder for its placeholder style.
type DB struct {
	*sqlx.DB
	driver string
	qb     squirrel.StatementBuilderType
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// modernc serializes writers; one connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := New(conn, driver)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an existing connection without touching the schema.
func New(conn *sql.DB, driver string) *DB {
	var placeholder squirrel.PlaceholderFormat = squirrel.Question
	if driver == DriverPostgres {
		placeholder = squirrel.Dollar
	}
	return &DB{
		DB:     sqlx.NewDb(conn, driver),
		driver: driver,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Driver returns the driver name the handle was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Builder returns a statement builder using the driver's placeholders.
func (d *DB) Builder() squirrel.StatementBuilderType {
	return d.qb
}

// Migrate creates missing tables.
func (d *DB) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if d.driver == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Millis converts a time to the integer representation stored in tables.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts a stored integer timestamp back to UTC time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
