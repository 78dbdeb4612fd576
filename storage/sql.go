package storage

import (
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
)

// NewPostgresStore opens a Postgres-backed store
func NewPostgresStore(dsn string, log *slog.Logger, opts ...Option) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn), log, opts...)
}

// NewSQLiteStore opens a SQLite-backed store. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, log *slog.Logger, opts ...Option) (*GormStore, error) {
	// SQLite allows a single writer and in-memory databases live per connection
	opts = append(opts, withMaxOpenConns(1))
	return NewGormStore(sqlite.Open(path), log, opts...)
}
