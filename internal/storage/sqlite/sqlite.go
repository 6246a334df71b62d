// Package sqlite implements storage.DB on modernc.org/sqlite (pure Go, no
// cgo). It is used for local runs and for end-to-end tests of the pipeline.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"bizsync/internal/storage"
	"bizsync/internal/storage/sqldb"

	_ "modernc.org/sqlite"
)

// Open opens the database at dsn, a file path or a "file:" URI. Foreign key
// enforcement is switched on for the session.
func Open(ctx context.Context, dsn string) (*sqldb.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	return sqldb.Open(ctx, "sqlite", dsn, storage.SQLite,
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	)
}

func init() {
	storage.Register(string(storage.SQLite), func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		return Open(ctx, cfg.DSN)
	})
}
