// Package postgres implements storage.DB for PostgreSQL on one pgx
// connection held for the whole run. Statements are not retried.
package postgres

import (
	"context"
	"fmt"

	"bizsync/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgConnLike defines the subset of *pgx.Conn used by the adapter. Tests
// inject a fake through it.
type pgConnLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// connect is a test hook pointing at pgx.Connect.
var connect = func(ctx context.Context, dsn string) (pgConnLike, error) {
	return pgx.Connect(ctx, dsn)
}

// pgDB implements storage.DB over pgConnLike.
type pgDB struct{ conn pgConnLike }

var _ storage.DB = (*pgDB)(nil)

// Open connects to Postgres using dsn (URL or key=value form).
func Open(ctx context.Context, dsn string) (storage.DB, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("postgres: dsn: %w", err)
	}
	c, err := connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &pgDB{conn: c}, nil
}

// Exec returns the rows affected reported by the command tag.
func (p *pgDB) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	tag, err := p.conn.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query wraps pgx.Rows into storage.Rows.
func (p *pgDB) Query(ctx context.Context, q string, args ...any) (storage.Rows, error) {
	rows, err := p.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgRows{rows}, nil
}

func (p *pgDB) Dialect() storage.Dialect { return storage.Postgres }

// Close closes the underlying connection.
func (p *pgDB) Close() error {
	return p.conn.Close(context.Background())
}

// pgRows adapts pgx.Rows, whose Close returns nothing.
type pgRows struct{ rows pgx.Rows }

func (r pgRows) Next() bool             { return r.rows.Next() }
func (r pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r pgRows) Err() error             { return r.rows.Err() }
func (r pgRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}

func init() {
	storage.Register(string(storage.Postgres), func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		return Open(ctx, cfg.DSN)
	})
}
