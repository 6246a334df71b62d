// Package sqldb adapts a database/sql driver to storage.DB.
//
// The adapter pins a single *sql.Conn for the lifetime of the DB so that
// session state (pragmas, temp objects, in-memory databases) is stable and
// the run holds exactly one store connection.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bizsync/internal/storage"
)

// PingTimeout bounds the connectivity check performed by Open.
var PingTimeout = 5 * time.Second

// DB implements storage.DB over one *sql.Conn.
type DB struct {
	pool    *sql.DB
	conn    *sql.Conn
	dialect storage.Dialect
}

var _ storage.DB = (*DB)(nil)

// Open opens driverName with dsn, pins one connection, pings it and runs the
// optional session statements in init.
func Open(ctx context.Context, driverName, dsn string, d storage.Dialect, init ...string) (*DB, error) {
	pool, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d, err)
	}
	pool.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	conn, err := pool.Conn(pingCtx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("%s: connect: %w", d, err)
	}
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		_ = pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", d, err)
	}
	for _, stmt := range init {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			_ = pool.Close()
			return nil, fmt.Errorf("%s: %s: %w", d, stmt, err)
		}
	}
	return &DB{pool: pool, conn: conn, dialect: d}, nil
}

// Exec implements storage.DB.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report it; the statement itself succeeded.
		return 0, nil
	}
	return n, nil
}

// Query implements storage.DB. *sql.Rows satisfies storage.Rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Dialect implements storage.DB.
func (db *DB) Dialect() storage.Dialect { return db.dialect }

// Close releases the pinned connection and the pool.
func (db *DB) Close() error {
	cerr := db.conn.Close()
	perr := db.pool.Close()
	if cerr != nil {
		return cerr
	}
	return perr
}
