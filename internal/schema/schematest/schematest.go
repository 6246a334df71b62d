// Package schematest builds SQLite fixture databases carrying the reference
// schema for tests of packages that talk to the store.
package schematest

import (
	"context"
	"path/filepath"
	"testing"

	"bizsync/internal/schema"
	"bizsync/internal/storage"
	"bizsync/internal/storage/sqlite"
)

// NewDB creates a file-backed SQLite database under t.TempDir with every
// required table, and returns the open connection together with its DSN so
// the code under test can open its own connection. The connection is closed
// when the test ends.
func NewDB(tb testing.TB) (storage.DB, string) {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "bizsync.db")
	db := Open(tb, dsn)
	Apply(tb, db)
	return db, dsn
}

// Open opens dsn and registers Close with tb.Cleanup.
func Open(tb testing.TB, dsn string) storage.DB {
	tb.Helper()
	db, err := sqlite.Open(context.Background(), dsn)
	if err != nil {
		tb.Fatalf("open sqlite %s: %v", dsn, err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// Apply executes the reference schema script on db.
func Apply(tb testing.TB, db storage.DB) {
	tb.Helper()
	stmts, err := schema.ScriptSQL(db.Dialect())
	if err != nil {
		tb.Fatalf("render schema: %v", err)
	}
	for _, s := range stmts {
		if _, err := db.Exec(context.Background(), s); err != nil {
			tb.Fatalf("apply %q: %v", s, err)
		}
	}
}

// Count returns SELECT COUNT(*) of table.
func Count(tb testing.TB, db storage.DB, table string) int64 {
	tb.Helper()
	return Int(tb, db, "SELECT COUNT(*) FROM "+storage.QuoteIdent(table))
}

// Int runs a single-value integer query.
func Int(tb testing.TB, db storage.DB, q string, args ...any) int64 {
	tb.Helper()
	rows, err := db.Query(context.Background(), q, args...)
	if err != nil {
		tb.Fatalf("%s: %v", q, err)
	}
	defer rows.Close()
	var n int64
	if !rows.Next() {
		tb.Fatalf("%s: no rows", q)
	}
	if err := rows.Scan(&n); err != nil {
		tb.Fatalf("%s: scan: %v", q, err)
	}
	return n
}

// Strings runs a query returning one text column per row.
func Strings(tb testing.TB, db storage.DB, q string, args ...any) []string {
	tb.Helper()
	rows, err := db.Query(context.Background(), q, args...)
	if err != nil {
		tb.Fatalf("%s: %v", q, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			tb.Fatalf("%s: scan: %v", q, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		tb.Fatalf("%s: %v", q, err)
	}
	return out
}
