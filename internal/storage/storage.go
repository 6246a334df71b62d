// Package storage is the store abstraction used by the sync pipeline.
//
// The pipeline needs very little from a relational store: execute
// parameterized statements, read rows, and rely on primary/unique keys for
// "insert or update on conflict" semantics. DB captures exactly that over a
// single connection held for the whole run.
//
// Concrete backends live in subpackages and register themselves by kind at
// init time:
//
//   - "postgres" (bizsync/internal/storage/postgres, pgx)
//   - "sqlite"   (bizsync/internal/storage/sqlite, modernc.org/sqlite)
//   - "mssql"    (bizsync/internal/storage/mssql, go-mssqldb)
//
// Import bizsync/internal/storage/all to enable all of them, then call Open.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Dialect identifies the SQL flavor spoken by a DB.
type Dialect string

const (
	Postgres  Dialect = "postgres"
	SQLite    Dialect = "sqlite"
	SQLServer Dialect = "mssql"
)

// MaxParams is the number of bind parameters a single statement may carry,
// kept a little under the engine's hard limit where that limit is tight.
func (d Dialect) MaxParams() int {
	switch d {
	case Postgres:
		return 65535
	case SQLite:
		return 32766
	case SQLServer:
		return 2000
	default:
		return 999
	}
}

// Placeholder renders the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case SQLServer:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// QuoteIdent quotes a single identifier with ANSI double quotes, escaping
// embedded quotes. Postgres, SQLite and SQL Server (QUOTED_IDENTIFIER ON)
// all accept this form.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DB is one store connection held for the duration of a run.
type DB interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Query runs a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	// Dialect reports the SQL flavor of the connection.
	Dialect() Dialect
	// Close releases the connection.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a DB for cfg.
type Factory func(ctx context.Context, cfg Config) (DB, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// twice panics.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if f == nil {
		panic("storage: Register factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic("storage: Register called twice for " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backends.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open connects to the backend registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (DB, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}
