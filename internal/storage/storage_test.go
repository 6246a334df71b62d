package storage

import (
	"context"
	"strings"
	"testing"
)

func TestDialectPlaceholders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    Dialect
		n    int
		want string
	}{
		{Postgres, 3, "$3"},
		{SQLServer, 12, "@p12"},
		{SQLite, 7, "?"},
	}
	for _, c := range cases {
		if got := c.d.Placeholder(c.n); got != c.want {
			t.Errorf("%s.Placeholder(%d) = %q; want %q", c.d, c.n, got, c.want)
		}
	}
	if SQLServer.MaxParams() >= 2100 {
		t.Fatalf("SQL Server limit must stay under 2100, got %d", SQLServer.MaxParams())
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdent = %s", got)
	}
	if got := QuoteIdent("count"); got != `"count"` {
		t.Fatalf("QuoteIdent = %s", got)
	}
}

type nopDB struct{ DB }

func TestRegisterAndOpen(t *testing.T) {
	kind := "test-" + t.Name()
	Register(kind, func(ctx context.Context, cfg Config) (DB, error) {
		if cfg.DSN != "dsn" {
			t.Fatalf("DSN = %q", cfg.DSN)
		}
		return nopDB{}, nil
	})

	if _, err := Open(context.Background(), Config{Kind: kind, DSN: "dsn"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err := Open(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("Open(nope) err = %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate Register did not panic")
		}
	}()
	Register(kind, func(context.Context, Config) (DB, error) { return nil, nil })
}
