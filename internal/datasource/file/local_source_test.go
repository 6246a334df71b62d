package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	type tc struct {
		name            string
		prepare         func(t *testing.T) string
		makeCtx         func() context.Context
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}

	writeFile := func(t *testing.T, payload string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "data.json")
		if err := os.WriteFile(p, []byte(payload), 0o644); err != nil {
			t.Fatalf("write test file: %v", err)
		}
		return p
	}
	canceled := func() context.Context {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	cases := []tc{
		{
			name:        "success_reads_content",
			prepare:     func(t *testing.T) string { return writeFile(t, `[{"data_id":"b1"}]`) },
			makeCtx:     context.Background,
			wantContent: `[{"data_id":"b1"}]`,
		},
		{
			name: "missing_file_errors_with_wrapping",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.json")
			},
			makeCtx:         context.Background,
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "open ",
		},
		{
			name:      "pre_canceled_context_short_circuits",
			prepare:   func(t *testing.T) string { return writeFile(t, "ignored") },
			makeCtx:   canceled,
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			src := NewLocal(c.prepare(t))
			rc, err := src.Open(c.makeCtx())
			if c.wantErrIs != nil || c.wantErrContains != "" {
				if err == nil {
					t.Fatalf("Open() error = nil; want error")
				}
				if c.wantErrIs != nil && !errors.Is(err, c.wantErrIs) {
					t.Fatalf("Open() error = %v; want errors.Is %v", err, c.wantErrIs)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("Open() error = %q; want substring %q", err, c.wantErrContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(b) != c.wantContent {
				t.Fatalf("content = %q; want %q", b, c.wantContent)
			}
		})
	}
}

func TestLocalSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "data.json")
	if err := os.WriteFile(p, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := NewLocal(p).Size(context.Background())
	if err != nil || n != 5 {
		t.Fatalf("Size() = %d, %v; want 5, nil", n, err)
	}
	if _, err := NewLocal(dir).Size(context.Background()); err == nil {
		t.Fatalf("Size(dir) error = nil; want error")
	}
	if NewLocal(p).Name() != p {
		t.Fatalf("Name() mismatch")
	}
}
