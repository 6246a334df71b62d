// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"bizsync/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the file path.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error without touching the
//     filesystem.
//   - The file is advised for sequential access where the platform supports
//     it; the advice is best effort.
//   - Filesystem errors are wrapped with the path and remain matchable with
//     errors.Is (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Size stats the file. A directory is rejected.
func (l *Local) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("stat %s: is a directory", l.path)
	}
	return fi.Size(), nil
}
