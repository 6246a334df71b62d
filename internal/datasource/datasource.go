// Package datasource defines where the raw dataset is read from.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw dataset for sequential reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Size returns the size in bytes of the dataset, or -1 when unknown.
	Size(ctx context.Context) (int64, error)
	// Name identifies the source in logs.
	Name() string
}
