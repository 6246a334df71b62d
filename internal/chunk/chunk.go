// Package chunk splits a large JSON dataset into bounded chunk files and
// reads them back.
//
// The dataset is either a top-level array of records or an object carrying
// the records in its "data" array. Split writes the records, in input order,
// into files of the form
//
//	{"data":[<record>,<record>,...]}
//
// named chunk_<n>.json inside a run-scoped directory. A chunk is sealed as
// soon as adding the next record would push its serialized size past the
// configured ceiling; that record starts the next chunk. A record larger than
// the ceiling on its own forms a single-record chunk.
//
// Small files are parsed whole (direct path); larger ones, or small ones that
// turn out too large to buffer, are streamed record by record with a token
// decoder so at most one chunk is held in memory. Both paths seal through the
// same writer, so concatenating the chunks reproduces the input sequence
// exactly.
//
// Every chunk carries an xxh3 checksum of its file which Read verifies.
package chunk

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxChunkBytes is the serialized size ceiling per chunk.
	DefaultMaxChunkBytes int64 = 5 << 20
	// DefaultDirectParseLimit is the file size under which the whole
	// document is parsed in one go.
	DefaultDirectParseLimit int64 = 100 << 20
)

var (
	// ErrBadEnvelope reports a top level that is neither an array nor an
	// object exposing a "data" array.
	ErrBadEnvelope = errors.New("chunk: input must be a JSON array or an object with a data array")
	// ErrChecksum reports a chunk file whose content changed after sealing.
	ErrChecksum = errors.New("chunk: checksum mismatch")

	errTooLarge = errors.New("chunk: input too large for direct parse")
)

// Options controls Split.
type Options struct {
	// Dir receives the chunk files. It is created if missing.
	Dir string
	// MaxChunkBytes is the ceiling of serialized record bytes per chunk.
	MaxChunkBytes int64
	// DirectParseLimit is the size under which the input is parsed whole.
	// Zero or negative disables the direct path.
	DirectParseLimit int64
	// Log receives progress messages; nil discards them.
	Log logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.MaxChunkBytes <= 0 {
		o.MaxChunkBytes = DefaultMaxChunkBytes
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Log = l
	}
	return o
}

// Chunk describes one sealed chunk file.
type Chunk struct {
	Index   int
	Path    string
	Records int
	// Bytes is the size of the chunk file.
	Bytes int64
	// Sum is the xxh3-64 hash of the chunk file.
	Sum uint64
}
