package chunk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
)

var (
	chunkPrefix = []byte(`{"data":[`)
	chunkSuffix = []byte(`]}`)
)

// sealer accumulates compact records and writes them out as chunk files.
type sealer struct {
	opts Options

	buf     bytes.Buffer // records of the open chunk, comma separated
	scratch bytes.Buffer
	n       int   // records in the open chunk
	size    int64 // serialized record bytes in the open chunk
	total   int

	chunks []Chunk
}

func newSealer(opts Options) *sealer { return &sealer{opts: opts} }

func (s *sealer) add(raw json.RawMessage) error {
	s.scratch.Reset()
	if err := json.Compact(&s.scratch, raw); err != nil {
		return fmt.Errorf("chunk: record %d: %w", s.total, err)
	}
	size := int64(s.scratch.Len())

	if s.n > 0 && s.size+size > s.opts.MaxChunkBytes {
		if err := s.seal(); err != nil {
			return err
		}
	}
	if s.n > 0 {
		s.buf.WriteByte(',')
	}
	s.buf.Write(s.scratch.Bytes())
	s.n++
	s.size += size
	s.total++
	return nil
}

// finish seals the last, possibly small, chunk.
func (s *sealer) finish() error {
	if s.n == 0 {
		return nil
	}
	return s.seal()
}

func (s *sealer) seal() error {
	idx := len(s.chunks)
	path := filepath.Join(s.opts.Dir, fmt.Sprintf("chunk_%d.json", idx))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("chunk: create %s: %w", path, err)
	}

	h := xxh3.New()
	bw := bufio.NewWriterSize(io.MultiWriter(f, h), 256<<10)
	var written int64
	for _, part := range [][]byte{chunkPrefix, s.buf.Bytes(), chunkSuffix} {
		n, err := bw.Write(part)
		written += int64(n)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("chunk: write %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("chunk: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("chunk: close %s: %w", path, err)
	}

	c := Chunk{Index: idx, Path: path, Records: s.n, Bytes: written, Sum: h.Sum64()}
	s.chunks = append(s.chunks, c)
	s.opts.Log.Debugf("split: sealed chunk=%d records=%d size=%s", idx, c.Records, humanize.Bytes(uint64(written)))

	s.buf.Reset()
	s.n = 0
	s.size = 0
	return nil
}
