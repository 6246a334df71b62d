package chunk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"bizsync/internal/datasource"

	"github.com/dustin/go-humanize"
)

// Split writes the records of src into chunk files under opts.Dir.
//
// On error the chunks sealed so far are returned alongside it so the caller
// can clean them up.
func Split(ctx context.Context, src datasource.Source, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()
	if opts.Dir == "" {
		return nil, fmt.Errorf("chunk: Dir must not be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk: create dir: %w", err)
	}

	size, err := src.Size(ctx)
	if err != nil {
		return nil, err
	}

	if opts.DirectParseLimit > 0 && size >= 0 && size < opts.DirectParseLimit {
		w := newSealer(opts)
		err := splitDirect(ctx, src, w, opts.DirectParseLimit)
		switch {
		case err == nil:
			opts.Log.Infof("split: direct parse input=%s chunks=%d records=%d",
				humanize.Bytes(uint64(size)), len(w.chunks), w.total)
			return w.chunks, nil
		case errors.Is(err, errTooLarge):
			opts.Log.Warnf("split: direct parse of %s not possible, streaming instead", src.Name())
		default:
			return w.chunks, err
		}
	}

	w := newSealer(opts)
	if err := splitStream(ctx, src, w); err != nil {
		return w.chunks, err
	}
	opts.Log.Infof("split: streamed input=%s chunks=%d records=%d",
		humanize.Bytes(uint64(max(size, 0))), len(w.chunks), w.total)
	return w.chunks, nil
}

func splitDirect(ctx context.Context, src datasource.Source, w *sealer, limit int64) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return fmt.Errorf("chunk: read input: %w", err)
	}
	if int64(len(data)) > limit {
		return errTooLarge
	}

	records, err := parseWhole(data)
	if err != nil {
		return err
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.add(r); err != nil {
			return err
		}
	}
	return w.finish()
}

func parseWhole(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrBadEnvelope
	}
	switch data[0] {
	case '[':
		var recs []json.RawMessage
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("chunk: parse input: %w", err)
		}
		return recs, nil
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("chunk: parse input: %w", err)
		}
		d := bytes.TrimSpace(env.Data)
		if len(d) == 0 || d[0] != '[' {
			return nil, ErrBadEnvelope
		}
		var recs []json.RawMessage
		if err := json.Unmarshal(d, &recs); err != nil {
			return nil, fmt.Errorf("chunk: parse input: %w", err)
		}
		return recs, nil
	default:
		return nil, ErrBadEnvelope
	}
}

func splitStream(ctx context.Context, src datasource.Source, w *sealer) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(rc, 1<<20))

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return ErrBadEnvelope
		}
		return fmt.Errorf("chunk: parse input: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := streamArray(ctx, dec, w); err != nil {
			return err
		}
	case json.Delim('{'):
		found := false
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return fmt.Errorf("chunk: parse input: %w", err)
			}
			key, _ := kt.(string)
			if key != "data" || found {
				var skip json.RawMessage
				if err := dec.Decode(&skip); err != nil {
					return fmt.Errorf("chunk: parse input: %w", err)
				}
				continue
			}
			vt, err := dec.Token()
			if err != nil {
				return fmt.Errorf("chunk: parse input: %w", err)
			}
			if vt != json.Delim('[') {
				return ErrBadEnvelope
			}
			if err := streamArray(ctx, dec, w); err != nil {
				return err
			}
			found = true
		}
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("chunk: parse input: %w", err)
		}
		if !found {
			return ErrBadEnvelope
		}
	default:
		return ErrBadEnvelope
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	return w.finish()
}

// expectEOF fails when anything but whitespace follows the top-level value.
func expectEOF(dec *json.Decoder) error {
	tok, err := dec.Token()
	switch {
	case err == io.EOF:
		return nil
	case err != nil:
		return fmt.Errorf("chunk: parse input: %w", err)
	default:
		return fmt.Errorf("chunk: parse input: unexpected %v after top-level value", tok)
	}
}

// streamArray consumes array elements up to and including the closing ']'.
func streamArray(ctx context.Context, dec *json.Decoder, w *sealer) error {
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("chunk: record %d: %w", w.total, err)
		}
		if err := w.add(raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("chunk: parse input: %w", err)
	}
	return nil
}
