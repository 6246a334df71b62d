package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

// Read loads the records of c in order. The file checksum is verified when
// c.Sum is set.
func Read(c Chunk) ([]json.RawMessage, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("chunk: read %s: %w", c.Path, err)
	}
	if c.Sum != 0 && xxh3.Hash(data) != c.Sum {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, c.Path)
	}

	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("chunk: decode %s: %w", c.Path, err)
	}
	return env.Data, nil
}

// CleanupReport summarizes Cleanup.
type CleanupReport struct {
	Removed    int
	Failed     int
	DirRemoved bool
}

// Cleanup deletes the chunk files and then dir when it is empty. Failures are
// logged and counted, never returned: leftover temporary files must not fail
// a run.
func Cleanup(dir string, chunks []Chunk, log logrus.FieldLogger) CleanupReport {
	var rep CleanupReport
	for _, c := range chunks {
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rep.Failed++
			if log != nil {
				log.Warnf("cleanup: remove %s: %v", c.Path, err)
			}
			continue
		}
		rep.Removed++
	}

	if dir == "" {
		return rep
	}
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return rep
	case err != nil:
		if log != nil {
			log.Warnf("cleanup: read %s: %v", dir, err)
		}
		return rep
	case len(entries) > 0:
		if log != nil {
			log.Warnf("cleanup: %s not empty (%d entries), leaving it in place", dir, len(entries))
		}
		return rep
	}
	if err := os.Remove(dir); err != nil {
		if log != nil {
			log.Warnf("cleanup: remove %s: %v", dir, err)
		}
		return rep
	}
	rep.DirRemoved = true
	return rep
}
