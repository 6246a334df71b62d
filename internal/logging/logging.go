// Package logging builds the logrus logger shared by every bizsync command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Config selects level, format and an optional rotated log file.
type Config struct {
	Level  string // panic..trace; empty means info
	Format string // "text" or "json"
	File   string // when set, logs go to stderr and this file

	MaxSizeMB  int // rotation threshold, default 100
	MaxBackups int // default 5
}

// New returns a logger writing to stderr (and cfg.File when set) plus a
// closer for the file writer. The closer is never nil.
func New(cfg Config, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	l := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nopCloser{}, fmt.Errorf("logging: %w", err)
		}
		level = lv
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	default:
		return nil, nopCloser{}, fmt.Errorf("logging: unknown format %q (want text or json)", cfg.Format)
	}

	if cfg.File == "" {
		l.SetOutput(stderr)
		return l, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nopCloser{}, fmt.Errorf("logging: create log dir: %w", err)
	}
	fw := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		Compress:   true,
	}
	l.SetOutput(io.MultiWriter(stderr, fw))
	return l, fw, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
