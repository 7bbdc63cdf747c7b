// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 2
	maxLogBackups = 5
)

// Options controls logger construction.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // rotating log file path; empty disables file output
	Console bool   // mirror log records to stderr
}

// Setup installs the default slog logger according to opts and returns
// a close function for the rotating file sink.
func Setup(opts Options) (func() error, error) {
	var sinks []io.Writer
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
		}
		sinks = append(sinks, rotator)
		closeFn = rotator.Close
	}
	if opts.Console || len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}

	handler := slog.NewTextHandler(io.MultiWriter(sinks...), &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

// ParseLevel maps a config string to a slog level. Unknown strings fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
