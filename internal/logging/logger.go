// Package logging builds the supervisor logger and the durable log stream it
// shares with the worker's output.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a text logger that writes every record to both console and
// sink. Either writer may be nil.
func New(level string, console, sink io.Writer) *slog.Logger {
	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if sink != nil {
		writers = append(writers, sink)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
