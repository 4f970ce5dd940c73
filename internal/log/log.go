// Package log provides structured logging for go-smartbin.
// It wraps slog with sensible defaults for a kiosk deployment.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps a level name to a slog level.
// Valid levels: "debug", "info", "warn", "error". Anything else is info.
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

// New builds a logger writing to w at the given level.
// JSON is used when GO_ENV=production, text otherwise.
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	if os.Getenv("GO_ENV") == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init initializes the global logger with the specified level.
// Only the first call has an effect.
func Init(level string) {
	once.Do(func() {
		logger = New(os.Stdout, level)
		slog.SetDefault(logger)
	})
}

// L returns the process logger, initialising it at info level on first
// use.
func L() *slog.Logger {
	Init("info")
	return logger
}

// Component returns a logger tagged with the component name.
// A nil base falls back to the global logger.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = L()
	}
	return base.With("component", name)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
