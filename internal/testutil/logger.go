package testutil

import (
	"io"
	"log/slog"
	"os"
)

// NewTestLogger creates a logger suitable for testing.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// NewNullLogger creates a logger that discards all output.
func NewNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewCaptureLogger writes JSON records at debug level to w, for tests that assert on log output.
func NewCaptureLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
