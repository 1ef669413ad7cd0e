package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// New builds a structured slog logger on stdout honoring the configured level and environment.
// Development environments (local, dev, development) get text output, colored on a TTY.
// Every other environment gets JSON.
func New(appName, level, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, appName, level, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, appName, level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if isDevelopment(environment) {
		if isTerminal(w) {
			opts.ReplaceAttr = colorizeLevel
		}
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("app", appName)
}

// ParseLevel maps debug, warn and error to their slog levels. Anything else is info.
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

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		return true
	}
	return false
}

// colorizeLevel wraps the level value in ANSI color codes.
func colorizeLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}

	color := colorGreen
	switch {
	case level >= slog.LevelError:
		color = colorRed
	case level >= slog.LevelWarn:
		color = colorYellow
	case level < slog.LevelInfo:
		color = colorCyan
	}
	return slog.String(a.Key, color+level.String()+colorReset)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
