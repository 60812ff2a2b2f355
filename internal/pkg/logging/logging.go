// Package logging builds the process-wide slog logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger writing to stdout and installs it as the slog default.
func New(level, format, env string) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout, level, format, env)).With("service", "secret-friend", "env", env)
	slog.SetDefault(logger)
	return logger
}

func newHandler(w io.Writer, level, format, env string) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: env == "development",
		Level:     parseLevel(level),
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
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
