// Package logging constructs the process-wide structured logger and
// carries it through context, matching the call-site contract the
// teacher's command entry points expect (logging.NewLogger,
// logging.FromContext) even though the teacher's own package body was not
// part of the retrieved example pack.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

// NewLogger builds a slog.Logger writing structured text to stderr at the
// given level ("debug", "info", "warn", "error"; unrecognized values fall
// back to "info").
func NewLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a context carrying logger, retrievable with FromContext.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() if none
// was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
