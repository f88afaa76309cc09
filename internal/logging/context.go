package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey int

const opIDKey contextKey = iota

// NewOpID returns a short identifier used to correlate the log lines of one
// alarm operation (load, update, a realtime event, a correction write).
func NewOpID() string {
	return uuid.NewString()[:8]
}

// WithOpID returns a new context carrying the given operation id.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey, id)
}

// EnsureOpID returns ctx unchanged if it already carries an operation id,
// otherwise a child context with a fresh one.
func EnsureOpID(ctx context.Context) context.Context {
	if OpIDFromContext(ctx) != "" {
		return ctx
	}
	return WithOpID(ctx, NewOpID())
}

// OpIDFromContext extracts the operation id from the context.
func OpIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(opIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns the global logger annotated with the operation
// id from ctx.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := Logger()
	if id := OpIDFromContext(ctx); id != "" {
		logger = logger.With(KeyOpID, id)
	}
	return logger
}
