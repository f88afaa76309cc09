// Package logging provides structured logging for timely.
// It wraps log/slog with a swappable package-level logger so that library
// code and CLI commands share one configured handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	current = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	JSON      bool
	Output    io.Writer // stderr when nil
	AddSource bool
}

// DefaultConfig is the quiet configuration of interactive commands.
func DefaultConfig() Config {
	return Config{Level: slog.LevelWarn, Output: os.Stderr}
}

// DaemonConfig logs text at level to stderr, which a background start
// redirects into the daemon log.
func DaemonConfig(level string) (Config, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return Config{}, err
	}
	return Config{Level: l, Output: os.Stderr}, nil
}

// ParseLevel accepts debug, info, warn or error, case-insensitively. An
// empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: use debug, info, warn or error", s)
	}
	return l, nil
}

// Init replaces the global logger.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	}

	mu.Lock()
	current = slog.New(h)
	mu.Unlock()
}

// InitDebug switches to JSON debug output with source locations.
func InitDebug() {
	Init(Config{Level: slog.LevelDebug, JSON: true, Output: os.Stderr, AddSource: true})
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	return Logger().With(KeyComponent, name)
}

func Info(msg string, args ...any)     { Logger().Info(msg, args...) }
func DebugLog(msg string, args ...any) { Logger().Debug(msg, args...) }
func Warn(msg string, args ...any)     { Logger().Warn(msg, args...) }
func Error(msg string, args ...any)    { Logger().Error(msg, args...) }

// DebugContext logs at DEBUG with the operation id from ctx, if any.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).DebugContext(ctx, msg, args...)
}

// WarnContext logs at WARN with the operation id from ctx, if any.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).WarnContext(ctx, msg, args...)
}

// Structured field names shared by every component.
const (
	KeyOpID        = "op_id"
	KeyOperation   = "op"
	KeyComponent   = "component"
	KeyDuration    = "duration_ms"
	KeyError       = "error"
	KeyAlarmID     = "alarm_id"
	KeyNativeID    = "native_id"
	KeyFireAt      = "fire_at"
	KeySyncStatus  = "sync_status"
	KeyDays        = "days"
	KeyEvent       = "event"
	KeySocketID    = "socket_id"
	KeyDeviceID    = "device_id"
	KeyStatus      = "status"
	KeyCount       = "count"
	KeyURL         = "url"
	KeyWebhook     = "webhook"
	KeyAttempt     = "attempt"
	KeyAuthEnabled = "authenticated"
)
