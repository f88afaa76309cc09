// Package config provides centralized configuration for timely runtime values.
package config

import (
	"os"
	"strconv"
	"time"
)

// RuntimeConfig holds tunables that are not part of the user-facing
// settings file. Every value can be overridden with a TIMELY_* variable.
type RuntimeConfig struct {
	// HTTP client configuration
	HTTP HTTPConfig

	// Correction queue configuration
	Corrections CorrectionConfig

	// Webhook retry queue configuration
	Webhooks WebhookConfig

	// Realtime channel configuration
	Realtime RealtimeConfig

	// Local native alarm gateway configuration
	Gateway GatewayConfig

	// Session configuration
	Session SessionConfig

	// Daemon configuration
	Daemon DaemonConfig
}

// HTTPConfig holds HTTP client configuration.
type HTTPConfig struct {
	// Timeout is the default HTTP request timeout.
	// Default: 30s
	Timeout time.Duration

	// MaxRetries is the maximum number of webhook delivery attempts.
	// Default: 3
	MaxRetries int

	// RetryDelays are the delays between webhook delivery attempts.
	// Default: [0s, 5s, 30s]
	RetryDelays []time.Duration
}

// CorrectionConfig holds configuration of the background queue that pushes
// noRepeat corrections back to the server.
type CorrectionConfig struct {
	// CheckInterval is how often the queue looks for tasks due for retry.
	// Default: 10s
	CheckInterval time.Duration

	// BackoffSchedule is the delay before each retry of a failed correction.
	// Default: [5s, 30s, 2m]
	BackoffSchedule []time.Duration

	// MaxAttempts is the number of attempts before a correction is dropped.
	// Default: 4
	MaxAttempts int
}

// WebhookConfig holds configuration of the queue that retries ring
// notifications whose delivery failed.
type WebhookConfig struct {
	// CheckInterval is how often the queue looks for deliveries due for retry.
	// Default: 30s
	CheckInterval time.Duration

	// BackoffSchedule is the delay before each queued retry.
	// Default: [1m, 5m, 15m]
	BackoffSchedule []time.Duration

	// MaxRetries is the number of queued retries before a delivery is dropped.
	// Default: 3
	MaxRetries int

	// MaxAge drops a queued delivery this long after the ring it reports.
	// Default: 30m
	MaxAge time.Duration
}

// RealtimeConfig holds realtime channel configuration.
type RealtimeConfig struct {
	// HandshakeTimeout bounds the websocket opening handshake.
	// Default: 10s
	HandshakeTimeout time.Duration

	// ReconnectDelay is the fixed wait between reconnect attempts.
	// Default: 5s
	ReconnectDelay time.Duration

	// EventBuffer is the capacity of the delivered event channel.
	// Default: 64
	EventBuffer int
}

// GatewayConfig holds local native gateway configuration.
type GatewayConfig struct {
	// RingDuration is how long a fired alarm rings before it is dismissed.
	// Default: 30s
	RingDuration time.Duration

	// ListenerBuffer is the capacity of each listener's event queue.
	// Default: 16
	ListenerBuffer int
}

// SessionConfig holds auth session configuration.
type SessionConfig struct {
	// RefreshSkew is how long before access token expiry a refresh is
	// attempted proactively.
	// Default: 1m
	RefreshSkew time.Duration
}

// DaemonConfig holds daemon-related configuration.
type DaemonConfig struct {
	// ShutdownTimeout bounds graceful shutdown of the metrics server.
	// Default: 5s
	ShutdownTimeout time.Duration

	// StartupWait is how long `daemon start` waits before checking that the
	// background process came up.
	// Default: 500ms
	StartupWait time.Duration

	// KillTimeout is how long `daemon stop` waits before killing the process.
	// Default: 5s
	KillTimeout time.Duration

	// LogMaxSize is the daemon log size that triggers rotation, in bytes.
	// Default: 10MiB
	LogMaxSize int
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelays: []time.Duration{
				0,
				5 * time.Second,
				30 * time.Second,
			},
		},
		Corrections: CorrectionConfig{
			CheckInterval: 10 * time.Second,
			BackoffSchedule: []time.Duration{
				5 * time.Second,
				30 * time.Second,
				2 * time.Minute,
			},
			MaxAttempts: 4,
		},
		Webhooks: WebhookConfig{
			CheckInterval: 30 * time.Second,
			BackoffSchedule: []time.Duration{
				time.Minute,
				5 * time.Minute,
				15 * time.Minute,
			},
			MaxRetries: 3,
			MaxAge:     30 * time.Minute,
		},
		Realtime: RealtimeConfig{
			HandshakeTimeout: 10 * time.Second,
			ReconnectDelay:   5 * time.Second,
			EventBuffer:      64,
		},
		Gateway: GatewayConfig{
			RingDuration:   30 * time.Second,
			ListenerBuffer: 16,
		},
		Session: SessionConfig{
			RefreshSkew: time.Minute,
		},
		Daemon: DaemonConfig{
			ShutdownTimeout: 5 * time.Second,
			StartupWait:     500 * time.Millisecond,
			KillTimeout:     5 * time.Second,
			LogMaxSize:      10 << 20,
		},
	}
}

// Global holds the global runtime configuration instance.
// It is initialized with defaults and can be overridden via environment variables.
var Global = initGlobal()

func initGlobal() *RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	cfg.loadFromEnv()
	return cfg
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

// loadFromEnv loads configuration overrides from environment variables.
func (c *RuntimeConfig) loadFromEnv() {
	// HTTP configuration
	envDuration("TIMELY_HTTP_TIMEOUT", &c.HTTP.Timeout)
	envInt("TIMELY_HTTP_MAX_RETRIES", &c.HTTP.MaxRetries)

	// Correction queue
	envDuration("TIMELY_CORRECTION_INTERVAL", &c.Corrections.CheckInterval)
	envInt("TIMELY_CORRECTION_MAX_ATTEMPTS", &c.Corrections.MaxAttempts)

	// Webhooks
	envDuration("TIMELY_WEBHOOK_RETRY_INTERVAL", &c.Webhooks.CheckInterval)
	envInt("TIMELY_WEBHOOK_MAX_RETRIES", &c.Webhooks.MaxRetries)
	envDuration("TIMELY_WEBHOOK_MAX_AGE", &c.Webhooks.MaxAge)

	// Realtime
	envDuration("TIMELY_REALTIME_HANDSHAKE_TIMEOUT", &c.Realtime.HandshakeTimeout)
	envDuration("TIMELY_REALTIME_RECONNECT_DELAY", &c.Realtime.ReconnectDelay)
	envInt("TIMELY_REALTIME_EVENT_BUFFER", &c.Realtime.EventBuffer)

	// Gateway
	envDuration("TIMELY_RING_DURATION", &c.Gateway.RingDuration)
	envInt("TIMELY_GATEWAY_LISTENER_BUFFER", &c.Gateway.ListenerBuffer)

	// Session
	envDuration("TIMELY_REFRESH_SKEW", &c.Session.RefreshSkew)

	// Daemon
	envDuration("TIMELY_SHUTDOWN_TIMEOUT", &c.Daemon.ShutdownTimeout)
	envDuration("TIMELY_DAEMON_STARTUP_WAIT", &c.Daemon.StartupWait)
	envDuration("TIMELY_DAEMON_KILL_TIMEOUT", &c.Daemon.KillTimeout)
}

// ReloadFromEnv reloads configuration from environment variables.
func (c *RuntimeConfig) ReloadFromEnv() {
	c.loadFromEnv()
}

// Reset resets the configuration to defaults.
// This is primarily useful for testing.
func (c *RuntimeConfig) Reset() {
	defaults := DefaultRuntimeConfig()
	*c = *defaults
}

// BackoffFor returns the webhook retry delay after the given number of
// queued attempts, clamped to the last entry of the schedule.
func (c *WebhookConfig) BackoffFor(attempts int) time.Duration {
	if len(c.BackoffSchedule) == 0 {
		return c.CheckInterval
	}
	if attempts >= len(c.BackoffSchedule) {
		return c.BackoffSchedule[len(c.BackoffSchedule)-1]
	}
	return c.BackoffSchedule[attempts]
}

// BackoffFor returns the correction retry delay after the given number of
// failed attempts, clamped to the last entry of the schedule.
func (c *CorrectionConfig) BackoffFor(attempts int) time.Duration {
	if len(c.BackoffSchedule) == 0 {
		return 0
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.BackoffSchedule) {
		idx = len(c.BackoffSchedule) - 1
	}
	return c.BackoffSchedule[idx]
}
