package config

import (
	"testing"
	"time"
)

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()

	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected HTTP.Timeout = 30s, got %v", cfg.HTTP.Timeout)
	}
	if len(cfg.HTTP.RetryDelays) != 3 {
		t.Errorf("expected HTTP.RetryDelays length = 3, got %d", len(cfg.HTTP.RetryDelays))
	}

	if cfg.Corrections.CheckInterval != 10*time.Second {
		t.Errorf("expected Corrections.CheckInterval = 10s, got %v", cfg.Corrections.CheckInterval)
	}
	if cfg.Corrections.MaxAttempts != 4 {
		t.Errorf("expected Corrections.MaxAttempts = 4, got %d", cfg.Corrections.MaxAttempts)
	}

	if cfg.Realtime.ReconnectDelay != 5*time.Second {
		t.Errorf("expected Realtime.ReconnectDelay = 5s, got %v", cfg.Realtime.ReconnectDelay)
	}
	if cfg.Gateway.RingDuration != 30*time.Second {
		t.Errorf("expected Gateway.RingDuration = 30s, got %v", cfg.Gateway.RingDuration)
	}
	if cfg.Session.RefreshSkew != time.Minute {
		t.Errorf("expected Session.RefreshSkew = 1m, got %v", cfg.Session.RefreshSkew)
	}
}

func TestGlobalConfigExists(t *testing.T) {
	if Global == nil {
		t.Fatal("Global config should not be nil")
	}
}

func TestConfigReset(t *testing.T) {
	Global.Realtime.ReconnectDelay = time.Millisecond

	Global.Reset()

	if Global.Realtime.ReconnectDelay != 5*time.Second {
		t.Errorf("expected Realtime.ReconnectDelay = 5s after reset, got %v", Global.Realtime.ReconnectDelay)
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("TIMELY_HTTP_TIMEOUT", "60s")
	t.Setenv("TIMELY_CORRECTION_MAX_ATTEMPTS", "7")
	t.Setenv("TIMELY_REALTIME_RECONNECT_DELAY", "250ms")
	t.Setenv("TIMELY_RING_DURATION", "2s")

	cfg := DefaultRuntimeConfig()
	cfg.loadFromEnv()

	if cfg.HTTP.Timeout != 60*time.Second {
		t.Errorf("expected HTTP.Timeout = 60s from env, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Corrections.MaxAttempts != 7 {
		t.Errorf("expected Corrections.MaxAttempts = 7 from env, got %d", cfg.Corrections.MaxAttempts)
	}
	if cfg.Realtime.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("expected Realtime.ReconnectDelay = 250ms from env, got %v", cfg.Realtime.ReconnectDelay)
	}
	if cfg.Gateway.RingDuration != 2*time.Second {
		t.Errorf("expected Gateway.RingDuration = 2s from env, got %v", cfg.Gateway.RingDuration)
	}
}

func TestConfigLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("TIMELY_HTTP_TIMEOUT", "invalid")
	t.Setenv("TIMELY_CORRECTION_MAX_ATTEMPTS", "-2")

	cfg := DefaultRuntimeConfig()
	cfg.loadFromEnv()

	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected HTTP.Timeout = 30s (default), got %v", cfg.HTTP.Timeout)
	}
	if cfg.Corrections.MaxAttempts != 4 {
		t.Errorf("expected Corrections.MaxAttempts = 4 (default), got %d", cfg.Corrections.MaxAttempts)
	}
}

func TestBackoffFor(t *testing.T) {
	cfg := DefaultRuntimeConfig()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 30 * time.Second},
		{3, 2 * time.Minute},
		{9, 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := cfg.Corrections.BackoffFor(tt.attempts); got != tt.want {
			t.Errorf("BackoffFor(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}

	empty := CorrectionConfig{}
	if got := empty.BackoffFor(3); got != 0 {
		t.Errorf("BackoffFor on empty schedule = %v, want 0", got)
	}
}
