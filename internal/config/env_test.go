package config

import (
	"testing"
	"time"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BOARDSYNC_CHANNEL_URL", "wss://push.example.com/ws")
	t.Setenv("BOARDSYNC_API_BASE_URL", "https://api.example.com")
	t.Setenv("BOARDSYNC_RECONNECT_DELAY", "2s")
	t.Setenv("BOARDSYNC_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("BOARDSYNC_POLL_INTERVAL", "20s")
	t.Setenv("BOARDSYNC_FETCH_LIMIT", "10")
	t.Setenv("BOARDSYNC_METRICS_ENABLED", "true")
	t.Setenv("BOARDSYNC_METRICS_PORT", "9191")
	t.Setenv("BOARDSYNC_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.ChannelURL != "wss://push.example.com/ws" {
		t.Errorf("channel url override missing, got %q", cfg.ChannelURL)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Errorf("api base url override missing, got %q", cfg.APIBaseURL)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("reconnect delay override missing, got %v", cfg.ReconnectDelay)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("max reconnect attempts override missing, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.PollInterval != 20*time.Second {
		t.Errorf("poll interval override missing, got %v", cfg.PollInterval)
	}
	if cfg.FetchLimit != 10 {
		t.Errorf("fetch limit override missing, got %d", cfg.FetchLimit)
	}
	if !cfg.MetricsEnabled || cfg.MetricsPort != 9191 {
		t.Errorf("metrics overrides missing, got enabled=%v port=%d", cfg.MetricsEnabled, cfg.MetricsPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level override missing, got %q", cfg.LogLevel)
	}
}

func TestApplyEnvOverridesInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"bad duration", "BOARDSYNC_POLL_INTERVAL", "soon"},
		{"bad int", "BOARDSYNC_FETCH_LIMIT", "many"},
		{"bad bool", "BOARDSYNC_METRICS_ENABLED", "yep"},
		{"bad reconnect delay", "BOARDSYNC_RECONNECT_DELAY", "1 second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if err := ApplyEnvOverrides(DefaultConfig()); err == nil {
				t.Fatalf("expected error for %s=%s", tt.env, tt.val)
			}
		})
	}
}

func TestApplyEnvOverridesEmptyEnvKeepsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	want := *cfg
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if *cfg != want {
		t.Errorf("config changed without env set: got %+v want %+v", *cfg, want)
	}
}
