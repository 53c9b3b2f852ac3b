package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - BOARDSYNC_CHANNEL_URL (string, e.g. "wss://api.example.com/ws")
// - BOARDSYNC_API_BASE_URL (string, e.g. "https://api.example.com")
// - BOARDSYNC_RECONNECT_DELAY (duration, e.g. "1s")
// - BOARDSYNC_MAX_RECONNECT_ATTEMPTS (int, e.g. 10)
// - BOARDSYNC_HANDSHAKE_TIMEOUT (duration, e.g. "10s")
// - BOARDSYNC_SEND_TIMEOUT (duration, e.g. "10s")
// - BOARDSYNC_POLL_INTERVAL (duration, e.g. "15s")
// - BOARDSYNC_FETCH_LIMIT (int, e.g. 30)
// - BOARDSYNC_LOG_LEVEL / BOARDSYNC_LOG_FILE (strings)
// - BOARDSYNC_METRICS_ENABLED (bool) / BOARDSYNC_METRICS_PORT (int)
// - BOARDSYNC_INFLUX_URL / _TOKEN / _ORG / _BUCKET (strings)
// - BOARDSYNC_INFLUX_INTERVAL (duration, e.g. "1m")
//
// The session credential (BOARDSYNC_TOKEN) is intentionally not handled here;
// it is read by the cmd layer and passed to Connect directly.
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyEndpointEnv(cfg); err != nil {
		return err
	}
	if err := applyChannelEnv(cfg); err != nil {
		return err
	}
	if err := applyReconcileEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	if err := applyInfluxEnv(cfg); err != nil {
		return err
	}
	return nil
}

func applyEndpointEnv(cfg *Config) error {
	if v := os.Getenv("BOARDSYNC_CHANNEL_URL"); v != "" {
		cfg.ChannelURL = v
	}
	if v := os.Getenv("BOARDSYNC_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("BOARDSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOARDSYNC_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return nil
}

func applyChannelEnv(cfg *Config) error {
	if err := setDurationEnv("BOARDSYNC_RECONNECT_DELAY", func(d time.Duration) { cfg.ReconnectDelay = d }); err != nil {
		return err
	}
	if err := setIntEnv("BOARDSYNC_MAX_RECONNECT_ATTEMPTS", func(n int) { cfg.MaxReconnectAttempts = n }); err != nil {
		return err
	}
	if err := setDurationEnv("BOARDSYNC_HANDSHAKE_TIMEOUT", func(d time.Duration) { cfg.HandshakeTimeout = d }); err != nil {
		return err
	}
	return setDurationEnv("BOARDSYNC_SEND_TIMEOUT", func(d time.Duration) { cfg.SendTimeout = d })
}

func applyReconcileEnv(cfg *Config) error {
	if err := setDurationEnv("BOARDSYNC_POLL_INTERVAL", func(d time.Duration) { cfg.PollInterval = d }); err != nil {
		return err
	}
	return setIntEnv("BOARDSYNC_FETCH_LIMIT", func(n int) { cfg.FetchLimit = n })
}

func applyMetricsEnv(cfg *Config) error {
	if err := setBoolEnv("BOARDSYNC_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	return setIntEnv("BOARDSYNC_METRICS_PORT", func(n int) { cfg.MetricsPort = n })
}

func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("BOARDSYNC_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("BOARDSYNC_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("BOARDSYNC_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("BOARDSYNC_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	return setDurationEnv("BOARDSYNC_INFLUX_INTERVAL", func(d time.Duration) { cfg.InfluxInterval = d })
}

// setBoolEnv is a small helper to parse boolean environment variables.
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setIntEnv(env string, setter func(int)) error {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(n)
	}
	return nil
}

func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}
