// Package config holds runtime configuration for boardsync.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the sync core. The session
// credential is deliberately not part of this struct: it is supplied to
// channel.Manager.Connect at runtime and never persisted.
type Config struct {
	// ChannelURL is the websocket endpoint of the push channel
	// (e.g. "wss://api.example.com/ws").
	ChannelURL string `json:"channel_url" yaml:"channel_url"`
	// APIBaseURL is the base URL of the HTTP collaborator
	// (e.g. "https://api.example.com").
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`

	// ReconnectDelay is the fixed delay between reconnection attempts after
	// an unexpected channel drop.
	ReconnectDelay time.Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	// MaxReconnectAttempts bounds automatic reconnection. Once exhausted the
	// channel stays Disconnected until an explicit Connect.
	MaxReconnectAttempts int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	// HandshakeTimeout bounds the wait for the server's connection ack.
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	// SendTimeout bounds the wait for a send-message acknowledgment.
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`

	// PollInterval is the period of the full notification refresh.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// FetchLimit is the number of notifications requested per refresh.
	FetchLimit int `json:"fetch_limit" yaml:"fetch_limit"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`
}

// DefaultConfig returns a sane default configuration.
func DefaultConfig() *Config {
	return &Config{
		ChannelURL: "ws://localhost:4000/ws",
		APIBaseURL: "http://localhost:4000",

		ReconnectDelay:       1 * time.Second,
		MaxReconnectAttempts: 10,
		HandshakeTimeout:     10 * time.Second,
		SendTimeout:          10 * time.Second,

		PollInterval: 15 * time.Second,
		FetchLimit:   30,

		LogLevel: "info",

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9090,

		InfluxInterval: 1 * time.Minute,
	}
}

// Validate returns a list of non-fatal configuration warnings.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.ReconnectDelay <= 0, "reconnect_delay must be positive; reconnection will be disabled"},
		{c.MaxReconnectAttempts < 0, "max_reconnect_attempts is negative; treating as zero"},
		{c.PollInterval < time.Second, "poll_interval below 1s will hammer the notification endpoint"},
		{c.FetchLimit <= 0, "fetch_limit must be positive; refreshes will return nothing"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.InfluxBucket != "" && c.InfluxURL == "", "influx bucket provided but URL is missing"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if w := validateChannelURL(c.ChannelURL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// validateChannelURL returns a warning when the channel URL is missing or
// does not use a websocket scheme, or empty when valid.
func validateChannelURL(raw string) string {
	if raw == "" {
		return "channel_url is empty; the push channel cannot be established"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid channel_url %q: %v", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Sprintf("channel_url %q does not use ws:// or wss://", raw)
	}
	return ""
}

// LoadConfigFromFile loads config from a YAML/JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
