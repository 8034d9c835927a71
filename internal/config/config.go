// Package config defines process configuration and its loading hooks.
//
// Conventions:
//   - New() builds a Config populated with defaults.
//   - Load(ctx) layers defaults, an optional YAML file and AUDITDECK_ env vars.
//   - The remote API origin is only ever read here and passed down explicitly.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the dashboard HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the origin of the remote analysis API.
	APIBaseURL string `koanf:"api_base_url"`

	// HTTPTimeoutMS bounds one-shot remote requests. Streams are not bounded.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// StreamQueueSize bounds the frames buffered between a stream reader and
	// its applier.
	StreamQueueSize int `koanf:"stream_queue_size"`

	// Reconnect backoff for live streams.
	ReconnectInitialMS   int     `koanf:"reconnect_initial_ms"`
	ReconnectMaxMS       int     `koanf:"reconnect_max_ms"`
	ReconnectMultiplier  float64 `koanf:"reconnect_multiplier"`
	ReconnectMaxAttempts int     `koanf:"reconnect_max_attempts"` // 0 = unlimited

	// SummaryRefresh is a cron spec for refreshing the count cards.
	SummaryRefresh string `koanf:"summary_refresh"`

	// ToastCapacity bounds the in-memory notification log.
	ToastCapacity int `koanf:"toast_capacity"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		APIBaseURL:           "http://localhost:8000",
		HTTPTimeoutMS:        10_000,
		StreamQueueSize:      1_024,
		ReconnectInitialMS:   500,
		ReconnectMaxMS:       30_000,
		ReconnectMultiplier:  2.0,
		ReconnectMaxAttempts: 0,
		SummaryRefresh:       "@every 30s",
		ToastCapacity:        50,
	}
}

// HTTPTimeout returns HTTPTimeoutMS as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// ReconnectInitial returns ReconnectInitialMS as a duration.
func (c *Config) ReconnectInitial() time.Duration {
	return time.Duration(c.ReconnectInitialMS) * time.Millisecond
}

// ReconnectMax returns ReconnectMaxMS as a duration.
func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMS) * time.Millisecond
}
