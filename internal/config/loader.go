package config

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix   = "AUDITDECK_"
	EnvFilePath = "AUDITDECK_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if AUDITDECK_CONFIG is set
//  3. env (prefix AUDITDECK_)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvFilePath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, loadFailed(err)
		}
	}

	// AUDITDECK_API_BASE_URL -> api_base_url. Underscores are kept so keys
	// line up with the flat koanf tags on Config.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, loadFailed(err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, loadFailed(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	u, err := url.Parse(strings.TrimSpace(c.APIBaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("api_base_url must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.StreamQueueSize < 1 {
		return invalid("stream_queue_size must be positive")
	}
	if c.HTTPTimeoutMS < 1 {
		return invalid("http_timeout_ms must be positive")
	}
	if c.ReconnectInitialMS < 1 || c.ReconnectMaxMS < c.ReconnectInitialMS {
		return invalid("reconnect_initial_ms must be positive and not above reconnect_max_ms")
	}
	if c.ReconnectMultiplier < 1 {
		return invalid("reconnect_multiplier must be >= 1")
	}
	if c.ReconnectMaxAttempts < 0 {
		return invalid("reconnect_max_attempts must not be negative")
	}
	return nil
}

// Watch re-reads the YAML file named by AUDITDECK_CONFIG whenever it changes
// and hands the reloaded config to onChange. It is a no-op without a file.
// The watcher stops when ctx is done.
func Watch(ctx context.Context, onChange func(*Config, error)) error {
	path := os.Getenv(EnvFilePath)
	if path == "" {
		return nil
	}
	provider := file.Provider(path)
	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			onChange(nil, loadFailed(err))
			return
		}
		onChange(Load(ctx))
	})
	if err != nil {
		return loadFailed(err)
	}
	go func() {
		<-ctx.Done()
		_ = provider.Unwatch()
	}()
	return nil
}
