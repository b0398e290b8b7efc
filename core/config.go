package core

import (
	"strings"
	"time"
)

const (
	// DefaultAPIHost is the public platform API host.
	DefaultAPIHost = "api.github.com"

	// DefaultTokenTTLSeconds keeps cached installation tokens one minute
	// short of the platform's one-hour token lifetime.
	DefaultTokenTTLSeconds = 3540

	DefaultMaxInFlight   = 1
	DefaultMinIntervalMS = 0
)

type RateLimitConfig struct {
	MaxInFlight   int `koanf:"max_in_flight" mapstructure:"max_in_flight"`
	MinIntervalMS int `koanf:"min_interval_ms" mapstructure:"min_interval_ms"`
}

func (c RateLimitConfig) MinInterval() time.Duration {
	if c.MinIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

type Config struct {
	AppID           int64           `koanf:"app_id" mapstructure:"app_id"`
	PrivateKey      string          `koanf:"private_key" mapstructure:"private_key"`
	Host            string          `koanf:"host" mapstructure:"host"`
	TokenTTLSeconds int             `koanf:"token_ttl_seconds" mapstructure:"token_ttl_seconds"`
	Debug           bool            `koanf:"debug" mapstructure:"debug"`
	RateLimit       RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		Host:            DefaultAPIHost,
		TokenTTLSeconds: DefaultTokenTTLSeconds,
		RateLimit: RateLimitConfig{
			MaxInFlight:   DefaultMaxInFlight,
			MinIntervalMS: DefaultMinIntervalMS,
		},
	}
}

func (c Config) Validate() error {
	if c.AppID <= 0 {
		return BadConfigError("core: app_id is required", nil)
	}
	if strings.TrimSpace(c.PrivateKey) == "" {
		return BadConfigError("core: private_key is required", nil)
	}
	if _, err := c.APIBaseURL(); err != nil {
		return err
	}
	if c.TokenTTLSeconds < 0 {
		return BadConfigError("core: token_ttl_seconds must not be negative", map[string]any{
			"token_ttl_seconds": c.TokenTTLSeconds,
		})
	}
	if c.RateLimit.MaxInFlight < 0 || c.RateLimit.MinIntervalMS < 0 {
		return BadConfigError("core: rate_limit values must not be negative", map[string]any{
			"max_in_flight":   c.RateLimit.MaxInFlight,
			"min_interval_ms": c.RateLimit.MinIntervalMS,
		})
	}
	return nil
}

// TokenTTL returns the installation-token cache TTL.
func (c Config) TokenTTL() time.Duration {
	seconds := c.TokenTTLSeconds
	if seconds <= 0 {
		seconds = DefaultTokenTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

// APIBaseURL resolves the REST API base URL. The host override must be a
// bare host: a scheme prefix or path segment is rejected before any network
// attempt. Enterprise hosts are addressed under /api/v3.
func (c Config) APIBaseURL() (string, error) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = DefaultAPIHost
	}
	if strings.Contains(host, "://") {
		return "", BadConfigError(
			"core: host override must be a bare host, remove the scheme prefix",
			map[string]any{"host": host},
		)
	}
	if strings.ContainsAny(host, "/ ") {
		return "", BadConfigError(
			"core: host override must be a bare host without path segments",
			map[string]any{"host": host},
		)
	}
	if strings.EqualFold(host, DefaultAPIHost) {
		return "https://" + DefaultAPIHost, nil
	}
	return "https://" + host + "/api/v3", nil
}
