package config

import (
	"fmt"

	"github.com/docker/go-units"
)

const (
	// DefaultAPIListen is the default listen address of the API server.
	DefaultAPIListen = ":8080"

	// DefaultMaxBodySize is the default request body limit.
	DefaultMaxBodySize = "10MB"

	// DefaultRequestsPerMinute is the default per-IP rate limit.
	DefaultRequestsPerMinute = 120
)

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server APIServerConfig `yaml:"server" mapstructure:"server"`
	Auth   APIAuthConfig   `yaml:"auth" mapstructure:"auth"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	MaxBodySize string          `yaml:"max_body_size,omitempty" mapstructure:"max_body_size"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// APIAuthConfig contains authentication settings.
type APIAuthConfig struct {
	Basic BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a user allowed to call the API. PasswordHash is a
// bcrypt hash.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

func (c *APIConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultAPIListen
	}

	if c.Server.MaxBodySize == "" {
		c.Server.MaxBodySize = DefaultMaxBodySize
	}

	if c.Server.RateLimit.RequestsPerMinute == 0 {
		c.Server.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
}

// MaxBodyBytes returns the parsed request body limit.
func (c *APIServerConfig) MaxBodyBytes() (int64, error) {
	size, err := units.RAMInBytes(c.MaxBodySize)
	if err != nil {
		return 0, fmt.Errorf("parsing max_body_size %q: %w", c.MaxBodySize, err)
	}

	return size, nil
}

// ValidateAPI checks the API section for errors.
func (c *Config) ValidateAPI() error {
	if c.API.Server.Listen == "" {
		return fmt.Errorf("api.server.listen is required")
	}

	size, err := c.API.Server.MaxBodyBytes()
	if err != nil {
		return fmt.Errorf("api.server: %w", err)
	}

	if size <= 0 {
		return fmt.Errorf("api.server.max_body_size must be positive")
	}

	if c.API.Server.RateLimit.Enabled && c.API.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.server.rate_limit.requests_per_minute must be positive")
	}

	if !c.API.Auth.Basic.Enabled {
		return nil
	}

	if len(c.API.Auth.Basic.Users) == 0 {
		return fmt.Errorf("api.auth.basic: at least one user must be configured")
	}

	seen := make(map[string]struct{}, len(c.API.Auth.Basic.Users))

	for i, user := range c.API.Auth.Basic.Users {
		if user.Username == "" {
			return fmt.Errorf("api.auth.basic.users[%d]: username is required", i)
		}

		if _, exists := seen[user.Username]; exists {
			return fmt.Errorf("api.auth.basic.users[%d]: duplicate username %q", i, user.Username)
		}

		seen[user.Username] = struct{}{}

		if user.PasswordHash == "" {
			return fmt.Errorf("api.auth.basic.users[%d]: password_hash is required", i)
		}
	}

	return nil
}
