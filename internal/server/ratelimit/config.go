package ratelimit

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, path.Match pattern, or prefix ending in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// key identifies the bucket family an endpoint config owns.
func (e *EndpointConfig) key() string {
	return e.Method + " " + e.Path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

type envSettings struct {
	Enabled         bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	DefaultLimit    int           `envconfig:"RATE_LIMIT_DEFAULT_LIMIT" default:"600"`
	DefaultWindow   time.Duration `envconfig:"RATE_LIMIT_DEFAULT_WINDOW" default:"1m"`
	CleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"5m"`
	Whitelist       []string      `envconfig:"RATE_LIMIT_WHITELIST"`
	Blacklist       []string      `envconfig:"RATE_LIMIT_BLACKLIST"`
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() (*Config, error) {
	var env envSettings
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to load rate limit config: %w", err)
	}
	if !env.Enabled {
		return &Config{Enabled: false}, nil
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    env.DefaultLimit,
		DefaultWindow:   env.DefaultWindow,
		CleanupInterval: env.CleanupInterval,
		Whitelist:       ipSet(env.Whitelist),
		Blacklist:       ipSet(env.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}, nil
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Credential guessing and full pipeline runs are the expensive paths.
		{Path: "/auth/login", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		{Path: "/cycles", Method: "POST", Limit: 6, Window: time.Hour, Burst: 1},

		// Token verification is cheap but unauthenticated.
		{Path: "/api/action", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},

		// Writes
		{Path: "/items", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/items/*/accept", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/items/*/reject", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/items/", Method: "DELETE", Limit: 120, Window: time.Minute, Burst: 20},

		// Reads use the default limit; /health and /metrics are unlimited.
	}
}

func ipSet(ips []string) map[string]bool {
	set := make(map[string]bool, len(ips))
	for _, ip := range ips {
		if ip != "" {
			set[ip] = true
		}
	}
	return set
}
