package config

import (
	"fmt"
)

// JWTConfig holds configuration for operator session tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig builds a JWT configuration from the loaded settings.
func NewJWTConfig(c *Config) (*JWTConfig, error) {
	config := &JWTConfig{
		Secret:          c.JWTSecret,
		ExpirationHours: c.JWTExpirationHours,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
