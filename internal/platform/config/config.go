// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. Deployment-specific
settings (navigation layout, watcher schedule, branding) live in a YAML file
loaded separately; see [LoadSettings].

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the catalog API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL). When unset, the DSN is assembled
	// from the database.* keys of the settings file instead.
	DatabaseURL string `env:"DATABASE_URL"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// SessionSecret signs the session tokens issued after a completed login.
	SessionSecret string `env:"SESSION_SECRET,required"`

	// OAuth2 / SSO integration. Leaving the client ID empty disables the
	// login flow; read endpoints stay public and mutations are rejected.
	OAuthClientID     string `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"OAUTH_CLIENT_SECRET"`
	OAuthAuthURL      string `env:"OAUTH_AUTH_URL"`
	OAuthTokenURL     string `env:"OAUTH_TOKEN_URL"`
	OAuthUserinfoURL  string `env:"OAUTH_USERINFO_URL"`
	OAuthRedirectURL  string `env:"OAUTH_REDIRECT_URL"`

	// SettingsFile is the path to the deployment settings YAML.
	SettingsFile string `env:"SETTINGS_FILE" envDefault:"./config.yaml"`

	// LogFile, when set, tees structured logs into a size-rotated file.
	LogFile string `env:"LOG_FILE"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether the SSO login flow is configured.
func (c *Config) AuthEnabled() bool {
	return c.OAuthClientID != ""
}
