// Package config loads gateway configuration from the environment.
//
// Only the deployment surface is environment-driven: the upstream origin,
// listen address, timeouts, CORS allowlist and log settings. Rate limit
// windows and caps, and the default path classification table, are
// deploy-time constants owned by their packages.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the gateway runtime configuration
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Routes   RoutesConfig
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr            string        `env:"GATEWAY_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"GATEWAY_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `env:"GATEWAY_WRITE_TIMEOUT,default=60s"`
	IdleTimeout     time.Duration `env:"GATEWAY_IDLE_TIMEOUT,default=120s"`
	ShutdownTimeout time.Duration `env:"GATEWAY_SHUTDOWN_TIMEOUT,default=15s"`
}

// UpstreamConfig contains the proxied backend settings
type UpstreamConfig struct {
	// BaseURL is the origin every /api request is forwarded to.
	BaseURL string        `env:"UPSTREAM_BASE_URL,default=http://localhost:4000"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT,default=30s"`
}

// LoggingConfig contains log settings
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// CORSConfig contains the browser origin allowlist
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000;http://localhost:5173"`
}

// RoutesConfig points at the optional route table override file
type RoutesConfig struct {
	Path string `env:"ROUTES_CONFIG,default=config/routes.yaml"`
}

// Load decodes configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_BASE_URL %q: %w", c.Upstream.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("UPSTREAM_BASE_URL must be http or https, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}
