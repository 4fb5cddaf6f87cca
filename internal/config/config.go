// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains example secrets that must never be used.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// PBURL is the PocketBase base URL. Empty disables the backend.
	PBURL         string `env:"OSITES_PB_URL"`
	SessionSecret string `env:"OSITES_SESSION_SECRET,required"`
	ServerHost    string `env:"OSITES_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"OSITES_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"OSITES_ENV" envDefault:"development"`
	LogLevel      string `env:"OSITES_LOG_LEVEL" envDefault:"info"`

	// PlatformHosts serve user namespaces; any other host is a site domain.
	PlatformHosts  []string      `env:"OSITES_PLATFORM_HOSTS" envSeparator:"," envDefault:"localhost"`
	RequestTimeout time.Duration `env:"OSITES_REQUEST_TIMEOUT" envDefault:"30s"`

	RedisURL     string `env:"OSITES_REDIS_URL"`
	CachePrefix  string `env:"OSITES_CACHE_PREFIX" envDefault:"osites:"`
	CacheTTL     int    `env:"OSITES_CACHE_TTL" envDefault:"60"` // seconds, 0 disables
	CacheMaxSize int    `env:"OSITES_CACHE_MAX_SIZE" envDefault:"10000"`

	WebhookURLs   []string `env:"OSITES_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret string   `env:"OSITES_WEBHOOK_SECRET"`

	SentryDSN string `env:"OSITES_SENTRY_DSN"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the listen address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// BackendConfigured reports whether a PocketBase URL is set.
func (c Config) BackendConfigured() bool {
	return c.PBURL != ""
}

// BackendOrigins returns the backend's scheme and host, the origin that
// site logos and other record files are served from. It is empty when no
// backend is configured.
func (c Config) BackendOrigins() []string {
	u, err := url.Parse(c.PBURL)
	if c.PBURL == "" || err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// CacheDuration returns the lookup cache TTL.
func (c Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// WebhooksEnabled reports whether page events are delivered anywhere.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum session secret length in bytes.
const MinSessionSecretLength = 32

// Load parses environment variables and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("OSITES_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("OSITES_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return errors.New("OSITES_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	switch c.Env {
	case "development", "production":
	default:
		return fmt.Errorf("OSITES_ENV must be development or production, got %q", c.Env)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("OSITES_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("OSITES_SERVER_PORT out of range: %d", c.ServerPort)
	}

	if c.PBURL != "" {
		c.PBURL = strings.TrimRight(c.PBURL, "/")
		u, err := url.Parse(c.PBURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("OSITES_PB_URL must be an absolute http(s) URL, got %q", c.PBURL)
		}
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("OSITES_CACHE_TTL must not be negative, got %d", c.CacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("OSITES_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	hosts := c.PlatformHosts[:0]
	for _, h := range c.PlatformHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, strings.ToLower(h))
		}
	}
	c.PlatformHosts = hosts

	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" {
		return errors.New("OSITES_WEBHOOK_SECRET is required when OSITES_WEBHOOK_URLS is set")
	}
	return nil
}

// hasMinimumEntropy checks that a secret mixes at least 3 character classes.
func hasMinimumEntropy(s string) bool {
	classes := 0
	for _, set := range []string{
		"abcdefghijklmnopqrstuvwxyz",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"0123456789",
		"!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\",
	} {
		if strings.ContainsAny(s, set) {
			classes++
		}
	}
	return classes >= 3
}
