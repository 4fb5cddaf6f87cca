// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend owns the process-wide PocketBase client.
//
// The client is created lazily on first use and only handed out to
// interactive contexts, which the HTTP stack marks with WithInteractive.
// Background jobs and command line paths never reach the backend through
// Provider.Client.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/olegiv/osites/internal/pocketbase"
)

// ErrNotConfigured is returned by Ping when no backend URL is set.
var ErrNotConfigured = errors.New("backend URL not configured")

// Config configures a Provider.
type Config struct {
	URL        string
	HTTPClient *http.Client
	Options    []pocketbase.Option
}

// Provider lazily constructs and shares a single backend client.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	once     sync.Once
	client   *pocketbase.Client
	warnOnce sync.Once
}

// NewProvider creates a provider. No client is built until first use.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logger}
}

// Configured reports whether a backend URL is set.
func (p *Provider) Configured() bool {
	return p.cfg.URL != ""
}

// Client returns the shared client, or nil when ctx is not interactive or
// no backend URL is configured. A missing URL is logged once per process.
func (p *Provider) Client(ctx context.Context) *pocketbase.Client {
	if !IsInteractive(ctx) {
		return nil
	}
	return p.shared()
}

// Ping checks backend health. It does not require an interactive context.
func (p *Provider) Ping(ctx context.Context) error {
	c := p.shared()
	if c == nil {
		return ErrNotConfigured
	}
	return c.Health(ctx)
}

func (p *Provider) shared() *pocketbase.Client {
	if !p.Configured() {
		p.warnOnce.Do(func() {
			p.logger.Warn("backend URL missing, set OSITES_PB_URL in your environment")
		})
		return nil
	}
	p.once.Do(func() {
		opts := append([]pocketbase.Option{pocketbase.WithLogger(p.logger)}, p.cfg.Options...)
		if p.cfg.HTTPClient != nil {
			opts = append(opts, pocketbase.WithHTTPClient(p.cfg.HTTPClient))
		}
		p.client = pocketbase.New(p.cfg.URL, opts...)
		p.logger.Info("backend client created", "url", p.cfg.URL)
	})
	return p.client
}

type interactiveKey struct{}

// WithInteractive marks ctx as belonging to an interactive request.
func WithInteractive(ctx context.Context) context.Context {
	return context.WithValue(ctx, interactiveKey{}, true)
}

// IsInteractive reports whether ctx was marked by WithInteractive.
func IsInteractive(ctx context.Context) bool {
	v, _ := ctx.Value(interactiveKey{}).(bool)
	return v
}
