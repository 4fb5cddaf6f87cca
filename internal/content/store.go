// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content is the data access layer over the PocketBase backend.
//
// Every operation returns a value or a *Error whose Message is safe to show
// to visitors. Backend failure details are logged, not returned.
package content

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/osites/internal/cache"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

// Backend collections.
const (
	CollectionSites = "sites"
	CollectionPages = "pages"
	CollectionUsers = "users"
)

// Page change events passed to the Notifier.
const (
	EventPageCreated = "page.created"
	EventPageUpdated = "page.updated"
	EventPageDeleted = "page.deleted"
)

// ClientProvider hands out the backend client for a context, or nil when
// the backend must not be used.
type ClientProvider interface {
	Client(ctx context.Context) *pocketbase.Client
}

// Notifier receives page change events after successful mutations.
type Notifier interface {
	Notify(ctx context.Context, event string, page *model.Page)
}

// Options configures optional Store collaborators.
type Options struct {
	// Cache backs site and user lookups. Nil or a zero CacheTTL disables caching.
	Cache    cache.Cacher
	CacheTTL time.Duration
	Notifier Notifier
}

// Store performs all backend reads and writes.
type Store struct {
	provider ClientProvider
	logger   *slog.Logger
	sites    *cache.TypedCache[model.Site]
	users    *cache.TypedCache[model.User]
	notifier Notifier
}

// New creates a Store.
func New(provider ClientProvider, logger *slog.Logger, opts Options) *Store {
	return &Store{
		provider: provider,
		logger:   logger,
		sites:    cache.NewTypedCache[model.Site](opts.Cache, "site", opts.CacheTTL, logger),
		users:    cache.NewTypedCache[model.User](opts.Cache, "user", opts.CacheTTL, logger),
		notifier: opts.Notifier,
	}
}

// client returns the backend client bound to the visitor's auth store.
func (s *Store) client(ctx context.Context) (*pocketbase.Client, *Error) {
	c := s.provider.Client(ctx)
	if c == nil {
		return nil, unconfigured()
	}
	if as := pocketbase.AuthStoreFromContext(ctx); as != nil {
		c = c.WithAuthStore(as)
	}
	return c, nil
}

// cacheKey scopes a lookup cache key to the identity the backend sees for
// c, so a record loaded under one session is only served to that session.
// ok is false when a token is sent without a known user, and the lookup
// must then bypass the cache.
func cacheKey(c *pocketbase.Client, key string) (scoped string, ok bool) {
	as := c.AuthStore()
	if as == nil || as.Token() == "" {
		return "anon:" + key, true
	}
	if id := as.UserID(); id != "" {
		return "user:" + id + ":" + key, true
	}
	return "", false
}

// authenticated reports whether c carries a valid session.
func authenticated(c *pocketbase.Client) bool {
	as := c.AuthStore()
	return as != nil && as.IsValid()
}

// IsAuthenticated reports whether the visitor has a valid session. It is
// false whenever the backend is unavailable in ctx.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	c, err := s.client(ctx)
	if err != nil {
		return false
	}
	return authenticated(c)
}

// CurrentUser returns the authenticated visitor's record, or nil.
func (s *Store) CurrentUser(ctx context.Context) *pocketbase.AuthRecord {
	c, err := s.client(ctx)
	if err != nil || !authenticated(c) {
		return nil
	}
	return c.AuthStore().Record()
}

// CurrentUserID returns the authenticated visitor's id, or an empty string.
func (s *Store) CurrentUserID(ctx context.Context) string {
	if rec := s.CurrentUser(ctx); rec != nil {
		return rec.ID
	}
	return ""
}

func (s *Store) notify(ctx context.Context, event string, page *model.Page) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, event, page)
	}
}
