// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// TypedCache stores values of one type as JSON under a key namespace.
// A nil *TypedCache is valid and caches nothing.
type TypedCache[T any] struct {
	cache     Cacher
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewTypedCache returns a typed view over c. Keys are prefixed with
// namespace and a colon. A non-positive ttl disables caching and returns nil.
func NewTypedCache[T any](c Cacher, namespace string, ttl time.Duration, logger *slog.Logger) *TypedCache[T] {
	if c == nil || ttl <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedCache[T]{cache: c, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *TypedCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

// Get returns the cached value and true on a hit.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, c.key(key))
	if err != nil {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("dropping undecodable cache entry", "key", c.key(key), "error", err)
		_ = c.cache.Delete(ctx, c.key(key))
		return nil, false
	}
	return &value, true
}

// Set stores value. Failures are logged and otherwise ignored.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value *T) {
	if c == nil || value == nil {
		return
	}
	data, err := json.Marshal(value)
	if err == nil {
		err = c.cache.Set(ctx, c.key(key), data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("cache write failed", "key", c.key(key), "error", err)
	}
}

// Delete removes a key.
func (c *TypedCache[T]) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	_ = c.cache.Delete(ctx, c.key(key))
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors from load are returned as-is and never cached.
func (c *TypedCache[T]) GetOrLoad(ctx context.Context, key string, load func() (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, v)
	return v, nil
}
