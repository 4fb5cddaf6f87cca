// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testSite struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

func TestTypedCache_GetOrLoad(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[testSite](mem, "site", time.Minute, nil)
	ctx := context.Background()

	calls := 0
	load := func() (*testSite, error) {
		calls++
		return &testSite{ID: "s1", Domain: "example.com"}, nil
	}

	for range 3 {
		got, err := tc.GetOrLoad(ctx, "example.com", load)
		if err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
		if got.ID != "s1" {
			t.Errorf("ID = %q", got.ID)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}
	if _, err := mem.Get(ctx, "site:example.com"); err != nil {
		t.Errorf("namespaced key missing: %v", err)
	}
}

func TestTypedCache_ErrorsNotCached(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[testSite](mem, "site", time.Minute, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	calls := 0
	for range 2 {
		_, err := tc.GetOrLoad(ctx, "a", func() (*testSite, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	}
	if calls != 2 {
		t.Errorf("load called %d times, want 2", calls)
	}
}

func TestTypedCache_NilDisabled(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()

	tc := NewTypedCache[testSite](mem, "site", 0, nil)
	if tc != nil {
		t.Fatal("zero TTL should disable the cache")
	}

	calls := 0
	for range 2 {
		_, _ = tc.GetOrLoad(context.Background(), "a", func() (*testSite, error) {
			calls++
			return &testSite{}, nil
		})
	}
	if calls != 2 {
		t.Errorf("load called %d times, want 2", calls)
	}
	tc.Delete(context.Background(), "a")
}

func TestTypedCache_UndecodableEntryDropped(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[testSite](mem, "site", time.Minute, nil)
	ctx := context.Background()

	_ = mem.Set(ctx, "site:bad", []byte("{not json"), 0)
	if _, ok := tc.Get(ctx, "bad"); ok {
		t.Error("undecodable entry returned as hit")
	}
	if _, err := mem.Get(ctx, "site:bad"); !errors.Is(err, ErrCacheMiss) {
		t.Error("undecodable entry not removed")
	}
}
