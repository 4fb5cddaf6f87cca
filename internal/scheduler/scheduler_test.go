// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osites/internal/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_AddAndList(t *testing.T) {
	s := New(discardLogger())

	require.NoError(t, s.Add(Job{Name: "b", Schedule: "@every 1h", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Add(Job{Name: "a", Schedule: "*/5 * * * *", Run: func(context.Context) error { return nil }}))

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
}

func TestScheduler_AddRejects(t *testing.T) {
	s := New(discardLogger())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Schedule: "@every 1m", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Schedule: "@every 1m"}))
	assert.Error(t, s.Add(Job{Name: "x", Schedule: "not a schedule", Run: noop}))

	require.NoError(t, s.Add(Job{Name: "x", Schedule: "@every 1m", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Schedule: "@every 1m", Run: noop}))
}

func TestScheduler_TriggerNow(t *testing.T) {
	s := New(discardLogger())
	calls := 0
	require.NoError(t, s.Add(Job{Name: "count", Schedule: "@every 1h", Run: func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		calls++
		return nil
	}}))

	require.NoError(t, s.TriggerNow("count"))
	assert.Equal(t, 1, calls)
	assert.Error(t, s.TriggerNow("missing"))
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(discardLogger())
	s.Start()
	s.Stop()
}

type fakeChecker struct {
	err error
}

func (f *fakeChecker) Health(context.Context) error { return f.err }

func TestMonitor(t *testing.T) {
	checker := &fakeChecker{}
	var results []bool
	p := NewMonitor(checker, time.Second, func(up bool) { results = append(results, up) }, discardLogger())

	assert.ErrorIs(t, p.Status().Err, ErrNotChecked)
	assert.True(t, p.Status().CheckedAt.IsZero())

	require.NoError(t, p.Run(context.Background()))
	assert.NoError(t, p.Status().Err)
	assert.False(t, p.Status().CheckedAt.IsZero())

	checker.err = errors.New("connection refused")
	assert.Error(t, p.Run(context.Background()))
	assert.EqualError(t, p.Status().Err, "connection refused")

	assert.Equal(t, []bool{true, false}, results)
}

func TestHealthCheckFunc(t *testing.T) {
	down := errors.New("down")
	p := NewMonitor(HealthCheckFunc(func(context.Context) error { return down }), time.Second, nil, discardLogger())

	assert.ErrorIs(t, p.Run(context.Background()), down)
	assert.ErrorIs(t, p.Status().Err, down)
}

func TestHealthJobRunsCheck(t *testing.T) {
	p := NewMonitor(&fakeChecker{}, time.Second, nil, discardLogger())
	s := New(discardLogger())
	require.NoError(t, s.Add(HealthJob(p)))

	require.NoError(t, s.TriggerNow("backend-health"))
	assert.NoError(t, p.Status().Err)
}

func TestCacheStatsJob(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	defer func() { _ = mc.Close() }()
	_, _ = mc.Get(context.Background(), "missing")

	job := CacheStatsJob(mc, logger)
	require.NoError(t, job.Run(context.Background()))

	assert.Contains(t, buf.String(), "cache stats")
	assert.Contains(t, buf.String(), "backend=memory")
	assert.Contains(t, buf.String(), "misses=1")
}

func TestCleanupJob(t *testing.T) {
	called := false
	job := CleanupJob("login-cleanup", func() { called = true })

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, called)
	assert.Equal(t, CleanupSchedule, job.Schedule)
}
