// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/osites/internal/cache"
)

// Default schedules.
const (
	HealthSchedule     = "@every 1m"
	CacheStatsSchedule = "@every 10m"
	CleanupSchedule    = "@every 5m"
)

// ErrNotChecked is reported by Monitor.Status before the first check completes.
var ErrNotChecked = errors.New("backend not checked yet")

// HealthChecker is anything that can report backend health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Health calls f.
func (f HealthCheckFunc) Health(ctx context.Context) error { return f(ctx) }

// Monitor tracks the result of the most recent backend health check.
type Monitor struct {
	checker  HealthChecker
	timeout  time.Duration
	onResult func(up bool)
	logger   *slog.Logger

	mu      sync.RWMutex
	lastErr error
	checked time.Time
}

// NewMonitor creates a monitor. onResult may be nil.
func NewMonitor(checker HealthChecker, timeout time.Duration, onResult func(up bool), logger *slog.Logger) *Monitor {
	return &Monitor{
		checker:  checker,
		timeout:  timeout,
		onResult: onResult,
		logger:   logger,
		lastErr:  ErrNotChecked,
	}
}

// Run checks the backend once and records the outcome.
func (p *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(ctx)

	p.mu.Lock()
	wasUp := p.lastErr == nil
	p.lastErr = err
	p.checked = time.Now()
	p.mu.Unlock()

	if p.onResult != nil {
		p.onResult(err == nil)
	}
	switch {
	case err != nil && wasUp:
		p.logger.Warn("backend became unhealthy", "error", err)
	case err == nil && !wasUp:
		p.logger.Info("backend is healthy")
	}
	return err
}

// CheckStatus is the outcome of the most recent check.
type CheckStatus struct {
	Err       error
	CheckedAt time.Time
}

// Status reports the last check result.
func (p *Monitor) Status() CheckStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return CheckStatus{Err: p.lastErr, CheckedAt: p.checked}
}

// HealthJob checks the backend.
func HealthJob(p *Monitor) Job {
	return Job{
		Name:        "backend-health",
		Description: "Check the content backend",
		Schedule:    HealthSchedule,
		Run:         p.Run,
	}
}

// CacheStatsJob logs lookup cache statistics.
func CacheStatsJob(sp cache.StatsProvider, logger *slog.Logger) Job {
	return Job{
		Name:        "cache-stats",
		Description: "Log lookup cache statistics",
		Schedule:    CacheStatsSchedule,
		Run: func(context.Context) error {
			s := sp.Stats()
			logger.Info("cache stats",
				"backend", s.Backend,
				"hits", s.Hits,
				"misses", s.Misses,
				"sets", s.Sets,
				"items", s.Items,
				"hit_rate", s.HitRate,
			)
			return nil
		},
	}
}

// CleanupJob wraps a housekeeping function.
func CleanupJob(name string, fn func()) Job {
	return Job{
		Name:        name,
		Description: "Drop stale in-memory state",
		Schedule:    CleanupSchedule,
		Run: func(context.Context) error {
			fn()
			return nil
		},
	}
}
