// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/olegiv/osites/internal/scheduler"
	"github.com/olegiv/osites/internal/version"
)

// BackendStatusSource reports the last backend check.
type BackendStatusSource interface {
	Status() scheduler.CheckStatus
}

// Pinger is a dependency that can be checked on demand.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	backend   BackendStatusSource
	cache     Pinger
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(backend BackendStatusSource, cache Pinger, info version.Info) *HealthHandler {
	return &HealthHandler{backend: backend, cache: cache, version: info, startTime: time.Now()}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string           `json:"status"`
	Uptime  string           `json:"uptime"`
	Version string           `json:"version"`
	Checks  map[string]Check `json:"checks"`
}

// Check is a single dependency result. Failure details stay in the logs.
type Check struct {
	Status    string     `json:"status"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	Latency   string     `json:"latency,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HealthHandler) backendCheck() Check {
	st := h.backend.Status()
	c := Check{Status: statusHealthy}
	if st.Err != nil {
		c.Status = statusUnhealthy
	}
	if !st.CheckedAt.IsZero() {
		at := st.CheckedAt.UTC()
		c.CheckedAt = &at
	}
	return c
}

func (h *HealthHandler) cacheCheck(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	err := h.cache.Ping(ctx)
	c := Check{Status: statusHealthy, Latency: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		c.Status = statusUnhealthy
	}
	return c
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{"backend": h.backendCheck()}
	if h.cache != nil {
		checks["cache"] = h.cacheCheck(r.Context())
	}

	overall := statusHealthy
	code := http.StatusOK
	if checks["backend"].Status != statusHealthy {
		overall, code = statusUnhealthy, http.StatusServiceUnavailable
	} else if c, ok := checks["cache"]; ok && c.Status != statusHealthy {
		overall = statusDegraded
	}

	writeJSON(w, code, HealthStatus{
		Status:  overall,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: h.version.String(),
		Checks:  checks,
	})
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. The service is ready once the
// most recent backend check succeeded.
func (h *HealthHandler) Readiness(w http.ResponseWriter, _ *http.Request) {
	if h.backend.Status().Err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
