// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus metrics for HTTP traffic, backend
// requests, the lookup cache and webhook deliveries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/osites/internal/cache"
)

// Namespace prefixes every metric name.
const Namespace = "osites"

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	BackendRequests   *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec
	BackendUp         prometheus.Gauge
	PageEvents        *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// New creates the collectors on a fresh registry with Go and process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "PocketBase requests by collection and status code (0 on transport failure).",
		}, []string{"method", "collection", "status"}),
		BackendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "PocketBase request latency by collection.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "collection"}),
		BackendUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "up",
			Help:      "1 if the last backend health check succeeded.",
		}),
		PageEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "content",
			Name:      "page_events_total",
			Help:      "Page mutations by event type.",
		}, []string{"event"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by final result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one backend request.
func (m *Metrics) ObserveRequest(method, collection string, status int, elapsed time.Duration) {
	if collection == "" {
		collection = "-"
	}
	m.BackendRequests.WithLabelValues(method, collection, strconv.Itoa(status)).Inc()
	m.BackendDuration.WithLabelValues(method, collection).Observe(elapsed.Seconds())
}

// SetBackendUp records the result of a health check.
func (m *Metrics) SetBackendUp(up bool) {
	if up {
		m.BackendUp.Set(1)
		return
	}
	m.BackendUp.Set(0)
}

// ObservePageEvent counts a page mutation.
func (m *Metrics) ObservePageEvent(event string) {
	m.PageEvents.WithLabelValues(event).Inc()
}

// ObserveDelivery counts a finished webhook delivery.
func (m *Metrics) ObserveDelivery(success bool) {
	result := "failed"
	if success {
		result = "delivered"
	}
	m.WebhookDeliveries.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency by chi route pattern, so
// page paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RegisterCache exposes the statistics of c if it tracks any.
func (m *Metrics) RegisterCache(c cache.Cacher) bool {
	sp, ok := c.(cache.StatsProvider)
	if !ok {
		return false
	}
	m.registry.MustRegister(newCacheCollector(sp))
	return true
}

type cacheCollector struct {
	source cache.StatsProvider
	hits   *prometheus.Desc
	misses *prometheus.Desc
	sets   *prometheus.Desc
	items  *prometheus.Desc
}

func newCacheCollector(source cache.StatsProvider) *cacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cache", name), help, []string{"backend"}, nil)
	}
	return &cacheCollector{
		source: source,
		hits:   desc("hits_total", "Lookup cache hits."),
		misses: desc("misses_total", "Lookup cache misses."),
		sets:   desc("sets_total", "Lookup cache writes."),
		items:  desc("items", "Entries currently held by the lookup cache."),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.sets
	ch <- c.items
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(s.Sets), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(s.Items), s.Backend)
}
