// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/util"
)

// validateURL is swapped in tests that target loopback servers.
var validateURL = util.ValidateWebhookURL

// Config holds dispatcher configuration.
type Config struct {
	URLs           []string
	Secret         string
	Workers        int
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
	Client         *http.Client     // nil uses a client that refuses private addresses
	OnDelivery     func(ok bool)    // called once per finished delivery
	OnEvent        func(evt string) // called once per accepted event
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Dispatcher fans page events out to every configured endpoint through a
// bounded queue drained by a worker pool.
type Dispatcher struct {
	urls           []string
	secret         string
	workers        int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	client         *http.Client
	onDelivery     func(bool)
	onEvent        func(string)
	logger         *slog.Logger

	queue chan *delivery
	wg    sync.WaitGroup
	done  chan struct{}

	mu      sync.RWMutex
	running bool
	stopped bool
}

// NewDispatcher validates the endpoint URLs and creates a dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "osites"
	}
	if cfg.Client == nil {
		cfg.Client = newSafeClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Secret == "" {
		return nil, errors.New("webhook: secret is required")
	}

	var errs []error
	for _, u := range cfg.URLs {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", u, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Dispatcher{
		urls:           cfg.URLs,
		secret:         cfg.Secret,
		workers:        cfg.Workers,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		client:         cfg.Client,
		onDelivery:     cfg.OnDelivery,
		onEvent:        cfg.OnEvent,
		logger:         logger,
		queue:          make(chan *delivery, cfg.QueueSize),
		done:           make(chan struct{}),
	}, nil
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return
	}
	d.running = true

	d.logger.Info("starting webhook dispatcher", "workers", d.workers, "endpoints", len(d.urls))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops accepting events, lets the workers drain the queue and waits
// for them. Every queued delivery gets one more attempt; pending retries
// are abandoned. A stopped dispatcher cannot be restarted.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.stopped = true
	pending := len(d.queue)
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher", "queued", pending)
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

// Notify queues a page event. It never blocks the caller.
func (d *Dispatcher) Notify(_ context.Context, event string, page *model.Page) {
	if err := d.Dispatch(NewPageEvent(event, page)); err != nil {
		d.logger.Error("failed to dispatch webhook event", "event", event, "page_id", page.ID, "error", err)
	}
}

// Dispatch queues one delivery per endpoint.
func (d *Dispatcher) Dispatch(event *Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		d.logger.Warn("dispatcher not running, dropping event", "event", event.Type)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if d.onEvent != nil {
		d.onEvent(event.Type)
	}

	for _, u := range d.urls {
		dl := &delivery{ID: uuid.NewString(), URL: u, Event: event.Type, Payload: payload}
		select {
		case d.queue <- dl:
			d.logger.Debug("webhook delivery queued", "delivery_id", dl.ID, "url", u, "event", event.Type)
		default:
			d.logger.Warn("webhook queue full, dropping delivery", "delivery_id", dl.ID, "url", u, "event", event.Type)
			d.finish(false)
		}
	}
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case dl, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, dl)
		}
	}
}

// deliver retries one delivery with exponential backoff until it succeeds,
// fails permanently, runs out of attempts or the dispatcher stops.
func (d *Dispatcher) deliver(ctx context.Context, dl *delivery) {
	for attempt := 1; ; attempt++ {
		res := d.attempt(ctx, dl)
		if res.Success {
			d.logger.Info("webhook delivered",
				"delivery_id", dl.ID,
				"url", dl.URL,
				"event", dl.Event,
				"status_code", res.StatusCode,
				"attempt", attempt)
			d.finish(true)
			return
		}

		if !res.ShouldRetry || attempt >= d.maxAttempts {
			d.logger.Warn("webhook delivery failed",
				"delivery_id", dl.ID,
				"url", dl.URL,
				"event", dl.Event,
				"attempts", attempt,
				"error", res.Error)
			d.finish(false)
			return
		}

		backoff := calculateBackoff(attempt, d.initialBackoff, d.maxBackoff)
		d.logger.Info("webhook delivery scheduled for retry",
			"delivery_id", dl.ID,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", res.Error)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-d.done:
			timer.Stop()
			d.finish(false)
			return
		case <-ctx.Done():
			timer.Stop()
			d.finish(false)
			return
		}
	}
}

func (d *Dispatcher) finish(ok bool) {
	if d.onDelivery != nil {
		d.onDelivery(ok)
	}
}
