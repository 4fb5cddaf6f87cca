// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/olegiv/osites/internal/model"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the quiet period after the last event for an entity.
	Interval time.Duration
	// MaxWait bounds how long a busy entity can be held back.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 1 * time.Second,
		MaxWait:  5 * time.Second,
	}
}

type pendingEvent struct {
	event     *Event
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces repeated events for the same page so a burst of
// edits yields a single delivery carrying the latest state.
type Debouncer struct {
	dispatcher *Dispatcher
	config     DebounceConfig

	mu      sync.Mutex
	pending map[string]*pendingEvent
}

// NewDebouncer wraps a dispatcher.
func NewDebouncer(dispatcher *Dispatcher, config DebounceConfig) *Debouncer {
	return &Debouncer{
		dispatcher: dispatcher,
		config:     config,
		pending:    make(map[string]*pendingEvent),
	}
}

// Notify queues a page event for debounced delivery.
func (d *Debouncer) Notify(_ context.Context, event string, page *model.Page) {
	d.Dispatch(NewPageEvent(event, page))
}

// Dispatch replaces any pending event for the same page and event type
// and restarts its timer, unless MaxWait has elapsed.
func (d *Debouncer) Dispatch(event *Event) {
	key := event.key()
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		existing.event = event
		if now.Sub(existing.firstSeen) >= d.config.MaxWait {
			d.dispatchLocked(key)
			return
		}
		existing.timer.Reset(d.config.Interval)
		d.dispatcher.logger.Debug("debounced event updated", "key", key, "wait_time", now.Sub(existing.firstSeen))
		return
	}

	pe := &pendingEvent{event: event, firstSeen: now}
	pe.timer = time.AfterFunc(d.config.Interval, func() {
		d.mu.Lock()
		d.dispatchLocked(key)
		d.mu.Unlock()
	})
	d.pending[key] = pe
	d.dispatcher.logger.Debug("debounced event queued", "key", key)
}

// dispatchLocked hands a pending event to the dispatcher. d.mu must be held.
func (d *Debouncer) dispatchLocked(key string) {
	pe, ok := d.pending[key]
	if !ok {
		return
	}
	pe.timer.Stop()
	delete(d.pending, key)

	if err := d.dispatcher.Dispatch(pe.event); err != nil {
		d.dispatcher.logger.Error("failed to dispatch debounced event", "event", pe.event.Type, "error", err)
	}
}

// Flush dispatches every pending event immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.dispatchLocked(key)
	}
}

// PendingCount returns the number of held events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
