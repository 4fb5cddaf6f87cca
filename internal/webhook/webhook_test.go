// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osites/internal/model"
)

const testSecret = "webhook-test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// allowLoopback lets dispatchers target httptest servers.
func allowLoopback(t *testing.T) {
	t.Helper()
	orig := validateURL
	validateURL = func(string) error { return nil }
	t.Cleanup(func() { validateURL = orig })
}

type received struct {
	header http.Header
	body   []byte
}

type endpoint struct {
	*httptest.Server
	mu       sync.Mutex
	requests []received
	statuses []int // consumed in order; 200 once exhausted
}

func newEndpoint(t *testing.T, statuses ...int) *endpoint {
	t.Helper()
	e := &endpoint{statuses: statuses}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.requests = append(e.requests, received{header: r.Header.Clone(), body: body})
		status := http.StatusOK
		if len(e.statuses) > 0 {
			status, e.statuses = e.statuses[0], e.statuses[1:]
		}
		e.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(e.Close)
	return e
}

func (e *endpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func (e *endpoint) first() received {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[0]
}

type outcomes struct {
	ok, failed atomic.Int32
}

func (o *outcomes) record(ok bool) {
	if ok {
		o.ok.Add(1)
		return
	}
	o.failed.Add(1)
}

func newTestDispatcher(t *testing.T, urls []string, out *outcomes) *Dispatcher {
	t.Helper()
	allowLoopback(t)
	d, err := NewDispatcher(Config{
		URLs:           urls,
		Secret:         testSecret,
		Workers:        2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		UserAgent:      "osites/test",
		Client:         http.DefaultClient,
		OnDelivery:     out.record,
	}, discardLogger())
	require.NoError(t, err)
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func testPage() *model.Page {
	return &model.Page{ID: "p1", Site: "s1", Path: "about", Title: "About", Published: true}
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"type":"page.created"}`)
	sig := GenerateSignature(payload, "secret")

	assert.Len(t, sig, 64)
	assert.Equal(t, sig, GenerateSignature(payload, "secret"))
	assert.NotEqual(t, sig, GenerateSignature(payload, "other"))
	assert.True(t, VerifySignature(payload, "sha256="+sig, "secret"))
	assert.False(t, VerifySignature(payload, sig, "secret"))
	assert.False(t, VerifySignature([]byte("tampered"), "sha256="+sig, "secret"))
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{10, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateBackoff(tt.attempt, time.Second, time.Minute), "attempt %d", tt.attempt)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(Config{URLs: []string{"https://example.com/hook"}}, discardLogger())
	assert.Error(t, err, "secret is required")

	_, err = NewDispatcher(Config{URLs: []string{"http://127.0.0.1/hook"}, Secret: testSecret}, discardLogger())
	assert.Error(t, err, "loopback endpoints are rejected")

	_, err = NewDispatcher(Config{URLs: []string{"ftp://example.com"}, Secret: testSecret}, discardLogger())
	assert.Error(t, err)
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	ep := newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)

	d.Notify(context.Background(), "page.created", testPage())

	require.Eventually(t, func() bool { return out.ok.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	got := ep.first()

	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "osites/test", got.header.Get("User-Agent"))
	assert.Equal(t, "page.created", got.header.Get(HeaderEvent))
	_, err := uuid.Parse(got.header.Get(HeaderDeliveryID))
	assert.NoError(t, err)
	assert.True(t, VerifySignature(got.body, got.header.Get(HeaderSignature), testSecret))

	var evt Event
	require.NoError(t, json.Unmarshal(got.body, &evt))
	assert.Equal(t, "page.created", evt.Type)
	assert.Equal(t, "p1", evt.Data.ID)
	assert.Equal(t, "about", evt.Data.Path)
	assert.True(t, evt.Data.Published)
}

func TestDispatcher_FansOutToEveryEndpoint(t *testing.T) {
	a, b := newEndpoint(t), newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{a.URL, b.URL}, &out)

	d.Notify(context.Background(), "page.deleted", &model.Page{ID: "p9"})

	require.Eventually(t, func() bool { return out.ok.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.NotEqual(t, a.first().header.Get(HeaderDeliveryID), b.first().header.Get(HeaderDeliveryID))
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	ep := newEndpoint(t, http.StatusInternalServerError, http.StatusBadGateway)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)

	d.Notify(context.Background(), "page.updated", testPage())

	require.Eventually(t, func() bool { return out.ok.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, ep.count())
	assert.Zero(t, out.failed.Load())
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	ep := newEndpoint(t, 500, 500, 500, 500, 500, 500, 500)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)

	d.Notify(context.Background(), "page.updated", testPage())

	require.Eventually(t, func() bool { return out.failed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, DefaultMaxAttempts, ep.count())
}

func TestDispatcher_NoRetryOnClientError(t *testing.T) {
	ep := newEndpoint(t, http.StatusNotFound)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)

	d.Notify(context.Background(), "page.updated", testPage())

	require.Eventually(t, func() bool { return out.failed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ep.count())
}

func TestDispatcher_DropsWhenStopped(t *testing.T) {
	ep := newEndpoint(t)
	allowLoopback(t)
	d, err := NewDispatcher(Config{URLs: []string{ep.URL}, Secret: testSecret, Client: http.DefaultClient}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(NewPageEvent("page.created", testPage())))
	d.Stop()
	assert.Zero(t, ep.count())
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	ep := newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)
	db := NewDebouncer(d, DebounceConfig{Interval: 30 * time.Millisecond, MaxWait: time.Second})

	for _, title := range []string{"one", "two", "three"} {
		page := testPage()
		page.Title = title
		db.Notify(context.Background(), "page.updated", page)
	}
	db.Notify(context.Background(), "page.updated", &model.Page{ID: "other"})
	assert.Equal(t, 2, db.PendingCount())

	require.Eventually(t, func() bool { return out.ok.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, db.PendingCount())

	titles := map[string]string{}
	ep.mu.Lock()
	for _, r := range ep.requests {
		var evt Event
		require.NoError(t, json.Unmarshal(r.body, &evt))
		titles[evt.Data.ID] = evt.Data.Title
	}
	ep.mu.Unlock()
	assert.Equal(t, "three", titles["p1"])
}

func TestDebouncer_Flush(t *testing.T) {
	ep := newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)
	db := NewDebouncer(d, DebounceConfig{Interval: time.Hour, MaxWait: time.Hour})

	db.Notify(context.Background(), "page.created", testPage())
	db.Flush()

	assert.Zero(t, db.PendingCount())
	require.Eventually(t, func() bool { return out.ok.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestDebouncer_FlushThenStopDeliversEverything(t *testing.T) {
	ep := newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)
	db := NewDebouncer(d, DebounceConfig{Interval: time.Hour, MaxWait: time.Hour})

	for i := range 30 {
		db.Notify(context.Background(), "page.updated", &model.Page{ID: fmt.Sprintf("p%d", i)})
	}
	require.Equal(t, 30, db.PendingCount())

	db.Flush()
	d.Stop()

	assert.Equal(t, 30, ep.count())
	assert.Equal(t, int32(30), out.ok.Load())
}

func TestDispatcher_StopIsFinal(t *testing.T) {
	ep := newEndpoint(t)
	var out outcomes
	d := newTestDispatcher(t, []string{ep.URL}, &out)

	d.Stop()
	d.Start(context.Background())
	require.NoError(t, d.Dispatch(NewPageEvent("page.created", testPage())))
	d.Stop()

	assert.Zero(t, ep.count())
}
