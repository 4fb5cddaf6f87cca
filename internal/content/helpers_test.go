// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
	"github.com/olegiv/osites/internal/pocketbase/pbtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedEvent struct {
	event string
	page  model.Page
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *fakeNotifier) Notify(_ context.Context, event string, page *model.Page) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: event, page: *page})
}

type fixture struct {
	srv      *pbtest.Server
	store    *Store
	ctx      context.Context
	auth     *pocketbase.AuthStore
	notifier *fakeNotifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	srv := pbtest.New(t)
	logger := discardLogger()
	notifier := &fakeNotifier{}
	if opts.Notifier == nil {
		opts.Notifier = notifier
	}
	provider := backend.NewProvider(backend.Config{URL: srv.URL}, logger)
	auth := pocketbase.NewAuthStore()
	ctx := pocketbase.ContextWithAuthStore(backend.WithInteractive(context.Background()), auth)
	return &fixture{
		srv:      srv,
		store:    New(provider, logger, opts),
		ctx:      ctx,
		auth:     auth,
		notifier: notifier,
	}
}

// login stores a valid session for userID in the fixture's auth store.
func (f *fixture) login(userID string) {
	f.auth.Save(f.srv.Token(userID), &pocketbase.AuthRecord{ID: userID})
}
