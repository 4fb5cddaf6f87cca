// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package authstate exposes whether the visitor is authenticated as an
// observable boolean.
package authstate

import (
	"context"
	"sync"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/pocketbase"
)

// State mirrors the validity of an AuthStore. Outside an interactive
// context it stays false and never touches the store.
//
// Token expiry raises no change event; call Check to re-sync.
type State struct {
	src         *pocketbase.AuthStore
	interactive bool

	mu        sync.Mutex
	value     bool
	started   bool
	stopSrc   func()
	listeners map[uint64]func(bool)
	nextID    uint64
}

// New creates a state over src. src may be nil.
func New(ctx context.Context, src *pocketbase.AuthStore) *State {
	return &State{
		src:         src,
		interactive: backend.IsInteractive(ctx) && src != nil,
		listeners:   make(map[uint64]func(bool)),
	}
}

// Subscribe calls fn with the current value and again on every change.
// The first subscription starts watching the store.
func (s *State) Subscribe(fn func(bool)) (unsubscribe func()) {
	s.mu.Lock()
	s.startLocked()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	value := s.value
	s.mu.Unlock()

	fn(value)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Check re-reads the store's validity and publishes any change.
func (s *State) Check() {
	if !s.interactive {
		return
	}
	s.set(s.src.IsValid())
}

// Authenticated returns the last published value.
func (s *State) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Close stops watching the store. Subscribers are kept but receive no
// further updates.
func (s *State) Close() {
	s.mu.Lock()
	stop := s.stopSrc
	s.stopSrc = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// startLocked must be called with s.mu held.
func (s *State) startLocked() {
	if s.started || !s.interactive {
		return
	}
	s.started = true
	s.value = s.src.IsValid()
	s.stopSrc = s.src.OnChange(func(string, *pocketbase.AuthRecord) {
		s.set(s.src.IsValid())
	})
}

func (s *State) set(v bool) {
	s.mu.Lock()
	if s.value == v {
		s.mu.Unlock()
		return
	}
	s.value = v
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

type stateKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// FromContext returns the state carried by ctx, or nil.
func FromContext(ctx context.Context) *State {
	s, _ := ctx.Value(stateKey{}).(*State)
	return s
}
