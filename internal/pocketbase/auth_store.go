// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pocketbase

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthRecord is the authenticated user record returned by the backend.
type AuthRecord struct {
	ID             string `json:"id"`
	CollectionID   string `json:"collectionId,omitempty"`
	CollectionName string `json:"collectionName,omitempty"`
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Verified       bool   `json:"verified,omitempty"`
}

// ChangeFunc is called after the stored credentials change.
type ChangeFunc func(token string, record *AuthRecord)

// AuthStore holds the credentials of one visitor. It is safe for concurrent use.
type AuthStore struct {
	mu        sync.RWMutex
	token     string
	record    *AuthRecord
	listeners map[uint64]ChangeFunc
	nextID    uint64
	now       func() time.Time
}

// NewAuthStore returns an empty store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		listeners: make(map[uint64]ChangeFunc),
		now:       time.Now,
	}
}

// Token returns the stored token.
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Record returns a copy of the stored auth record, or nil.
func (s *AuthStore) Record() *AuthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil
	}
	rec := *s.record
	return &rec
}

// UserID returns the id of the stored auth record, or an empty string.
func (s *AuthStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return ""
	}
	return s.record.ID
}

// IsValid reports whether a token is stored and has not expired.
//
// The signature is not verified; the backend does that on every request.
// A token without an exp claim counts as valid.
func (s *AuthStore) IsValid() bool {
	s.mu.RLock()
	token, now := s.token, s.now
	s.mu.RUnlock()

	if token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.After(now())
}

// Save replaces the stored credentials and notifies listeners.
func (s *AuthStore) Save(token string, record *AuthRecord) {
	s.mu.Lock()
	s.token = token
	if record != nil {
		rec := *record
		s.record = &rec
	} else {
		s.record = nil
	}
	listeners := s.snapshot()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(token, record)
	}
}

// Clear removes the stored credentials and notifies listeners.
func (s *AuthStore) Clear() {
	s.Save("", nil)
}

// OnChange registers fn to run after every Save or Clear. The returned
// function removes the listener.
func (s *AuthStore) OnChange(fn ChangeFunc) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *AuthStore) snapshot() []ChangeFunc {
	out := make([]ChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

type authStoreKey struct{}

// ContextWithAuthStore returns a context carrying store.
func ContextWithAuthStore(ctx context.Context, store *AuthStore) context.Context {
	return context.WithValue(ctx, authStoreKey{}, store)
}

// AuthStoreFromContext returns the store carried by ctx, or nil.
func AuthStoreFromContext(ctx context.Context) *AuthStore {
	store, _ := ctx.Value(authStoreKey{}).(*AuthStore)
	return store
}
