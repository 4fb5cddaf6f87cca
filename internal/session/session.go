// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps visitor sessions and persists backend credentials in them.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/olegiv/osites/internal/pocketbase"
)

const (
	tokenKey  = "pb_token"
	recordKey = "pb_record"
)

// New creates a session manager backed by an in-process store.
func New(isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = memstore.New()

	sm.Lifetime = 24 * time.Hour
	sm.Cookie.Name = "session"
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev

	// The __Host- prefix requires Secure, Path=/ and no Domain.
	if !isDev {
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// LoadAuthStore returns an auth store seeded from the session in ctx. Later
// changes to the store are written back to the session until remove is called.
func LoadAuthStore(ctx context.Context, sm *scs.SessionManager, logger *slog.Logger) (store *pocketbase.AuthStore, remove func()) {
	if logger == nil {
		logger = slog.Default()
	}
	store = pocketbase.NewAuthStore()

	if token := sm.GetString(ctx, tokenKey); token != "" {
		var rec *pocketbase.AuthRecord
		if raw := sm.GetBytes(ctx, recordKey); len(raw) > 0 {
			rec = &pocketbase.AuthRecord{}
			if err := json.Unmarshal(raw, rec); err != nil {
				logger.Warn("discarding unreadable session auth record", "error", err)
				rec = nil
			}
		}
		store.Save(token, rec)
	}

	remove = store.OnChange(func(token string, rec *pocketbase.AuthRecord) {
		// New credentials get a new session id.
		if err := sm.RenewToken(ctx); err != nil {
			logger.Error("failed to renew session token", "error", err)
		}
		if token == "" {
			sm.Remove(ctx, tokenKey)
			sm.Remove(ctx, recordKey)
			return
		}
		sm.Put(ctx, tokenKey, token)
		if rec == nil {
			sm.Remove(ctx, recordKey)
			return
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			logger.Error("failed to encode session auth record", "error", err)
			return
		}
		sm.Put(ctx, recordKey, raw)
	})

	return store, remove
}
