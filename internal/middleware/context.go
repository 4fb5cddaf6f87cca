// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for visitor sessions,
// host dispatch and request hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/osites/internal/authstate"
	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/pocketbase"
	"github.com/olegiv/osites/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyRequestPath holds the request path for templates.
const ContextKeyRequestPath ContextKey = "request_path"

// Interactive marks the request context as a visitor request so backend
// access is allowed while serving it.
func Interactive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(backend.WithInteractive(r.Context())))
	})
}

// Auth loads the visitor's backend credentials from the session and
// publishes them with a live authentication state for the request.
// It must run inside the session manager's LoadAndSave.
func Auth(sm *scs.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			store, remove := session.LoadAuthStore(ctx, sm, logger)
			defer remove()
			ctx = pocketbase.ContextWithAuthStore(ctx, store)

			state := authstate.New(ctx, store)
			defer state.Close()
			unsubscribe := state.Subscribe(func(authenticated bool) {
				logger.Debug("auth state", "authenticated", authenticated, "path", r.URL.Path)
			})
			defer unsubscribe()

			next.ServeHTTP(w, r.WithContext(authstate.NewContext(ctx, state)))
		})
	}
}

// RequestPath stores the request path in the context.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath returns the stored request path, or "" if none.
func GetRequestPath(r *http.Request) string {
	if p, ok := r.Context().Value(ContextKeyRequestPath).(string); ok {
		return p
	}
	return ""
}
