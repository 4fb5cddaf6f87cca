// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/guard"
	"github.com/olegiv/osites/internal/middleware"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/util"
)

// AuthHandler handles login, logout and the account settings page.
type AuthHandler struct {
	base
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(store *content.Store, loader *guard.Loader, renderer *render.Renderer, lp *middleware.LoginProtection, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:            base{store: store, loader: loader, renderer: renderer, logger: logger},
		loginProtection: lp,
	}
}

// redirectTarget is the validated post-login destination.
func redirectTarget(r *http.Request) string {
	return util.SafeRedirect(r.FormValue(FieldRedirect), RouteRoot)
}

// LoginForm handles GET /login. Visitors who are already signed in go
// straight to their destination.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	target := redirectTarget(r)
	if h.store.IsAuthenticated(r.Context()) {
		found(w, r, target)
		return
	}
	h.render(w, r, http.StatusOK, "login", render.TemplateData{
		Title: "Log in",
		Data:  LoginForm{Redirect: target},
	})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data.", render.TemplateData{})
		return
	}
	identity := strings.TrimSpace(r.PostFormValue(FieldIdentity))
	password := r.PostFormValue(FieldPassword)
	form := LoginForm{Identity: identity, Redirect: redirectTarget(r)}

	fail := func(status int, msg string) {
		form.Error = msg
		h.render(w, r, status, "login", render.TemplateData{Title: "Log in", Data: form})
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsLocked(identity); locked {
			h.logger.Warn("login attempt on locked identity", "identity", identity, "ip", middleware.GetClientIP(r))
			fail(http.StatusTooManyRequests, fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(remaining)))
			return
		}
	}

	rec, err := h.store.Login(r.Context(), identity, password)
	if err != nil {
		if errors.Is(err, content.ErrInvalid) && h.loginProtection != nil {
			if locked, lockFor := h.loginProtection.RecordFailure(identity); locked {
				h.logger.Warn("identity locked after failed logins", "identity", identity, "duration", lockFor)
				fail(http.StatusTooManyRequests, fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(lockFor)))
				return
			}
			if left := h.loginProtection.RemainingAttempts(identity); left > 0 && left <= 3 {
				fail(http.StatusUnprocessableEntity, fmt.Sprintf("%s %d attempts remaining.", content.Message(err), left))
				return
			}
		}
		fail(statusFor(err), content.Message(err))
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccess(identity)
	}
	name := rec.Username
	if name == "" {
		name = rec.Email
	}
	h.renderer.SetFlash(r, "Welcome back, "+name+".", flashSuccess)
	seeOther(w, r, form.Redirect)
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout(r.Context())
	h.renderer.SetFlash(r, "You have been logged out.", flashSuccess)
	seeOther(w, r, RouteRoot)
}

// Settings handles GET /settings.
func (h *AuthHandler) Settings(w http.ResponseWriter, r *http.Request) {
	out := h.loader.Settings(r.Context())
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	h.render(w, r, http.StatusOK, "settings", render.TemplateData{Title: "Settings", Data: out.Data})
}

// formatDuration renders a lockout duration for people.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < 2*time.Minute:
		return "1 minute"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
}
