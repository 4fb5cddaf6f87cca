// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"net/http"
	"strings"

	"github.com/olegiv/osites/internal/pocketbase"
)

// Login authenticates the visitor with a username or email and password.
// The credentials land in the auth store carried by ctx.
func (s *Store) Login(ctx context.Context, identity, password string) (*pocketbase.AuthRecord, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, newError(ErrInvalid, msgInvalidLogin, nil)
	}

	rec, err := c.Collection(CollectionUsers).AuthWithPassword(ctx, identity, password)
	if err != nil {
		if pocketbase.StatusOf(err) == http.StatusBadRequest {
			return nil, newError(ErrInvalid, msgInvalidLogin, err)
		}
		s.logger.Error("failed to authenticate", "error", err)
		return nil, newError(ErrUnavailable, msgLoginGeneric, err)
	}
	s.logger.Info("user logged in", "user_id", c.AuthStore().UserID())
	return rec, nil
}

// Logout clears the visitor's credentials.
func (s *Store) Logout(ctx context.Context) {
	if as := pocketbase.AuthStoreFromContext(ctx); as != nil {
		if id := as.UserID(); id != "" {
			s.logger.Info("user logged out", "user_id", id)
		}
		as.Clear()
	}
}

// RefreshAuth exchanges the visitor's token for a fresh one and returns the
// current user record. A rejected token clears the credentials.
func (s *Store) RefreshAuth(ctx context.Context) (*pocketbase.AuthRecord, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	if !authenticated(c) {
		return nil, newError(ErrUnauthenticated, msgSessionExpired, nil)
	}

	rec, err := c.Collection(CollectionUsers).AuthRefresh(ctx)
	if err != nil {
		switch pocketbase.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			c.AuthStore().Clear()
			return nil, newError(ErrUnauthenticated, msgSessionExpired, err)
		}
		s.logger.Error("failed to refresh auth", "error", err)
		return nil, newError(ErrUnavailable, msgUserGeneric, err)
	}
	return rec, nil
}
