// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

func mustLogIn(action string) *Error {
	return newError(ErrUnauthenticated, "You must be logged in to "+action+".", nil)
}

// CreatePage stores a new page. The path is normalized; an empty content
// format defaults to markdown.
func (s *Store) CreatePage(ctx context.Context, in model.PageInput) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	if !authenticated(c) {
		return nil, mustLogIn("create pages")
	}

	in.Path = NormalizePath(in.Path)
	in.Title = strings.TrimSpace(in.Title)
	if in.ContentFormat == "" {
		in.ContentFormat = model.FormatMarkdown
	}
	switch {
	case in.Title == "":
		return nil, newError(ErrInvalid, msgTitleRequired, nil)
	case !in.ContentFormat.Valid():
		return nil, newError(ErrInvalid, msgFormatInvalid, nil)
	case (in.Site == "") == (in.Owner == ""):
		return nil, newError(ErrInvalid, msgScopeRequired, nil)
	}

	var rec pageRecord
	if err := c.Collection(CollectionPages).Create(ctx, in, &rec); err != nil {
		return nil, s.mutationError(err, "create page", "path", in.Path)
	}
	page := mapPage(&rec)
	s.logger.Info("page created", "id", page.ID, "path", page.Path)
	s.notify(ctx, EventPageCreated, page)
	return page, nil
}

// UpdatePage changes the fields set in upd.
func (s *Store) UpdatePage(ctx context.Context, id string, upd model.PageUpdate) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	if !authenticated(c) {
		return nil, mustLogIn("update pages")
	}

	if upd.Empty() {
		return nil, newError(ErrInvalid, msgNothingToWrite, nil)
	}
	if upd.Path != nil {
		p := NormalizePath(*upd.Path)
		upd.Path = &p
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if t == "" {
			return nil, newError(ErrInvalid, msgTitleRequired, nil)
		}
		upd.Title = &t
	}
	if upd.ContentFormat != nil && !upd.ContentFormat.Valid() {
		return nil, newError(ErrInvalid, msgFormatInvalid, nil)
	}

	var rec pageRecord
	if err := c.Collection(CollectionPages).Update(ctx, id, upd, &rec); err != nil {
		return nil, s.mutationError(err, "update page", "id", id)
	}
	page := mapPage(&rec)
	s.logger.Info("page updated", "id", page.ID, "path", page.Path)
	s.notify(ctx, EventPageUpdated, page)
	return page, nil
}

// DeletePage removes a page.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return cerr
	}
	if !authenticated(c) {
		return mustLogIn("delete pages")
	}

	if err := c.Collection(CollectionPages).Delete(ctx, id); err != nil {
		return s.mutationError(err, "delete page", "id", id)
	}
	s.logger.Info("page deleted", "id", id)
	s.notify(ctx, EventPageDeleted, &model.Page{ID: id})
	return nil
}

// mutationError surfaces the backend's message when it sent one and falls
// back to a generic retry message otherwise.
func (s *Store) mutationError(err error, action string, attrs ...any) *Error {
	s.logger.Error("failed to "+action, append(attrs, "error", err)...)

	generic := "Unable to " + action + ". Please try again."
	var re *pocketbase.ResponseError
	if errors.As(err, &re) {
		detail := re.Detail()
		message := detail
		if message == "" {
			message = generic
		}
		switch {
		case re.Status == http.StatusNotFound:
			return newError(ErrNotFound, message, err)
		case re.Status == http.StatusUnauthorized, re.Status == http.StatusForbidden:
			return newError(ErrUnauthenticated, message, err)
		case detail != "":
			return newError(ErrRejected, detail, err)
		}
	}
	return newError(ErrUnavailable, generic, err)
}
