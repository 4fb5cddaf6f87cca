// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"encoding/json"

	"github.com/olegiv/osites/internal/filter"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

// pageScope selects pages of one site or one owner.
type pageScope struct {
	field string
	id    string
}

func siteScope(siteID string) pageScope   { return pageScope{field: "site", id: siteID} }
func ownerScope(ownerID string) pageScope { return pageScope{field: "owner", id: ownerID} }

// lookup describes one page resolution.
type lookup struct {
	scope         pageScope
	path          string
	publishedOnly bool
	genericMsg    string
	logMsg        string
}

// FetchPageByPath resolves a published page of a site. An empty path falls
// back to the "index" page.
func (s *Store) FetchPageByPath(ctx context.Context, siteID, path string) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	return s.resolvePage(ctx, c, lookup{
		scope:         siteScope(siteID),
		path:          path,
		publishedOnly: true,
		genericMsg:    msgPageGeneric,
		logMsg:        "failed to fetch page by path",
	})
}

// GetPageByOwnerAndPath resolves a page in a user namespace. Unpublished
// pages are visible only to the owner.
func (s *Store) GetPageByOwnerAndPath(ctx context.Context, ownerID, path string) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	isOwner := authenticated(c) && c.AuthStore().UserID() == ownerID
	return s.resolvePage(ctx, c, lookup{
		scope:         ownerScope(ownerID),
		path:          path,
		publishedOnly: !isOwner,
		genericMsg:    msgPageGeneric,
		logMsg:        "failed to fetch page by owner and path",
	})
}

// FetchPageForEdit resolves a site page regardless of its published state.
// It requires an authenticated session.
func (s *Store) FetchPageForEdit(ctx context.Context, siteID, path string) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	if !authenticated(c) {
		return nil, mustLogIn("edit pages")
	}
	return s.resolvePage(ctx, c, lookup{
		scope:      siteScope(siteID),
		path:       path,
		genericMsg: msgEditGeneric,
		logMsg:     "failed to fetch page for edit",
	})
}

// FetchPageByID loads a page by id. It requires an authenticated session.
func (s *Store) FetchPageByID(ctx context.Context, id string) (*model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}
	if !authenticated(c) {
		return nil, mustLogIn("view this page")
	}

	var rec pageRecord
	if err := c.Collection(CollectionPages).GetOne(ctx, id, &rec); err != nil {
		if pocketbase.IsNotFound(err) {
			return nil, newError(ErrNotFound, msgPageNotFound, err)
		}
		s.logger.Error("failed to fetch page by id", "id", id, "error", err)
		return nil, newError(ErrUnavailable, msgPageGeneric, err)
	}
	return mapPage(&rec), nil
}

// ListPublishedPages returns every published page of a site ordered by path.
func (s *Store) ListPublishedPages(ctx context.Context, siteID string) ([]model.Page, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}

	items, err := c.Collection(CollectionPages).GetFullList(ctx, pocketbase.ListOptions{
		Filter: filter.And(filter.Eq("site", siteID), filter.Bool("published", true)).String(),
		Sort:   "path",
	})
	if err != nil {
		s.logger.Error("failed to list pages", "site", siteID, "error", err)
		return nil, newError(ErrUnavailable, msgListGeneric, err)
	}

	pages := make([]model.Page, 0, len(items))
	for _, item := range items {
		var rec pageRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			s.logger.Warn("skipping undecodable page record", "site", siteID, "error", err)
			continue
		}
		pages = append(pages, *mapPage(&rec))
	}
	return pages, nil
}

// resolvePage runs the primary lookup and, for an empty path that matched
// nothing, the index fallback.
func (s *Store) resolvePage(ctx context.Context, c *pocketbase.Client, l lookup) (*model.Page, error) {
	normalized := NormalizePath(l.path)

	page, err := s.findPage(ctx, c, l, normalized)
	if err != nil {
		s.logger.Error(l.logMsg, l.scope.field, l.scope.id, "path", normalized, "error", err)
		return nil, newError(ErrUnavailable, l.genericMsg, err)
	}
	if page != nil {
		return page, nil
	}

	if normalized == "" {
		page, err = s.findPage(ctx, c, l, indexPath)
		if err != nil {
			s.logger.Error(l.logMsg, l.scope.field, l.scope.id, "path", indexPath, "error", err)
			return nil, newError(ErrUnavailable, l.genericMsg, err)
		}
		if page != nil {
			return page, nil
		}
	}

	return nil, newError(ErrNotFound, msgPageNotFound, nil)
}

// findPage returns nil without error when no page matches.
func (s *Store) findPage(ctx context.Context, c *pocketbase.Client, l lookup, path string) (*model.Page, error) {
	clauses := []filter.Expr{filter.Eq(l.scope.field, l.scope.id), filter.Eq("path", path)}
	if l.publishedOnly {
		clauses = append(clauses, filter.Bool("published", true))
	}

	var rec pageRecord
	err := c.Collection(CollectionPages).GetFirstListItem(ctx, filter.And(clauses...).String(), &rec)
	if err != nil {
		if pocketbase.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return mapPage(&rec), nil
}
