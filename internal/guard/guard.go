// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package guard holds the per-route loaders. A loader gathers the data a
// view needs and decides whether the request may proceed or must be
// redirected, for example to the login form.
package guard

import (
	"context"
	"errors"
	"net/url"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

// Outcome is either data to render or a redirect target.
type Outcome[T any] struct {
	Data     T
	Redirect string
}

// Redirected reports whether the outcome is a redirect.
func (o Outcome[T]) Redirected() bool {
	return o.Redirect != ""
}

func proceed[T any](data T) Outcome[T] {
	return Outcome[T]{Data: data}
}

func redirectTo[T any](target string) Outcome[T] {
	return Outcome[T]{Redirect: target}
}

// LoginURL returns the login form URL that sends the visitor back to
// returnTo afterwards.
func LoginURL(returnTo string) string {
	return "/login?redirect=" + url.QueryEscape(returnTo)
}

// requestTarget is the path and query of u, as sent back after login.
func requestTarget(u *url.URL) string {
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

const (
	msgSiteUnresolved     = "Site could not be resolved for this domain."
	msgSiteUnresolvedEdit = "Site could not be resolved."
	msgUserUnresolved     = "User could not be found."
)

// Loader runs route loaders against the data access layer.
type Loader struct {
	store *content.Store
}

// New creates a Loader.
func New(store *content.Store) *Loader {
	return &Loader{store: store}
}

// SiteLayout is the data shared by every route of a site domain.
type SiteLayout struct {
	Site      *model.Site
	SiteError string
	Host      string
	// Err is the lookup failure behind SiteError.
	Err error
}

// Site resolves the site for host. Outside an interactive context it
// returns an empty layout without calling the backend.
func (l *Loader) Site(ctx context.Context, host string) SiteLayout {
	if !backend.IsInteractive(ctx) {
		return SiteLayout{}
	}
	site, err := l.store.FetchSiteByDomain(ctx, host)
	return SiteLayout{Site: site, SiteError: content.Message(err), Host: host, Err: err}
}

// SitePageData is the data of a public site page.
type SitePageData struct {
	Site          *model.Site
	Page          *model.Page
	PageError     string
	RequestedPath string
	Err           error
}

// SitePage loads a published page of the site.
func (l *Loader) SitePage(ctx context.Context, layout SiteLayout, path string) SitePageData {
	if layout.Site == nil {
		msg := layout.SiteError
		if msg == "" {
			msg = msgSiteUnresolved
		}
		return SitePageData{PageError: msg, RequestedPath: path, Err: layoutErr(layout.Err)}
	}
	page, err := l.store.FetchPageByPath(ctx, layout.Site.ID, path)
	return SitePageData{
		Site:          layout.Site,
		Page:          page,
		PageError:     content.Message(err),
		RequestedPath: path,
		Err:           err,
	}
}

// SiteEditData is the data of the page editor on a site domain.
type SiteEditData struct {
	Site          *model.Site
	Page          *model.Page
	RequestedPath string
	LoadError     string
	Err           error
}

// SiteEdit loads a page for editing. A missing site is reported as data;
// an anonymous visitor is sent to the login form.
func (l *Loader) SiteEdit(ctx context.Context, layout SiteLayout, path string, u *url.URL) Outcome[SiteEditData] {
	if layout.Site == nil {
		return proceed(SiteEditData{RequestedPath: path, LoadError: msgSiteUnresolvedEdit, Err: layoutErr(layout.Err)})
	}
	if !l.store.IsAuthenticated(ctx) {
		return redirectTo[SiteEditData](LoginURL(requestTarget(u)))
	}
	page, err := l.store.FetchPageForEdit(ctx, layout.Site.ID, path)
	return proceed(SiteEditData{
		Site:          layout.Site,
		Page:          page,
		RequestedPath: path,
		LoadError:     content.Message(err),
		Err:           err,
	})
}

// SiteNewData is the data of the new page form on a site domain.
type SiteNewData struct {
	Site        *model.Site
	InitialPath string
}

// SiteNew prepares the new page form, prefilled from the path query parameter.
func (l *Loader) SiteNew(ctx context.Context, layout SiteLayout, u *url.URL) Outcome[SiteNewData] {
	if layout.Site == nil {
		return proceed(SiteNewData{})
	}
	if !l.store.IsAuthenticated(ctx) {
		return redirectTo[SiteNewData](LoginURL(requestTarget(u)))
	}
	return proceed(SiteNewData{Site: layout.Site, InitialPath: u.Query().Get("path")})
}

// SettingsData is the data of the account settings page.
type SettingsData struct {
	User *pocketbase.AuthRecord
}

// Settings requires an authenticated visitor and refreshes their record.
// When the backend cannot be reached the cached record is shown instead.
func (l *Loader) Settings(ctx context.Context) Outcome[SettingsData] {
	if !l.store.IsAuthenticated(ctx) {
		return redirectTo[SettingsData]("/login?redirect=/settings")
	}
	rec, err := l.store.RefreshAuth(ctx)
	switch {
	case errors.Is(err, content.ErrUnauthenticated):
		return redirectTo[SettingsData]("/login?redirect=/settings")
	case err != nil:
		rec = l.store.CurrentUser(ctx)
	}
	return proceed(SettingsData{User: rec})
}

// NamespaceLayout is the data shared by every route under /{username}.
type NamespaceLayout struct {
	User           *model.User
	NamespaceError string
	Username       string
	Err            error
}

// Namespace resolves the namespace owner.
func (l *Loader) Namespace(ctx context.Context, username string) NamespaceLayout {
	user, err := l.store.GetUserByUsername(ctx, username)
	return NamespaceLayout{User: user, NamespaceError: content.Message(err), Username: username, Err: err}
}

// NamespacePageData is the data of a page in a user namespace.
type NamespacePageData struct {
	User          *model.User
	Page          *model.Page
	PageError     string
	RequestedPath string
	Username      string
	Err           error
}

// NamespacePage loads a page of the namespace owner.
func (l *Loader) NamespacePage(ctx context.Context, layout NamespaceLayout, path string) NamespacePageData {
	if layout.User == nil {
		msg := layout.NamespaceError
		if msg == "" {
			msg = msgUserUnresolved
		}
		return NamespacePageData{PageError: msg, RequestedPath: path, Username: layout.Username, Err: layoutErr(layout.Err)}
	}
	page, err := l.store.GetPageByOwnerAndPath(ctx, layout.User.ID, path)
	return NamespacePageData{
		User:          layout.User,
		Page:          page,
		PageError:     content.Message(err),
		RequestedPath: path,
		Username:      layout.Username,
		Err:           err,
	}
}

// NamespaceEditData is the data of the page editor in a user namespace.
type NamespaceEditData struct {
	User          *model.User
	Page          *model.Page
	PageError     string
	RequestedPath string
	Username      string
	Err           error
}

// NamespaceEdit loads an owner's page for editing. Only the owner may edit;
// anyone else is sent back to the namespace root.
func (l *Loader) NamespaceEdit(ctx context.Context, layout NamespaceLayout, path string) Outcome[NamespaceEditData] {
	if !l.store.IsAuthenticated(ctx) {
		return redirectTo[NamespaceEditData](LoginURL("/" + layout.Username + "/edit/" + path))
	}
	if !l.isOwner(ctx, layout) {
		return redirectTo[NamespaceEditData]("/" + layout.Username)
	}
	page, err := l.store.GetPageByOwnerAndPath(ctx, layout.User.ID, path)
	return proceed(NamespaceEditData{
		User:          layout.User,
		Page:          page,
		PageError:     content.Message(err),
		RequestedPath: path,
		Username:      layout.Username,
		Err:           err,
	})
}

// NamespaceNewData is the data of the new page form in a user namespace.
type NamespaceNewData struct {
	User        *model.User
	Username    string
	InitialPath string
}

// NamespaceNew prepares the new page form for the namespace owner.
func (l *Loader) NamespaceNew(ctx context.Context, layout NamespaceLayout, u *url.URL) Outcome[NamespaceNewData] {
	if !l.store.IsAuthenticated(ctx) {
		return redirectTo[NamespaceNewData](LoginURL(requestTarget(u)))
	}
	if !l.isOwner(ctx, layout) {
		return redirectTo[NamespaceNewData]("/" + layout.Username)
	}
	return proceed(NamespaceNewData{
		User:        layout.User,
		Username:    layout.Username,
		InitialPath: u.Query().Get("path"),
	})
}

func (l *Loader) isOwner(ctx context.Context, layout NamespaceLayout) bool {
	id := l.store.CurrentUserID(ctx)
	return id != "" && layout.User != nil && id == layout.User.ID
}

// layoutErr reports a missing layout record as not found when the lookup
// itself did not fail.
func layoutErr(err error) error {
	if err != nil {
		return err
	}
	return content.ErrNotFound
}
