// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package guard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/pocketbase"
	"github.com/olegiv/osites/internal/pocketbase/pbtest"
)

type fixture struct {
	srv    *pbtest.Server
	loader *Loader
	ctx    context.Context
	auth   *pocketbase.AuthStore
	alice  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := pbtest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := content.New(backend.NewProvider(backend.Config{URL: srv.URL}, logger), logger, content.Options{})

	alice := srv.AddUser("alice", "password123", nil)
	srv.Add("sites", map[string]any{"id": "site1", "domain": "example.com", "name": "Example"})
	srv.Add("pages", map[string]any{"site": "site1", "path": "about", "title": "About", "published": true})
	srv.Add("pages", map[string]any{"site": "site1", "path": "draft", "title": "Draft", "published": false})
	srv.Add("pages", map[string]any{"owner": alice, "path": "notes", "title": "Notes", "published": false})

	auth := pocketbase.NewAuthStore()
	ctx := pocketbase.ContextWithAuthStore(backend.WithInteractive(context.Background()), auth)
	return &fixture{srv: srv, loader: New(store), ctx: ctx, auth: auth, alice: alice}
}

func (f *fixture) login(userID string) {
	f.auth.Save(f.srv.Token(userID), &pocketbase.AuthRecord{ID: userID})
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSite(t *testing.T) {
	f := newFixture(t)

	layout := f.loader.Site(f.ctx, "example.com")
	require.NotNil(t, layout.Site)
	assert.Equal(t, "site1", layout.Site.ID)
	assert.Empty(t, layout.SiteError)
	assert.Equal(t, "example.com", layout.Host)

	missing := f.loader.Site(f.ctx, "nowhere.test")
	assert.Nil(t, missing.Site)
	assert.Equal(t, `No site configured for domain "nowhere.test".`, missing.SiteError)
}

func TestSite_NonInteractive(t *testing.T) {
	f := newFixture(t)

	layout := f.loader.Site(context.Background(), "example.com")
	assert.Equal(t, SiteLayout{}, layout)
	assert.Zero(t, f.srv.RequestCount())
}

func TestSitePage(t *testing.T) {
	f := newFixture(t)
	layout := f.loader.Site(f.ctx, "example.com")

	data := f.loader.SitePage(f.ctx, layout, "about")
	require.NotNil(t, data.Page)
	assert.Equal(t, "About", data.Page.Title)
	assert.Empty(t, data.PageError)

	data = f.loader.SitePage(f.ctx, layout, "draft")
	assert.Nil(t, data.Page)
	assert.Equal(t, "Page not found.", data.PageError)
	assert.Equal(t, "draft", data.RequestedPath)
}

func TestSitePage_NoSite(t *testing.T) {
	f := newFixture(t)

	data := f.loader.SitePage(f.ctx, SiteLayout{SiteError: "No site configured for domain \"x\"."}, "about")
	assert.Equal(t, "No site configured for domain \"x\".", data.PageError)

	data = f.loader.SitePage(f.ctx, SiteLayout{}, "about")
	assert.Equal(t, "Site could not be resolved for this domain.", data.PageError)
	assert.ErrorIs(t, data.Err, content.ErrNotFound)
	assert.Zero(t, f.srv.RequestCount())
}

func TestSiteEdit(t *testing.T) {
	f := newFixture(t)
	layout := f.loader.Site(f.ctx, "example.com")

	out := f.loader.SiteEdit(f.ctx, SiteLayout{}, "draft", mustURL(t, "/edit/draft"))
	assert.False(t, out.Redirected())
	assert.Equal(t, "Site could not be resolved.", out.Data.LoadError)

	out = f.loader.SiteEdit(f.ctx, layout, "draft", mustURL(t, "/edit/draft?tab=meta"))
	assert.True(t, out.Redirected())
	assert.Equal(t, "/login?redirect=%2Fedit%2Fdraft%3Ftab%3Dmeta", out.Redirect)

	f.login(f.alice)
	out = f.loader.SiteEdit(f.ctx, layout, "draft", mustURL(t, "/edit/draft"))
	require.False(t, out.Redirected())
	require.NotNil(t, out.Data.Page)
	assert.Equal(t, "Draft", out.Data.Page.Title)
	assert.Empty(t, out.Data.LoadError)

	out = f.loader.SiteEdit(f.ctx, layout, "nope", mustURL(t, "/edit/nope"))
	assert.Equal(t, "Page not found.", out.Data.LoadError)
	assert.ErrorIs(t, out.Data.Err, content.ErrNotFound)
}

func TestSiteNew(t *testing.T) {
	f := newFixture(t)
	layout := f.loader.Site(f.ctx, "example.com")

	out := f.loader.SiteNew(f.ctx, SiteLayout{}, mustURL(t, "/new"))
	assert.False(t, out.Redirected())
	assert.Nil(t, out.Data.Site)

	out = f.loader.SiteNew(f.ctx, layout, mustURL(t, "/new?path=docs/a"))
	assert.Equal(t, "/login?redirect=%2Fnew%3Fpath%3Ddocs%2Fa", out.Redirect)

	f.login(f.alice)
	out = f.loader.SiteNew(f.ctx, layout, mustURL(t, "/new?path=docs/a"))
	require.False(t, out.Redirected())
	assert.Equal(t, "docs/a", out.Data.InitialPath)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	out := f.loader.Settings(f.ctx)
	assert.Equal(t, "/login?redirect=/settings", out.Redirect)

	f.login(f.alice)
	out = f.loader.Settings(f.ctx)
	require.False(t, out.Redirected())
	assert.Equal(t, f.alice, out.Data.User.ID)
	assert.Equal(t, "alice", out.Data.User.Username, "record is refreshed from the backend")
}

func TestSettings_BackendDownKeepsCachedRecord(t *testing.T) {
	f := newFixture(t)
	f.login(f.alice)
	f.srv.Fail("users", http.StatusServiceUnavailable, "down")

	out := f.loader.Settings(f.ctx)
	require.False(t, out.Redirected())
	assert.Equal(t, f.alice, out.Data.User.ID)
	assert.Empty(t, out.Data.User.Username)
}

func TestSettings_RevokedToken(t *testing.T) {
	f := newFixture(t)
	other := pbtest.New(t)
	f.auth.Save(other.Token(f.alice), &pocketbase.AuthRecord{ID: f.alice})

	out := f.loader.Settings(f.ctx)
	assert.Equal(t, "/login?redirect=/settings", out.Redirect)
	assert.False(t, f.auth.IsValid())
}

func TestNamespacePage(t *testing.T) {
	f := newFixture(t)

	layout := f.loader.Namespace(f.ctx, "alice")
	require.NotNil(t, layout.User)
	assert.Equal(t, "alice", layout.Username)

	data := f.loader.NamespacePage(f.ctx, layout, "notes")
	assert.Equal(t, "Page not found.", data.PageError, "drafts are hidden from visitors")

	f.login(f.alice)
	data = f.loader.NamespacePage(f.ctx, layout, "notes")
	require.NotNil(t, data.Page)
	assert.Equal(t, "alice", data.Username)

	missing := f.loader.Namespace(f.ctx, "bob")
	assert.Equal(t, `User "bob" not found.`, missing.NamespaceError)
	data = f.loader.NamespacePage(f.ctx, missing, "x")
	assert.Equal(t, `User "bob" not found.`, data.PageError)
	assert.ErrorIs(t, data.Err, content.ErrNotFound)

	data = f.loader.NamespacePage(f.ctx, NamespaceLayout{Username: "bob"}, "x")
	assert.Equal(t, "User could not be found.", data.PageError)
}

func TestNamespaceEdit(t *testing.T) {
	f := newFixture(t)
	layout := f.loader.Namespace(f.ctx, "alice")

	out := f.loader.NamespaceEdit(f.ctx, layout, "notes")
	assert.Equal(t, "/login?redirect=%2Falice%2Fedit%2Fnotes", out.Redirect)

	mallory := f.srv.AddUser("mallory", "password123", nil)
	f.login(mallory)
	out = f.loader.NamespaceEdit(f.ctx, layout, "notes")
	assert.Equal(t, "/alice", out.Redirect)

	f.login(f.alice)
	out = f.loader.NamespaceEdit(f.ctx, layout, "notes")
	require.False(t, out.Redirected())
	require.NotNil(t, out.Data.Page)
	assert.Equal(t, "Notes", out.Data.Page.Title)

	out = f.loader.NamespaceEdit(f.ctx, NamespaceLayout{Username: "ghost"}, "x")
	assert.Equal(t, "/ghost", out.Redirect)
}

func TestNamespaceNew(t *testing.T) {
	f := newFixture(t)
	layout := f.loader.Namespace(f.ctx, "alice")

	out := f.loader.NamespaceNew(f.ctx, layout, mustURL(t, "/alice/new?path=ideas"))
	assert.Equal(t, "/login?redirect=%2Falice%2Fnew%3Fpath%3Dideas", out.Redirect)

	f.login(f.alice)
	out = f.loader.NamespaceNew(f.ctx, layout, mustURL(t, "/alice/new?path=ideas"))
	require.False(t, out.Redirected())
	assert.Equal(t, "ideas", out.Data.InitialPath)
	assert.Equal(t, "alice", out.Data.Username)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login?redirect=%2Fa+b%3Fx%3D1%26y%3D2", LoginURL("/a b?x=1&y=2"))
}
