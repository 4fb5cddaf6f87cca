// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/session"
	"github.com/olegiv/osites/web"
)

func TestMarkdown_SanitizesRawHTML(t *testing.T) {
	out, err := Markdown("# Title\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n[x](javascript:alert(1))")
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, ">Title</h1>")
	assert.Contains(t, s, "<table>")
	assert.NotContains(t, s, "<script>")
	assert.NotContains(t, s, "javascript:")
}

func TestPageHTML(t *testing.T) {
	out, err := PageHTML(&model.Page{ContentFormat: model.FormatHTML, Content: `<p onclick="x()">hi</p><iframe src="//evil"></iframe>`})
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(out))

	out, err = PageHTML(&model.Page{Content: "*em*"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<em>em</em>")

	_, err = PageHTML(&model.Page{ContentFormat: "rst"})
	assert.Error(t, err)

	out, err = PageHTML(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestThemeStyle(t *testing.T) {
	assert.Empty(t, ThemeStyle(nil))

	style := ThemeStyle(&model.Theme{PrimaryColor: "#ff0000", BackgroundColor: "red; background:url(x)", TextColor: "rgb(0, 0, 0)"})
	assert.Equal(t, "--primary-color: #ff0000; --text-color: rgb(0, 0, 0);", string(style))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/", PageURL("", ""))
	assert.Equal(t, "/", PageURL("", "index"))
	assert.Equal(t, "/about", PageURL("", "about"))
	assert.Equal(t, "/alice", PageURL("/alice", "index"))
	assert.Equal(t, "/alice/docs/a", PageURL("/alice/", "docs/a"))
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Config{TemplatesFS: web.Templates(), SessionManager: session.New(true)})
	require.NoError(t, err)
	return r
}

func TestNew_ParsesEmbeddedTemplates(t *testing.T) {
	r := newTestRenderer(t)
	for _, name := range []string{"home", "page", "edit", "login", "settings", "error"} {
		assert.Contains(t, r.templates, name)
	}
}

func TestNew_NoPages(t *testing.T) {
	fsys := fstest.MapFS{
		"layouts/base.html":   {Data: []byte(`{{define "base"}}{{end}}`)},
		"partials/empty.html": {Data: []byte(``)},
		"pages/readme.txt":    {Data: []byte(`x`)},
	}
	_, err := New(Config{TemplatesFS: fsys})
	assert.Error(t, err)
}

func TestRender_PageWithFlashAndTheme(t *testing.T) {
	r := newTestRenderer(t)
	sm := r.sessionManager

	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/about", nil).WithContext(ctx)
	r.SetFlash(req, "Page saved.", "success")

	rec := httptest.NewRecorder()
	err = r.Render(rec, req, http.StatusOK, "page", TemplateData{
		Title: "About",
		Site:  &model.Site{Name: "Blog", Theme: &model.Theme{PrimaryColor: "#123456"}},
		Data: struct {
			Page          *model.Page
			Description   string
			Canonical     string
			Breadcrumbs   []Breadcrumb
			Error         string
			RequestedPath string
			CanEdit       bool
			EditURL       string
			NewURL        string
		}{Page: &model.Page{Title: "About", Content: "Hello **world**", Published: true}},
	})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "<title>About · Blog</title>")
	assert.Contains(t, body, "<strong>world</strong>")
	assert.Contains(t, body, "Page saved.")
	assert.Contains(t, body, "--primary-color: #123456")
	assert.NotContains(t, body, "Draft")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)
	err := r.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "missing", TemplateData{})
	assert.Error(t, err)
}

func TestError(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()
	r.Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusNotFound, "Page not found.", TemplateData{})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")
	assert.Contains(t, rec.Body.String(), "<title>Not Found · oSites</title>")
}

func TestBreadcrumbs(t *testing.T) {
	assert.Nil(t, Breadcrumbs("", "about"))
	assert.Nil(t, Breadcrumbs("/alice", ""))

	assert.Equal(t, []Breadcrumb{
		{Label: "Home", URL: "/alice"},
		{Label: "docs", URL: "/alice/docs"},
		{Label: "intro", URL: "/alice/docs/intro", Active: true},
	}, Breadcrumbs("/alice", "docs/intro"))
}
