// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/metrics"
	"github.com/olegiv/osites/internal/middleware"
	"github.com/olegiv/osites/internal/pocketbase"
	"github.com/olegiv/osites/internal/pocketbase/pbtest"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/scheduler"
	"github.com/olegiv/osites/internal/session"
	"github.com/olegiv/osites/internal/version"
	"github.com/olegiv/osites/web"
)

const (
	siteHost    = "example.com"
	privateHost = "private.test"
	password    = "password123"
)

type fakeMonitor struct {
	status scheduler.CheckStatus
}

func (p *fakeMonitor) Status() scheduler.CheckStatus { return p.status }

type cachePinger struct{ err error }

func (p cachePinger) Ping(context.Context) error { return p.err }

type harness struct {
	pb      *pbtest.Server
	srv     *httptest.Server
	client  *http.Client
	monitor *fakeMonitor
	metrics *metrics.Metrics
	alice   string
	bob     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pb := pbtest.New(t)

	alice := pb.AddUser("alice", password, map[string]any{"name": "Alice"})
	bob := pb.AddUser("bob", password, nil)
	pb.Add("sites", map[string]any{"id": "site1", "domain": siteHost, "name": "Example", "public_read": true})
	pb.Add("sites", map[string]any{"id": "site2", "domain": privateHost, "name": "Private", "public_read": false})
	pb.Add("pages", map[string]any{"site": "site1", "path": "index", "title": "Welcome", "content": "Hello from **Example**", "published": true})
	pb.Add("pages", map[string]any{"site": "site1", "path": "about", "title": "About us", "content": "About", "published": true})
	pb.Add("pages", map[string]any{"site": "site1", "path": "draft", "title": "Secret draft", "published": false})
	pb.Add("pages", map[string]any{"owner": alice, "path": "index", "title": "Alice home", "published": true})
	pb.Add("pages", map[string]any{"owner": alice, "path": "notes", "title": "Alice notes", "published": false})

	m := metrics.New()
	provider := backend.NewProvider(backend.Config{
		URL:     pb.URL,
		Options: []pocketbase.Option{pocketbase.WithObserver(m)},
	}, logger)
	store := content.New(provider, logger, content.Options{})
	sm := session.New(true)
	renderer, err := render.New(render.Config{TemplatesFS: web.Templates(), SessionManager: sm, Logger: logger})
	require.NoError(t, err)

	monitor := &fakeMonitor{status: scheduler.CheckStatus{CheckedAt: time.Now()}}
	h := &harness{pb: pb, monitor: monitor, metrics: m, alice: alice, bob: bob}

	h.srv = httptest.NewServer(NewRouter(Deps{
		Store:           store,
		Renderer:        renderer,
		Sessions:        sm,
		LoginProtection: middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig()),
		Backend:         monitor,
		Metrics:         m,
		Static:          web.Static(),
		Version:         version.Info{Version: "1.2.3"},
		Logger:          logger,
		PlatformHosts:   []string{"127.0.0.1", "localhost"},
		ImageOrigins:    []string{pb.URL},
		IsDevelopment:   true,
		SessionSecret:   []byte("0123456789abcdef0123456789abcdef"),
	}))
	t.Cleanup(h.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

// do sends a request as host (the platform host when empty) and returns
// the response with its body read.
func (h *harness) do(t *testing.T, method, host, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if host != "" {
		req.Host = host
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (h *harness) get(t *testing.T, host, path string) (*http.Response, string) {
	t.Helper()
	return h.do(t, http.MethodGet, host, path, nil)
}

func (h *harness) post(t *testing.T, host, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	return h.do(t, http.MethodPost, host, path, form)
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	resp, _ := h.post(t, "", RouteLogin, url.Values{FieldIdentity: {username}, FieldPassword: {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestSitePage(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, siteHost, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome")
	assert.Contains(t, body, "<strong>Example</strong>")
	assert.Contains(t, body, `<link rel="canonical" href="http://example.com/">`)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "img-src 'self' data: "+h.pb.URL)

	resp, body = h.get(t, siteHost, "/about")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "About us")

	resp, _ = h.get(t, siteHost, "/about/")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/about", resp.Header.Get("Location"))
}

func TestSitePage_Missing(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, siteHost, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page not found.")

	resp, body = h.get(t, siteHost, "/draft")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "Secret draft")

	resp, _ = h.get(t, "nowhere.test", "/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSitePage_HostWithPort(t *testing.T) {
	h := newHarness(t)
	h.pb.Add("sites", map[string]any{"id": "site3", "domain": "preview.test:8080", "name": "Preview", "public_read": true})
	h.pb.Add("pages", map[string]any{"site": "site3", "path": "index", "title": "Preview home", "published": true})

	resp, body := h.get(t, "preview.test:8080", "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Preview home")

	resp, _ = h.get(t, "preview.test", "/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.get(t, siteHost+":8080", "/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSitePage_BackendDown(t *testing.T) {
	h := newHarness(t)
	h.pb.Fail("pages", http.StatusInternalServerError, "boom")

	resp, body := h.get(t, siteHost, "/about")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "Unable to load page content.")
}

func TestSiteEdit_RequiresLogin(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, siteHost, "/edit/about")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fedit%2Fabout", resp.Header.Get("Location"))

	resp, _ = h.get(t, siteHost, "/new?path=docs")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fnew%3Fpath%3Ddocs", resp.Header.Get("Location"))

	resp, _ = h.post(t, siteHost, "/edit/about", url.Values{FieldTitle: {"Hacked"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "About us", h.pb.Records("pages")[1]["title"])
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "", "/login?redirect=/settings")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="redirect" value="/settings"`)

	resp, body = h.post(t, "", RouteLogin, url.Values{FieldIdentity: {"alice"}, FieldPassword: {"wrong"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password.")
	assert.Contains(t, body, `value="alice"`)

	resp, _ = h.post(t, "", RouteLogin, url.Values{
		FieldIdentity: {"alice"},
		FieldPassword: {password},
		FieldRedirect: {"/settings"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/settings", resp.Header.Get("Location"))

	resp, body = h.get(t, "", RouteSettings)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome back, alice.")
	assert.Contains(t, body, "<dd>alice</dd>")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	// Already signed in.
	resp, _ = h.get(t, "", "/login?redirect=/alice")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/alice", resp.Header.Get("Location"))

	resp, _ = h.post(t, "", RouteLogout, url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = h.get(t, "", RouteSettings)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=/settings", resp.Header.Get("Location"))
}

func TestLogin_RejectsOffsiteRedirect(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"//evil.example", "https://evil.example/", "/\\evil.example"} {
		resp, _ := h.post(t, "", RouteLogin, url.Values{
			FieldIdentity: {"bob"},
			FieldPassword: {password},
			FieldRedirect: {target},
		})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, target)
		assert.Equal(t, "/", resp.Header.Get("Location"), target)
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	attempts := middleware.DefaultLoginProtectionConfig().MaxFailedAttempts

	var resp *http.Response
	var body string
	for range attempts {
		resp, body = h.post(t, "", RouteLogin, url.Values{FieldIdentity: {"bob"}, FieldPassword: {"nope"}})
	}
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many failed attempts.")

	resp, _ = h.post(t, "", RouteLogin, url.Values{FieldIdentity: {"bob"}, FieldPassword: {password}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestSitePage_CreateEditDelete(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice")

	resp, body := h.get(t, siteHost, "/new?path=docs/intro")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="docs/intro"`)

	resp, body = h.post(t, siteHost, RouteNew, url.Values{
		FieldTitle:     {"Intro"},
		FieldPath:      {"/docs/intro/"},
		FieldFormat:    {"md"},
		FieldContent:   {"# Getting started"},
		FieldPublished: {"true"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, body)
	assert.Equal(t, "/docs/intro", resp.Header.Get("Location"))

	resp, body = h.get(t, siteHost, "/docs/intro")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Page created.")
	assert.Contains(t, body, "Getting started")
	assert.Contains(t, body, `href="/edit/docs/intro"`)
	assert.Contains(t, body, `<a href="/docs">docs</a>`)

	resp, body = h.get(t, siteHost, "/edit/docs/intro")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="Intro"`)

	// Unpublishing returns to the editor, since the page is no longer public.
	resp, _ = h.post(t, siteHost, "/edit/docs/intro", url.Values{
		FieldTitle:   {"Intro v2"},
		FieldPath:    {"docs/intro"},
		FieldFormat:  {"html"},
		FieldContent: {"<p>v2</p>"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/edit/docs/intro", resp.Header.Get("Location"))

	resp, _ = h.get(t, siteHost, "/docs/intro")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.post(t, siteHost, "/edit/docs/intro", url.Values{FieldAction: {actionDelete}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	for _, rec := range h.pb.Records("pages") {
		assert.NotEqual(t, "docs/intro", rec["path"])
	}
}

func TestSitePage_CreateChildFromTitle(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice")

	resp, body := h.get(t, siteHost, "/about")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/new?parent=about"`)

	resp, body = h.get(t, siteHost, "/new?parent=about")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="parent" value="about"`)

	resp, _ = h.post(t, siteHost, RouteNew, url.Values{
		FieldParent:    {"about"},
		FieldTitle:     {"Our Team & Café"},
		FieldPublished: {"true"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/about/our-team-cafe", resp.Header.Get("Location"))
}

func TestSitePage_CreateInvalid(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice")

	resp, body := h.post(t, siteHost, RouteNew, url.Values{FieldPath: {"untitled"}, FieldContent: {"kept"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Title is required.")
	assert.Contains(t, body, ">kept</textarea>")
}

func TestRobots(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, siteHost, RouteRobots)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sitemap: http://example.com/sitemap.xml")
	assert.NotContains(t, body, "Disallow: /\n")

	resp, body = h.get(t, privateHost, RouteRobots)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Disallow: /\n")
}

func TestSitemap(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, siteHost, RouteSitemap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")
	assert.Contains(t, body, "<loc>http://example.com/</loc>")
	assert.Contains(t, body, "<loc>http://example.com/about</loc>")
	assert.NotContains(t, body, "draft")

	resp, _ = h.get(t, privateHost, RouteSitemap)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNamespace(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "", "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "oSites")

	resp, body = h.get(t, "", "/alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Alice home")
	assert.NotContains(t, body, `href="/alice/edit"`)

	resp, _ = h.get(t, "", "/alice/notes")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.get(t, "", "/nobody")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.login(t, "alice")
	resp, body = h.get(t, "", "/alice/notes")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Alice notes")
	assert.Contains(t, body, `href="/alice/edit/notes"`)
}

func TestNamespace_OwnerOnlyEditing(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "", "/alice/edit/notes")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Falice%2Fedit%2Fnotes", resp.Header.Get("Location"))

	h.login(t, "bob")
	resp, _ = h.get(t, "", "/alice/edit/notes")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/alice", resp.Header.Get("Location"))

	resp, _ = h.post(t, "", "/alice/new", url.Values{FieldTitle: {"Spam"}, FieldPath: {"spam"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/alice", resp.Header.Get("Location"))
	for _, rec := range h.pb.Records("pages") {
		assert.NotEqual(t, "spam", rec["path"])
	}
}

func TestNamespace_CreateDraftStaysVisibleToOwner(t *testing.T) {
	h := newHarness(t)
	h.login(t, "bob")

	resp, body := h.post(t, "", "/bob/new", url.Values{FieldTitle: {"Ideas"}, FieldPath: {"ideas"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, body)
	assert.Equal(t, "/bob/ideas", resp.Header.Get("Location"))

	resp, body = h.get(t, "", "/bob/ideas")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Draft")

	resp, _ = h.post(t, "", "/bob/edit/ideas", url.Values{FieldAction: {actionDelete}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/bob", resp.Header.Get("Location"))
}

func TestNamespace_ReservedNames(t *testing.T) {
	h := newHarness(t)
	h.pb.AddUser("new", password, nil)

	resp, _ := h.get(t, "", "/new")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.get(t, "", "/edit/anything")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatic(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "", "/static/site.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=86400")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "", RouteHealth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status HealthStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Contains(t, status.Version, "1.2.3")
	assert.Equal(t, "healthy", status.Checks["backend"].Status)

	resp, _ = h.get(t, "", RouteHealthReady)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.monitor.status = scheduler.CheckStatus{Err: errors.New("connection refused"), CheckedAt: time.Now()}

	resp, body = h.get(t, siteHost, RouteHealth)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotContains(t, body, "connection refused")

	resp, _ = h.get(t, "", RouteHealthReady)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = h.get(t, "", RouteHealthLive)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_DegradedCache(t *testing.T) {
	h := NewHealthHandler(&fakeMonitor{}, cachePinger{err: errors.New("redis down")}, version.Info{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, RouteHealth, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Checks["cache"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.get(t, siteHost, "/about")

	resp, body := h.get(t, "", RouteMetrics)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "osites_http_requests_total")
	assert.Contains(t, body, "osites_backend_requests_total")
}

func TestCSRF_RejectsCrossSitePost(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+RouteLogin, strings.NewReader("identity=alice"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
