// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/guard"
	"github.com/olegiv/osites/internal/metrics"
	"github.com/olegiv/osites/internal/middleware"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/version"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Store           *content.Store
	Renderer        *render.Renderer
	Sessions        *scs.SessionManager
	LoginProtection *middleware.LoginProtection
	Backend         BackendStatusSource
	Cache           Pinger // optional
	Metrics         *metrics.Metrics
	Static          fs.FS
	Version         version.Info
	Logger          *slog.Logger

	PlatformHosts  []string
	IsDevelopment  bool
	Port           string
	SessionSecret  []byte
	RequestTimeout time.Duration
	ImageOrigins   []string
	RateLimit      float64 // requests per second per client IP, 0 disables
	RateBurst      int
}

// NewRouter builds the full handler tree: the shared middleware stack,
// operational endpoints, then host dispatch between the platform
// (namespace) routes and site domains.
func NewRouter(d Deps) http.Handler {
	loader := guard.New(d.Store)
	sites := NewSiteHandler(d.Store, loader, d.Renderer, d.Logger)
	namespaces := NewNamespaceHandler(d.Store, loader, d.Renderer, d.Logger)
	auth := NewAuthHandler(d.Store, loader, d.Renderer, d.LoginProtection, d.Logger)
	seoHandler := NewSEOHandler(d.Store, loader, d.Logger)
	health := NewHealthHandler(d.Backend, d.Cache, d.Version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.IsDevelopment, d.ImageOrigins...)))

	// Operational endpoints skip sessions and the backend.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Get(RouteHealth, health.Health)
		r.Get(RouteHealthLive, health.Liveness)
		r.Get(RouteHealthReady, health.Readiness)
		if d.Metrics != nil {
			r.Handle(RouteMetrics, d.Metrics.Handler())
		}
	})
	if d.Static != nil {
		r.With(middleware.StaticCache(86400)).
			Handle(RouteStatic, http.StripPrefix("/static/", http.FileServer(http.FS(d.Static))))
	}

	// Visitor routes: sessions, the per-visitor auth store and CSRF.
	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}
		if d.RateLimit > 0 {
			r.Use(middleware.NewRateLimiter(d.RateLimit, d.RateBurst).Middleware())
		}
		r.Use(middleware.RequestPath)
		r.Use(d.Sessions.LoadAndSave)
		r.Use(middleware.Interactive)
		r.Use(middleware.Auth(d.Sessions, d.Logger))
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(d.SessionSecret, d.IsDevelopment, d.Port)))

		platform := chi.NewRouter()
		commonRoutes(platform, auth, d.LoginProtection)
		platform.Get(RouteRoot, namespaces.Home)
		platform.Route(RouteUsername, func(r chi.Router) {
			r.Get(RouteRoot, namespaces.Page)
			r.Get(RouteNew, namespaces.NewForm)
			r.Post(RouteNew, namespaces.New)
			r.Get(RouteEdit, namespaces.EditForm)
			r.Post(RouteEdit, namespaces.Edit)
			r.Get(RouteEditPath, namespaces.EditForm)
			r.Post(RouteEditPath, namespaces.Edit)
			r.Get(RouteWildcard, namespaces.Page)
		})

		site := chi.NewRouter()
		commonRoutes(site, auth, d.LoginProtection)
		site.Get(RouteRobots, seoHandler.Robots)
		site.Get(RouteSitemap, seoHandler.Sitemap)
		site.Get(RouteNew, sites.NewForm)
		site.Post(RouteNew, sites.New)
		site.Get(RouteEdit, sites.EditForm)
		site.Post(RouteEdit, sites.Edit)
		site.Get(RouteEditPath, sites.EditForm)
		site.Post(RouteEditPath, sites.Edit)
		site.Get(RouteRoot, sites.Page)
		site.Get(RouteWildcard, sites.Page)

		r.Handle(RouteRoot, middleware.NewHostRouter(d.PlatformHosts, platform, site))
		r.Handle(RouteWildcard, middleware.NewHostRouter(d.PlatformHosts, platform, site))
	})

	return r
}

// commonRoutes are served on every host.
func commonRoutes(r chi.Router, auth *AuthHandler, lp *middleware.LoginProtection) {
	r.Get(RouteLogin, auth.LoginForm)
	if lp != nil {
		r.With(lp.Middleware()).Post(RouteLogin, auth.Login)
	} else {
		r.Post(RouteLogin, auth.Login)
	}
	r.Post(RouteLogout, auth.Logout)
	r.With(middleware.NoStore).Get(RouteSettings, auth.Settings)
}
