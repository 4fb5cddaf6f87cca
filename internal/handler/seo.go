// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/guard"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/seo"
)

// SEOHandler serves robots.txt and sitemap.xml for site domains.
type SEOHandler struct {
	store  *content.Store
	loader *guard.Loader
	logger *slog.Logger
}

// NewSEOHandler creates a new SEOHandler.
func NewSEOHandler(store *content.Store, loader *guard.Loader, logger *slog.Logger) *SEOHandler {
	return &SEOHandler{store: store, loader: loader, logger: logger}
}

// siteURL is the scheme and host the request arrived on.
func siteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// Robots handles GET /robots.txt. Sites without public read disallow
// everything.
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	layout := h.loader.Site(r.Context(), requestHost(r))
	if layout.Site == nil {
		http.Error(w, http.StatusText(missingStatus(layout.Err)), missingStatus(layout.Err))
		return
	}

	body := seo.NewRobotsBuilder(seo.RobotsConfig{
		SiteURL:     siteURL(r),
		DisallowAll: !layout.Site.PublicRead,
	}).Build()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(body))
}

// Sitemap handles GET /sitemap.xml. Only public sites have one.
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	layout := h.loader.Site(r.Context(), requestHost(r))
	if layout.Site == nil || !layout.Site.PublicRead {
		http.NotFound(w, r)
		return
	}

	pages, err := h.store.ListPublishedPages(r.Context(), layout.Site.ID)
	if err != nil {
		h.logger.Error("failed to list pages for sitemap", "site_id", layout.Site.ID, "error", err)
		http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
		return
	}

	entries := make([]seo.SitemapPage, 0, len(pages))
	for i := range pages {
		entries = append(entries, seo.SitemapPage{Path: pages[i].Path, UpdatedAt: pages[i].UpdatedAt()})
	}
	body, err := seo.GenerateSitemap(siteURL(r), entries)
	if err != nil {
		h.logger.Error("failed to build sitemap", "site_id", layout.Site.ID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(body)
}

// pageDescription is the meta description of a rendered page.
func pageDescription(page *model.Page) string {
	body, err := render.PageHTML(page)
	if err != nil {
		return ""
	}
	return seo.Description(string(body), seo.DescriptionLength)
}
