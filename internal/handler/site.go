// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/guard"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/seo"
)

// SiteHandler serves the pages of a site resolved from the request host.
type SiteHandler struct {
	base
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(store *content.Store, loader *guard.Loader, renderer *render.Renderer, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{base{store: store, loader: loader, renderer: renderer, logger: logger}}
}

func (h *SiteHandler) layout(r *http.Request) guard.SiteLayout {
	return h.loader.Site(r.Context(), requestHost(r))
}

// pagePath is the normalized wildcard part of the route.
func pagePath(r *http.Request) string {
	return content.NormalizePath(chi.URLParam(r, "*"))
}

// Page handles GET / and GET /* on a site domain.
func (h *SiteHandler) Page(w http.ResponseWriter, r *http.Request) {
	layout := h.layout(r)
	data := h.loader.SitePage(r.Context(), layout, pagePath(r))

	td := render.TemplateData{Site: layout.Site}
	canEdit := layout.Site != nil && h.store.IsAuthenticated(r.Context())
	view := newPageView(data.Page, data.PageError, data.RequestedPath, canEdit, "")
	if data.Page == nil {
		td.Title = "Not available"
		td.Data = view
		h.render(w, r, missingStatus(data.Err), "page", td)
		return
	}
	td.Title = data.Page.Title
	view.Description = pageDescription(data.Page)
	view.Canonical = seo.AbsoluteURL(siteURL(r), r.URL.Path)
	td.Data = view
	h.render(w, r, http.StatusOK, "page", td)
}

// EditForm handles GET /edit and GET /edit/*.
func (h *SiteHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	layout := h.layout(r)
	out := h.loader.SiteEdit(r.Context(), layout, pagePath(r), r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	data := out.Data
	td := render.TemplateData{Title: "Edit page", Site: layout.Site}
	if data.Page == nil {
		td.Data = EditForm{Action: r.URL.Path, LoadError: data.LoadError, BackURL: render.PageURL("", data.RequestedPath)}
		h.render(w, r, missingStatus(data.Err), "edit", td)
		return
	}
	td.Data = editFormFor(data.Page, r.URL.Path, "")
	h.render(w, r, http.StatusOK, "edit", td)
}

// Edit handles POST /edit and POST /edit/*. The form either saves every
// field or, with action=delete, removes the page.
func (h *SiteHandler) Edit(w http.ResponseWriter, r *http.Request) {
	layout := h.layout(r)
	out := h.loader.SiteEdit(r.Context(), layout, pagePath(r), r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	data := out.Data
	td := render.TemplateData{Title: "Edit page", Site: layout.Site}
	if data.Page == nil {
		td.Data = EditForm{Action: r.URL.Path, LoadError: data.LoadError}
		h.render(w, r, missingStatus(data.Err), "edit", td)
		return
	}

	form, err := parsePageForm(w, r)
	if err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data.", td)
		return
	}

	if form.Action == actionDelete {
		if err := h.store.DeletePage(r.Context(), data.Page.ID); err != nil {
			h.mutationFailed(w, r, err, editFormFor(data.Page, r.URL.Path, ""), td)
			return
		}
		h.renderer.SetFlash(r, "Page deleted.", flashSuccess)
		seeOther(w, r, RouteRoot)
		return
	}

	page, err := h.store.UpdatePage(r.Context(), data.Page.ID, form.update())
	if err != nil {
		h.mutationFailed(w, r, err, form.refill(editFormFor(data.Page, r.URL.Path, "")), td)
		return
	}
	h.renderer.SetFlash(r, "Page saved.", flashSuccess)
	seeOther(w, r, afterSave("", page, false))
}

// NewForm handles GET /new.
func (h *SiteHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	layout := h.layout(r)
	out := h.loader.SiteNew(r.Context(), layout, r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	td := render.TemplateData{Title: "New page", Site: layout.Site}
	if out.Data.Site == nil {
		td.Data = EditForm{IsNew: true, Action: RouteNew, LoadError: msgOr(layout.SiteError, "Site could not be resolved.")}
		h.render(w, r, missingStatus(layout.Err), "edit", td)
		return
	}
	td.Data = EditForm{
		IsNew:   true,
		Action:  RouteNew,
		Parent:  content.NormalizePath(r.URL.Query().Get(FieldParent)),
		Path:    content.NormalizePath(out.Data.InitialPath),
		Format:  model.FormatMarkdown,
		BackURL: RouteRoot,
	}
	h.render(w, r, http.StatusOK, "edit", td)
}

// New handles POST /new.
func (h *SiteHandler) New(w http.ResponseWriter, r *http.Request) {
	layout := h.layout(r)
	out := h.loader.SiteNew(r.Context(), layout, r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	td := render.TemplateData{Title: "New page", Site: layout.Site}
	if out.Data.Site == nil {
		td.Data = EditForm{IsNew: true, Action: RouteNew, LoadError: msgOr(layout.SiteError, "Site could not be resolved.")}
		h.render(w, r, missingStatus(layout.Err), "edit", td)
		return
	}

	form, err := parsePageForm(w, r)
	if err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data.", td)
		return
	}
	in := form.input()
	in.Site = out.Data.Site.ID

	page, err := h.store.CreatePage(r.Context(), in)
	if err != nil {
		h.mutationFailed(w, r, err, form.refill(EditForm{IsNew: true, Action: RouteNew, BackURL: RouteRoot}), td)
		return
	}
	h.renderer.SetFlash(r, "Page created.", flashSuccess)
	seeOther(w, r, afterSave("", page, false))
}

func msgOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
