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

// NamespaceHandler serves user namespaces (/{username}/...) on the
// platform hosts.
type NamespaceHandler struct {
	base
}

// NewNamespaceHandler creates a new NamespaceHandler.
func NewNamespaceHandler(store *content.Store, loader *guard.Loader, renderer *render.Renderer, logger *slog.Logger) *NamespaceHandler {
	return &NamespaceHandler{base{store: store, loader: loader, renderer: renderer, logger: logger}}
}

// Home handles GET / on a platform host.
func (h *NamespaceHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", render.TemplateData{})
}

// layout resolves the namespace owner. ok is false when a response was
// already written for a reserved name.
func (h *NamespaceHandler) layout(w http.ResponseWriter, r *http.Request) (guard.NamespaceLayout, bool) {
	username := chi.URLParam(r, "username")
	if IsReservedUsername(username) {
		h.error(w, r, http.StatusNotFound, "Page not found.", render.TemplateData{})
		return guard.NamespaceLayout{}, false
	}
	return h.loader.Namespace(r.Context(), username), true
}

func prefixFor(username string) string {
	return "/" + username
}

// Page handles GET /{username} and GET /{username}/*.
func (h *NamespaceHandler) Page(w http.ResponseWriter, r *http.Request) {
	layout, ok := h.layout(w, r)
	if !ok {
		return
	}
	data := h.loader.NamespacePage(r.Context(), layout, pagePath(r))

	isOwner := layout.User != nil && h.store.CurrentUserID(r.Context()) == layout.User.ID
	td := render.TemplateData{Owner: layout.User}
	view := newPageView(data.Page, data.PageError, data.RequestedPath, isOwner, prefixFor(layout.Username))
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

// EditForm handles GET /{username}/edit and GET /{username}/edit/*.
func (h *NamespaceHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	layout, ok := h.layout(w, r)
	if !ok {
		return
	}
	out := h.loader.NamespaceEdit(r.Context(), layout, pagePath(r))
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	data := out.Data
	prefix := prefixFor(layout.Username)
	td := render.TemplateData{Title: "Edit page", Owner: layout.User}
	if data.Page == nil {
		td.Data = EditForm{Action: r.URL.Path, LoadError: data.PageError, BackURL: render.PageURL(prefix, data.RequestedPath)}
		h.render(w, r, missingStatus(data.Err), "edit", td)
		return
	}
	td.Data = editFormFor(data.Page, r.URL.Path, prefix)
	h.render(w, r, http.StatusOK, "edit", td)
}

// Edit handles POST /{username}/edit and POST /{username}/edit/*.
func (h *NamespaceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	layout, ok := h.layout(w, r)
	if !ok {
		return
	}
	out := h.loader.NamespaceEdit(r.Context(), layout, pagePath(r))
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	data := out.Data
	prefix := prefixFor(layout.Username)
	td := render.TemplateData{Title: "Edit page", Owner: layout.User}
	if data.Page == nil {
		td.Data = EditForm{Action: r.URL.Path, LoadError: data.PageError}
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
			h.mutationFailed(w, r, err, editFormFor(data.Page, r.URL.Path, prefix), td)
			return
		}
		h.renderer.SetFlash(r, "Page deleted.", flashSuccess)
		seeOther(w, r, prefix)
		return
	}

	page, err := h.store.UpdatePage(r.Context(), data.Page.ID, form.update())
	if err != nil {
		h.mutationFailed(w, r, err, form.refill(editFormFor(data.Page, r.URL.Path, prefix)), td)
		return
	}
	h.renderer.SetFlash(r, "Page saved.", flashSuccess)
	seeOther(w, r, afterSave(prefix, page, true))
}

// NewForm handles GET /{username}/new.
func (h *NamespaceHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	layout, ok := h.layout(w, r)
	if !ok {
		return
	}
	out := h.loader.NamespaceNew(r.Context(), layout, r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	prefix := prefixFor(layout.Username)
	h.render(w, r, http.StatusOK, "edit", render.TemplateData{
		Title: "New page",
		Owner: layout.User,
		Data: EditForm{
			IsNew:   true,
			Action:  prefix + RouteNew,
			Parent:  content.NormalizePath(r.URL.Query().Get(FieldParent)),
			Path:    content.NormalizePath(out.Data.InitialPath),
			Format:  model.FormatMarkdown,
			BackURL: prefix,
		},
	})
}

// New handles POST /{username}/new.
func (h *NamespaceHandler) New(w http.ResponseWriter, r *http.Request) {
	layout, ok := h.layout(w, r)
	if !ok {
		return
	}
	out := h.loader.NamespaceNew(r.Context(), layout, r.URL)
	if out.Redirected() {
		found(w, r, out.Redirect)
		return
	}
	prefix := prefixFor(layout.Username)
	td := render.TemplateData{Title: "New page", Owner: layout.User}

	form, err := parsePageForm(w, r)
	if err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data.", td)
		return
	}
	in := form.input()
	in.Owner = out.Data.User.ID

	page, err := h.store.CreatePage(r.Context(), in)
	if err != nil {
		h.mutationFailed(w, r, err, form.refill(EditForm{IsNew: true, Action: prefix + RouteNew, BackURL: prefix}), td)
		return
	}
	h.renderer.SetFlash(r, "Page created.", flashSuccess)
	seeOther(w, r, afterSave(prefix, page, true))
}
