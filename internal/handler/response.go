// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/guard"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/util"
)

// maxFormBytes bounds page editor submissions.
const maxFormBytes = 1 << 20

// base carries the collaborators every HTML handler needs.
type base struct {
	store    *content.Store
	loader   *guard.Loader
	renderer *render.Renderer
	logger   *slog.Logger
}

// statusFor maps a data access error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalid), errors.Is(err, content.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, content.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// missingStatus is the status for a record that could not be loaded. A nil
// err means the lookup was skipped and the record counts as not found.
func missingStatus(err error) int {
	if err == nil {
		return http.StatusNotFound
	}
	return statusFor(err)
}

// requestHost is the lowercased request host, port included. A site stored
// as "example.com" does not answer on "example.com:8080".
func requestHost(r *http.Request) string {
	return strings.ToLower(r.Host)
}

// seeOther redirects after a form post.
func seeOther(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// found follows a guard decision, such as sending a visitor to log in.
func found(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusFound)
}

func (b *base) render(w http.ResponseWriter, r *http.Request, status int, name string, data render.TemplateData) {
	if err := b.renderer.Render(w, r, status, name, data); err != nil {
		b.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (b *base) error(w http.ResponseWriter, r *http.Request, status int, message string, data render.TemplateData) {
	b.renderer.Error(w, r, status, message, data)
}

// pageForm is a parsed editor submission.
type pageForm struct {
	Action    string
	Parent    string
	Title     string
	Path      string
	Format    model.ContentFormat
	Content   string
	Published bool
}

func parsePageForm(w http.ResponseWriter, r *http.Request) (pageForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return pageForm{}, err
	}
	format := model.ContentFormat(r.PostFormValue(FieldFormat))
	if format == "" {
		format = model.FormatMarkdown
	}
	title := r.PostFormValue(FieldTitle)
	parent := content.NormalizePath(r.PostFormValue(FieldParent))
	path := content.NormalizePath(r.PostFormValue(FieldPath))
	if path == "" && parent != "" {
		path = util.SuggestPagePath(parent, title)
	}
	return pageForm{
		Action:    r.PostFormValue(FieldAction),
		Parent:    parent,
		Title:     title,
		Path:      path,
		Format:    format,
		Content:   r.PostFormValue(FieldContent),
		Published: r.PostFormValue(FieldPublished) == "true",
	}, nil
}

func (f pageForm) input() model.PageInput {
	return model.PageInput{
		Path:          f.Path,
		Title:         f.Title,
		Content:       f.Content,
		ContentFormat: f.Format,
		Published:     f.Published,
	}
}

// update writes every editor field; the form always carries all of them.
func (f pageForm) update() model.PageUpdate {
	return model.PageUpdate{
		Path:          &f.Path,
		Title:         &f.Title,
		Content:       &f.Content,
		ContentFormat: &f.Format,
		Published:     &f.Published,
	}
}

// refill copies the submitted values into an editor form for re-rendering.
func (f pageForm) refill(form EditForm) EditForm {
	form.Parent = f.Parent
	form.Title = f.Title
	form.Path = f.Path
	form.Format = f.Format
	form.Content = f.Content
	form.Published = f.Published
	return form
}

// mutationFailed re-renders the editor with the error message, or sends
// the visitor to log in again when the session has lapsed.
func (b *base) mutationFailed(w http.ResponseWriter, r *http.Request, err error, form EditForm, data render.TemplateData) {
	if errors.Is(err, content.ErrUnauthenticated) {
		seeOther(w, r, guard.LoginURL(r.URL.RequestURI()))
		return
	}
	form.Error = content.Message(err)
	data.Data = form
	b.render(w, r, statusFor(err), "edit", data)
}

// afterSave is where the editor goes once a page is stored. Drafts are not
// publicly visible, so they return to the editor.
func afterSave(prefix string, page *model.Page, visible bool) string {
	if page.Published || visible {
		return render.PageURL(prefix, page.Path)
	}
	return editURL(prefix, page.Path)
}
