// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render executes the HTML templates.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/osites/internal/authstate"
	"github.com/olegiv/osites/internal/middleware"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

const (
	baseLayout  = "layouts/base.html"
	partialsDir = "partials"
	pagesDir    = "pages"
)

// Renderer holds the parsed page templates.
type Renderer struct {
	templates      map[string]*template.Template
	sessionManager *scs.SessionManager
	logger         *slog.Logger
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS    fs.FS
	SessionManager *scs.SessionManager
	Logger         *slog.Logger
}

// New parses every page template together with the base layout and partials.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates:      make(map[string]*template.Template),
		sessionManager: cfg.SessionManager,
		logger:         cfg.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, partialsDir)
	if err != nil {
		return fmt.Errorf("listing partials: %w", err)
	}
	pages, err := templateFiles(templatesFS, pagesDir)
	if err != nil {
		return fmt.Errorf("listing pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates in %s", pagesDir)
	}

	for _, tmplPath := range pages {
		name := strings.TrimSuffix(path.Base(tmplPath), ".html")
		files := append([]string{baseLayout}, partials...)
		files = append(files, tmplPath)

		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return nil
}

func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"pageHTML": PageHTML,
		"pageURL":  PageURL,
		"isHTML": func(f model.ContentFormat) bool {
			return f == model.FormatHTML
		},
	}
}

// PageURL joins a route prefix and a normalized page path. The index page
// lives at the prefix itself.
func PageURL(prefix, pagePath string) string {
	prefix = strings.TrimRight(prefix, "/")
	if pagePath == "" || pagePath == "index" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	return prefix + "/" + pagePath
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title string
	// Site is set on site domains.
	Site *model.Site
	// Owner is set on namespace routes.
	Owner *model.User

	User          *pocketbase.AuthRecord
	Authenticated bool
	ThemeStyle    template.CSS
	RequestPath   string

	Flash       string
	FlashType   string
	CurrentYear int

	Data any
}

// Render writes the named page with status. The visitor's session is read
// from the request context.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	data.CurrentYear = time.Now().Year()
	data.RequestPath = middleware.GetRequestPath(req)
	if data.RequestPath == "" {
		data.RequestPath = req.URL.Path
	}
	if data.ThemeStyle == "" && data.Site != nil {
		data.ThemeStyle = ThemeStyle(data.Site.Theme)
	}
	ctx := req.Context()
	if state := authstate.FromContext(ctx); state != nil {
		// Expiry fires no change event.
		state.Check()
		data.Authenticated = state.Authenticated()
	}
	if store := pocketbase.AuthStoreFromContext(ctx); store != nil && data.Authenticated {
		data.User = store.Record()
	}
	if r.sessionManager != nil && data.Flash == "" {
		if flash := r.sessionManager.PopString(ctx, "flash"); flash != "" {
			data.Flash = flash
			data.FlashType = r.sessionManager.PopString(ctx, "flash_type")
			if data.FlashType == "" {
				data.FlashType = "info"
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// ErrorData is the payload of the error page.
type ErrorData struct {
	Status  int
	Message string
}

// Error renders the error page. If that fails too, a plain text response is sent.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string, data TemplateData) {
	data.Title = http.StatusText(status)
	data.Data = ErrorData{Status: status, Message: message}
	if err := r.Render(w, req, status, "error", data); err != nil {
		r.logger.Error("failed to render error page", "error", err, "status", status)
		http.Error(w, message, status)
	}
}

// SetFlash stores a one-time message shown on the next rendered page.
func (r *Renderer) SetFlash(req *http.Request, message, flashType string) {
	if r.sessionManager != nil {
		r.sessionManager.Put(req.Context(), "flash", message)
		r.sessionManager.Put(req.Context(), "flash_type", flashType)
	}
}
