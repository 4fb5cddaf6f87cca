// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/url"

	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/render"
)

// PageView is the data of the "page" template.
type PageView struct {
	Page          *model.Page
	Description   string
	Canonical     string
	Breadcrumbs   []render.Breadcrumb
	Error         string
	RequestedPath string
	CanEdit       bool
	EditURL       string
	NewURL        string
}

// EditForm is the data of the "edit" template, used for both new and
// existing pages.
type EditForm struct {
	IsNew     bool
	Action    string
	LoadError string
	Error     string

	// Parent nests a new page whose path is left empty.
	Parent    string
	Title     string
	Path      string
	Format    model.ContentFormat
	Content   string
	Published bool

	CanDelete bool
	BackURL   string
}

// LoginForm is the data of the "login" template.
type LoginForm struct {
	Identity string
	Redirect string
	Error    string
}

// editURL is the editor of pagePath under prefix.
func editURL(prefix, pagePath string) string {
	if pagePath == "" {
		return prefix + RouteEdit
	}
	return prefix + RouteEdit + "/" + pagePath
}

// childURL is the new page form for a page nested under parentPath.
func childURL(prefix, parentPath string) string {
	if parentPath == "" || parentPath == "index" {
		return prefix + RouteNew
	}
	return prefix + RouteNew + "?" + url.Values{FieldParent: {parentPath}}.Encode()
}

// newURL is the new page form under prefix, prefilled with pagePath.
func newURL(prefix, pagePath string) string {
	if pagePath == "" {
		return prefix + RouteNew
	}
	return prefix + RouteNew + "?" + url.Values{FieldPath: {pagePath}}.Encode()
}

func newPageView(page *model.Page, loadErr, requested string, canEdit bool, prefix string) PageView {
	var crumbs []render.Breadcrumb
	create := newURL(prefix, requested)
	if page != nil {
		crumbs = render.Breadcrumbs(prefix, page.Path)
		create = childURL(prefix, page.Path)
	}
	return PageView{
		Breadcrumbs:   crumbs,
		Page:          page,
		Error:         loadErr,
		RequestedPath: requested,
		CanEdit:       canEdit,
		EditURL:       editURL(prefix, requested),
		NewURL:        create,
	}
}

// editFormFor fills the editor from an existing page.
func editFormFor(page *model.Page, action, prefix string) EditForm {
	return EditForm{
		Action:    action,
		Title:     page.Title,
		Path:      page.Path,
		Format:    page.ContentFormat,
		Content:   page.Content,
		Published: page.Published,
		CanDelete: true,
		BackURL:   render.PageURL(prefix, page.Path),
	}
}
