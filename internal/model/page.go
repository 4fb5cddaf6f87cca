// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// ContentFormat is the markup language of a page body.
type ContentFormat string

// Content formats
const (
	FormatMarkdown ContentFormat = "md"
	FormatHTML     ContentFormat = "html"
)

// Valid reports whether f is a known format.
func (f ContentFormat) Valid() bool {
	return f == FormatMarkdown || f == FormatHTML
}

// Page is a content page. It belongs either to a site or to an owner.
type Page struct {
	ID            string        `json:"id"`
	Site          string        `json:"site,omitempty"`
	Owner         string        `json:"owner,omitempty"`
	Path          string        `json:"path"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	ContentFormat ContentFormat `json:"content_format"`
	Published     bool          `json:"published"`
	Created       string        `json:"created,omitempty"`
	Updated       string        `json:"updated,omitempty"`
}

// UpdatedAt returns the parsed update timestamp.
func (p *Page) UpdatedAt() time.Time {
	return ParseTime(p.Updated)
}

// PageInput is the full field set of a new page.
type PageInput struct {
	Site          string        `json:"site,omitempty"`
	Owner         string        `json:"owner,omitempty"`
	Path          string        `json:"path"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	ContentFormat ContentFormat `json:"content_format"`
	Published     bool          `json:"published"`
}

// PageUpdate changes any subset of page fields. Nil fields are left alone.
type PageUpdate struct {
	Path          *string        `json:"path,omitempty"`
	Title         *string        `json:"title,omitempty"`
	Content       *string        `json:"content,omitempty"`
	ContentFormat *ContentFormat `json:"content_format,omitempty"`
	Published     *bool          `json:"published,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PageUpdate) Empty() bool {
	return u.Path == nil && u.Title == nil && u.Content == nil && u.ContentFormat == nil && u.Published == nil
}
