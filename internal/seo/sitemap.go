// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seo builds robots.txt, sitemaps and page meta descriptions.
package seo

import (
	"encoding/xml"
	"net/url"
	"strings"
	"time"
)

// XMLNamespace is the sitemap XML namespace.
const XMLNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ChangeFreq represents the change frequency of a URL.
type ChangeFreq string

// Change frequencies used by the builder.
const (
	ChangeFreqDaily  ChangeFreq = "daily"
	ChangeFreqWeekly ChangeFreq = "weekly"
)

// SitemapURL represents a single URL entry in the sitemap.
type SitemapURL struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq `xml:"changefreq,omitempty"`
	Priority   string     `xml:"priority,omitempty"`
}

// Sitemap represents the complete sitemap document.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapPage is a published page. Path is normalized; "index" is the homepage.
type SitemapPage struct {
	Path      string
	UpdatedAt time.Time
}

// SitemapBuilder builds sitemap XML.
type SitemapBuilder struct {
	siteURL  string
	urls     []SitemapURL
	homepage int
}

// NewSitemapBuilder creates a builder for siteURL (scheme and host).
func NewSitemapBuilder(siteURL string) *SitemapBuilder {
	return &SitemapBuilder{
		siteURL:  strings.TrimSuffix(siteURL, "/"),
		homepage: -1,
	}
}

// AddHomepage adds the site root once.
func (b *SitemapBuilder) AddHomepage() {
	if b.homepage >= 0 {
		return
	}
	b.homepage = len(b.urls)
	b.urls = append(b.urls, SitemapURL{
		Loc:        b.siteURL + "/",
		ChangeFreq: ChangeFreqDaily,
		Priority:   "1.0",
	})
}

// AddPage adds a page. The index page updates the homepage entry.
func (b *SitemapBuilder) AddPage(page SitemapPage) {
	var lastMod string
	if !page.UpdatedAt.IsZero() {
		lastMod = page.UpdatedAt.UTC().Format(time.RFC3339)
	}

	if page.Path == "" || page.Path == "index" {
		b.AddHomepage()
		b.urls[b.homepage].LastMod = lastMod
		return
	}

	segments := strings.Split(page.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	b.urls = append(b.urls, SitemapURL{
		Loc:        b.siteURL + "/" + strings.Join(segments, "/"),
		LastMod:    lastMod,
		ChangeFreq: ChangeFreqWeekly,
		Priority:   "0.8",
	})
}

// Build generates the sitemap XML.
func (b *SitemapBuilder) Build() ([]byte, error) {
	sitemap := Sitemap{
		XMLNS: XMLNamespace,
		URLs:  b.urls,
	}
	out, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// GenerateSitemap builds a sitemap with the homepage and pages.
func GenerateSitemap(siteURL string, pages []SitemapPage) ([]byte, error) {
	b := NewSitemapBuilder(siteURL)
	b.AddHomepage()
	for _, p := range pages {
		b.AddPage(p)
	}
	return b.Build()
}
