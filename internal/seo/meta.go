// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionLength is the default meta description length in characters.
const DescriptionLength = 160

var textOnly = bluemonday.StrictPolicy()

// Description derives a plain-text meta description from rendered HTML,
// cut at a word boundary to at most maxLen characters.
func Description(renderedHTML string, maxLen int) string {
	text := html.UnescapeString(textOnly.Sanitize(renderedHTML))
	text = strings.Join(strings.Fields(text), " ")
	return truncateText(text, maxLen)
}

func truncateText(text string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// AbsoluteURL prefixes a site-relative path with siteURL.
func AbsoluteURL(siteURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(siteURL, "/") + path
}
