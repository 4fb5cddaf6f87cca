// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util holds small helpers shared by the HTTP layer: slugs for
// suggested page paths, local redirect checks and outbound URL vetting.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugRegex       = regexp.MustCompile(`[^a-z0-9-]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases s, strips accents and reduces it to [a-z0-9-].
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(result)
	result = strings.Join(strings.Fields(result), "-")
	result = slugRegex.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// SuggestPagePath proposes a page path from a title, nested under parent
// when one is given. Each segment of parent is slugified too.
func SuggestPagePath(parent, title string) string {
	var segments []string
	for _, seg := range strings.Split(parent, "/") {
		if s := Slugify(seg); s != "" {
			segments = append(segments, s)
		}
	}
	if s := Slugify(title); s != "" {
		segments = append(segments, s)
	}
	return strings.Join(segments, "/")
}
