// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import "strings"

// Breadcrumb is one step of the trail above a nested page.
type Breadcrumb struct {
	Label  string
	URL    string
	Active bool
}

// Breadcrumbs lists the ancestors of pagePath under prefix, ending with the
// page itself. Top-level pages have no trail.
func Breadcrumbs(prefix, pagePath string) []Breadcrumb {
	if !strings.Contains(pagePath, "/") {
		return nil
	}
	segments := strings.Split(pagePath, "/")
	crumbs := make([]Breadcrumb, 0, len(segments)+1)
	crumbs = append(crumbs, Breadcrumb{Label: "Home", URL: PageURL(prefix, "")})
	for i, s := range segments {
		crumbs = append(crumbs, Breadcrumb{
			Label:  s,
			URL:    PageURL(prefix, strings.Join(segments[:i+1], "/")),
			Active: i == len(segments)-1,
		})
	}
	return crumbs
}
