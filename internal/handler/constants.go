// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	RouteRoot     = "/"
	RouteWildcard = "/*"
	RouteNew      = "/new"
	RouteEdit     = "/edit"
	RouteEditPath = "/edit/*"

	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteSettings = "/settings"

	RouteRobots  = "/robots.txt"
	RouteSitemap = "/sitemap.xml"

	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	RouteMetrics     = "/metrics"
	RouteStatic      = "/static/*"

	RouteUsername = "/{username}"
)

// Form field names shared with the templates.
const (
	FieldTitle     = "title"
	FieldPath      = "path"
	FieldFormat    = "content_format"
	FieldContent   = "content"
	FieldPublished = "published"
	FieldAction    = "action"
	FieldParent    = "parent"
	FieldIdentity  = "identity"
	FieldPassword  = "password"
	FieldRedirect  = "redirect"

	actionDelete = "delete"
)

// Flash message types.
const (
	flashSuccess = "success"
	flashError   = "error"
)

// reservedUsernames are first path segments that never name a namespace.
var reservedUsernames = map[string]bool{
	"login":    true,
	"logout":   true,
	"settings": true,
	"new":      true,
	"edit":     true,
	"health":   true,
	"metrics":  true,
	"static":   true,
}

// IsReservedUsername reports whether name collides with a platform route.
func IsReservedUsername(name string) bool {
	return reservedUsernames[name]
}
