// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net"
	"net/http"
	"strings"
)

// HostRouter sends requests for the platform hosts to one handler and
// every other host to a fallback. Patterns are exact ("example.com") or
// wildcard ("*.example.com"); ports are ignored when matching.
type HostRouter struct {
	exact    map[string]http.Handler
	wildcard map[string]http.Handler
	fallback http.Handler
}

// NewHostRouter routes each of hosts to platform and everything else to fallback.
func NewHostRouter(hosts []string, platform, fallback http.Handler) *HostRouter {
	hr := &HostRouter{
		exact:    make(map[string]http.Handler),
		wildcard: make(map[string]http.Handler),
		fallback: fallback,
	}
	for _, pattern := range hosts {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(pattern, "*."); ok {
			hr.wildcard[rest] = platform
			continue
		}
		hr.exact[HostOnly(pattern)] = platform
	}
	return hr
}

func (hr *HostRouter) match(host string) http.Handler {
	host = HostOnly(strings.ToLower(host))
	if h, ok := hr.exact[host]; ok {
		return h
	}
	if _, domain, ok := strings.Cut(host, "."); ok {
		if h, ok := hr.wildcard[domain]; ok {
			return h
		}
	}
	return nil
}

func (hr *HostRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := hr.match(r.Host); h != nil {
		h.ServeHTTP(w, r)
		return
	}
	hr.fallback.ServeHTTP(w, r)
}

// HostOnly strips a port, keeping IPv6 literals intact.
func HostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(host, "[]")
}
