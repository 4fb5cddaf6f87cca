// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// MaxOutboundURLLength bounds URLs the server will call on its own.
const MaxOutboundURLLength = 2048

// reservedPrefixes are address ranges outbound requests must never reach.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsPrivateAddr reports whether addr is private, loopback, link-local or
// otherwise reserved. Invalid addresses count as private.
func IsPrivateAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// resolver is replaced in tests.
var resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
} = net.DefaultResolver

// ValidateWebhookURL checks that rawURL is an http(s) URL whose host does
// not resolve to a reserved address.
func ValidateWebhookURL(rawURL string) error {
	if len(rawURL) > MaxOutboundURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", MaxOutboundURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must use http or https scheme")
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "":
		return errors.New("URL must have a hostname")
	case host == "localhost" || strings.HasSuffix(host, ".localhost"):
		return errors.New("localhost URLs are not allowed")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsPrivateAddr(addr) {
			return errors.New("private or reserved IP addresses are not allowed")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("hostname %q did not resolve to any IP addresses", host)
	}
	for _, a := range addrs {
		if IsPrivateAddr(a) {
			return fmt.Errorf("hostname %q resolves to private IP address %s", host, a)
		}
	}
	return nil
}

// SSRFSafeDialContext returns a DialContext that resolves the host itself,
// refuses reserved addresses and dials the vetted IP directly, so a DNS
// answer cannot change between the check and the connection.
func SSRFSafeDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		addrs, err := resolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", host, err)
		}
		for _, a := range addrs {
			if IsPrivateAddr(a) {
				return nil, fmt.Errorf("connection to private IP %s (resolved from %q) is blocked", a, host)
			}
		}

		err = fmt.Errorf("no addresses for %q", host)
		for _, a := range addrs {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(a.Unmap().String(), port))
			if dialErr == nil {
				return conn, nil
			}
			err = dialErr
		}
		return nil, fmt.Errorf("failed to connect to %q: %w", host, err)
	}
}
