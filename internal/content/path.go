// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "strings"

// indexPath is the page looked up when the root path has no page of its own.
const indexPath = "index"

// NormalizePath strips leading and trailing slashes. Interior slashes,
// case and everything else are kept. NormalizePath is idempotent.
func NormalizePath(p string) string {
	return strings.Trim(p, "/")
}
