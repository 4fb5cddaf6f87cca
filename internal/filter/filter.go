// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package filter builds PocketBase filter expressions from untrusted input.
//
// Values are always emitted as double-quoted literals with backslash and
// quote characters escaped, so user input cannot terminate the literal and
// inject further clauses.
package filter

import (
	"strconv"
	"strings"
)

// Expr is a filter expression ready to be sent as the filter query parameter.
type Expr string

// String returns the expression text.
func (e Expr) String() string {
	return string(e)
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EscapeValue escapes backslashes and double quotes so the value can be
// embedded between double quotes in a filter expression.
func EscapeValue(v string) string {
	return escaper.Replace(v)
}

// Quote returns v as a quoted, escaped filter literal.
func Quote(v string) string {
	return `"` + EscapeValue(v) + `"`
}

// Eq returns a string equality clause: field = "value".
func Eq(field, value string) Expr {
	return Expr(field + " = " + Quote(value))
}

// Bool returns a boolean equality clause: field = true.
func Bool(field string, v bool) Expr {
	return Expr(field + " = " + strconv.FormatBool(v))
}

// And joins non-empty expressions with the && operator.
func And(exprs ...Expr) Expr {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, string(e))
		}
	}
	return Expr(strings.Join(parts, " && "))
}
