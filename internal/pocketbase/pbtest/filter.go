// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pbtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// clause is a single `field = value` comparison.
type clause struct {
	field string
	value any
}

var errFilterSyntax = errors.New("invalid filter")

// parseFilter accepts equality clauses joined by &&. String literals are
// double-quoted with \\ and \" escapes; true and false are booleans.
func parseFilter(f string) ([]clause, error) {
	var out []clause
	i := 0
	skip := func() {
		for i < len(f) && f[i] == ' ' {
			i++
		}
	}

	for {
		skip()
		start := i
		for i < len(f) && isIdent(f[i]) {
			i++
		}
		if start == i {
			if len(out) == 0 && strings.TrimSpace(f) == "" {
				return nil, nil
			}
			return nil, errFilterSyntax
		}
		field := f[start:i]

		skip()
		if i >= len(f) || f[i] != '=' {
			return nil, errFilterSyntax
		}
		i++
		skip()

		var value any
		switch {
		case i < len(f) && f[i] == '"':
			i++
			var b strings.Builder
			closed := false
			for i < len(f) {
				c := f[i]
				if c == '\\' && i+1 < len(f) {
					b.WriteByte(f[i+1])
					i += 2
					continue
				}
				i++
				if c == '"' {
					closed = true
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil, errFilterSyntax
			}
			value = b.String()
		case strings.HasPrefix(f[i:], "true"):
			value = true
			i += len("true")
		case strings.HasPrefix(f[i:], "false"):
			value = false
			i += len("false")
		default:
			return nil, errFilterSyntax
		}
		out = append(out, clause{field: field, value: value})

		skip()
		if i == len(f) {
			return out, nil
		}
		if !strings.HasPrefix(f[i:], "&&") {
			return nil, errFilterSyntax
		}
		i += 2
	}
}

func isIdent(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func matches(rec map[string]any, clauses []clause) bool {
	for _, c := range clauses {
		switch want := c.value.(type) {
		case bool:
			got, _ := rec[c.field].(bool)
			if got != want {
				return false
			}
		case string:
			v, ok := rec[c.field]
			if !ok || v == nil {
				if want != "" {
					return false
				}
				continue
			}
			if fmt.Sprint(v) != want {
				return false
			}
		}
	}
	return true
}

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]any) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(ctx context.Context) map[string]any {
	body, _ := ctx.Value(bodyKey{}).(map[string]any)
	if body == nil {
		body = map[string]any{}
	}
	return body
}
