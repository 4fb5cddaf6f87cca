// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/olegiv/osites/internal/model"
)

var (
	// Raw HTML inside markdown is allowed here and removed by the sanitizer.
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	ugcPolicy = bluemonday.UGCPolicy()
)

// PageHTML renders a page body to sanitized HTML according to its format.
func PageHTML(p *model.Page) (template.HTML, error) {
	if p == nil {
		return "", nil
	}
	switch p.ContentFormat {
	case model.FormatHTML:
		return SanitizeHTML(p.Content), nil
	case model.FormatMarkdown, "":
		return Markdown(p.Content)
	default:
		return "", fmt.Errorf("unknown content format %q", p.ContentFormat)
	}
}

// Markdown converts GitHub-flavoured markdown to sanitized HTML.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(ugcPolicy.SanitizeBytes(buf.Bytes())), nil
}

// SanitizeHTML strips everything the UGC policy does not allow.
func SanitizeHTML(src string) template.HTML {
	return template.HTML(ugcPolicy.Sanitize(src))
}

var cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|(rgb|rgba|hsl|hsla)\([0-9.,%\s/deg]+\))$`)

// ThemeStyle turns a site theme into CSS custom properties. Values that do
// not look like colours are dropped.
func ThemeStyle(t *model.Theme) template.CSS {
	if t == nil {
		return ""
	}
	var b strings.Builder
	for _, v := range []struct{ name, value string }{
		{"--primary-color", t.PrimaryColor},
		{"--background-color", t.BackgroundColor},
		{"--text-color", t.TextColor},
	} {
		value := strings.TrimSpace(v.value)
		if value == "" || !cssColor.MatchString(value) {
			continue
		}
		b.WriteString(v.name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("; ")
	}
	return template.CSS(strings.TrimSpace(b.String()))
}
