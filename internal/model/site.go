// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared by the data access layer,
// the route loaders and the HTTP handlers.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// timeLayout is the timestamp format PocketBase uses for system fields.
const timeLayout = "2006-01-02 15:04:05.000Z"

// Site is a tenant website bound to a domain.
type Site struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Domain     string `json:"domain"`
	Theme      *Theme `json:"theme,omitempty"`
	LogoFile   string `json:"logoFile,omitempty"`
	LogoURL    string `json:"logoUrl,omitempty"`
	PublicRead bool   `json:"public_read"`
	Created    string `json:"created,omitempty"`
	Updated    string `json:"updated,omitempty"`
}

// Theme holds the visual settings of a site. Keys other than the three
// well-known colours are kept in Extra.
type Theme struct {
	PrimaryColor    string
	BackgroundColor string
	TextColor       string
	Extra           map[string]any
}

const (
	themePrimary    = "primaryColor"
	themeBackground = "backgroundColor"
	themeText       = "textColor"
)

// UnmarshalJSON reads a flat JSON object.
func (t *Theme) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Theme{}
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case k == themePrimary && isString:
			t.PrimaryColor = s
		case k == themeBackground && isString:
			t.BackgroundColor = s
		case k == themeText && isString:
			t.TextColor = s
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]any)
			}
			t.Extra[k] = v
		}
	}
	return nil
}

// MarshalJSON writes a flat JSON object.
func (t Theme) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}
	if t.PrimaryColor != "" {
		out[themePrimary] = t.PrimaryColor
	}
	if t.BackgroundColor != "" {
		out[themeBackground] = t.BackgroundColor
	}
	if t.TextColor != "" {
		out[themeText] = t.TextColor
	}
	return json.Marshal(out)
}

// User is a namespace owner.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Created   string `json:"created,omitempty"`
	Updated   string `json:"updated,omitempty"`
}

// DisplayName returns the name, falling back to the username.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Username
}

// ParseTime parses a backend timestamp. It accepts the PocketBase layout
// and RFC 3339, and returns the zero time otherwise.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
