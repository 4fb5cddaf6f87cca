// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

// recordMeta holds the system fields every record carries.
type recordMeta struct {
	ID             string `json:"id"`
	CollectionID   string `json:"collectionId"`
	CollectionName string `json:"collectionName"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
}

func (m recordMeta) collection() string {
	if m.CollectionID != "" {
		return m.CollectionID
	}
	return m.CollectionName
}

type siteRecord struct {
	recordMeta
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	Domain     string          `json:"domain"`
	Theme      json.RawMessage `json:"theme"`
	Logo       string          `json:"logo"`
	PublicRead bool            `json:"public_read"`
}

type pageRecord struct {
	recordMeta
	Site          json.RawMessage `json:"site"`
	Owner         json.RawMessage `json:"owner"`
	Path          string          `json:"path"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	ContentFormat string          `json:"content_format"`
	Published     bool            `json:"published"`
}

type userRecord struct {
	recordMeta
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

func mapSite(c *pocketbase.Client, r *siteRecord, logger *slog.Logger) *model.Site {
	site := &model.Site{
		ID:         r.ID,
		Name:       r.Name,
		Slug:       r.Slug,
		Domain:     r.Domain,
		Theme:      parseTheme(r.Theme, logger),
		LogoFile:   r.Logo,
		PublicRead: r.PublicRead,
		Created:    r.Created,
		Updated:    r.Updated,
	}
	if r.Logo != "" {
		site.LogoURL = c.FileURL(r.collection(), r.ID, r.Logo)
	}
	return site
}

func mapPage(r *pageRecord) *model.Page {
	format := model.ContentFormat(r.ContentFormat)
	if format == "" {
		format = model.FormatMarkdown
	}
	return &model.Page{
		ID:            r.ID,
		Site:          relationID(r.Site),
		Owner:         relationID(r.Owner),
		Path:          r.Path,
		Title:         r.Title,
		Content:       r.Content,
		ContentFormat: format,
		Published:     r.Published,
		Created:       r.Created,
		Updated:       r.Updated,
	}
}

func mapUser(c *pocketbase.Client, r *userRecord) *model.User {
	user := &model.User{
		ID:       r.ID,
		Username: r.Username,
		Name:     r.Name,
		Created:  r.Created,
		Updated:  r.Updated,
	}
	if r.Avatar != "" {
		user.AvatarURL = c.FileURL(r.collection(), r.ID, r.Avatar)
	}
	return user
}

// parseTheme accepts a JSON object, a string holding a JSON object, or
// nothing. Anything unparsable is logged and dropped.
func parseTheme(raw json.RawMessage, logger *slog.Logger) *model.Theme {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '{':
		var theme model.Theme
		if err := json.Unmarshal(raw, &theme); err != nil {
			logger.Warn("failed to parse theme JSON", "error", err)
			return nil
		}
		return &theme
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil
		}
		var theme model.Theme
		if err := json.Unmarshal([]byte(s), &theme); err != nil {
			logger.Warn("failed to parse theme JSON", "error", err)
			return nil
		}
		return &theme
	default:
		return nil
	}
}

// relationID reads a relation field that is either an id, an expanded
// record, or a list of either. Lists yield their first element.
func relationID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var id string
		_ = json.Unmarshal(raw, &id)
		return id
	case '{':
		var rec struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &rec)
		return rec.ID
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return ""
		}
		return relationID(items[0])
	default:
		return ""
	}
}
