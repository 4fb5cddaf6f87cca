// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers signed page change notifications to external
// endpoints.
package webhook

import (
	"time"

	"github.com/olegiv/osites/internal/model"
)

// Event is the JSON body of a webhook delivery.
type Event struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Data      PageEventData `json:"data"`
}

// PageEventData describes the page an event refers to. Deletions only
// carry the ID.
type PageEventData struct {
	ID        string `json:"id"`
	Site      string `json:"site,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Path      string `json:"path,omitempty"`
	Title     string `json:"title,omitempty"`
	Published bool   `json:"published"`
}

// NewPageEvent builds an event from a page.
func NewPageEvent(eventType string, page *model.Page) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data: PageEventData{
			ID:        page.ID,
			Site:      page.Site,
			Owner:     page.Owner,
			Path:      page.Path,
			Title:     page.Title,
			Published: page.Published,
		},
	}
}

// key identifies the entity an event refers to, for coalescing.
func (e *Event) key() string {
	return e.Type + ":" + e.Data.ID
}
