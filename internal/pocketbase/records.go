// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// fullListBatch is the page size used by GetFullList.
const fullListBatch = 200

// RecordService performs CRUD calls on one collection.
type RecordService struct {
	client     *Client
	collection string
}

// ListOptions are the query parameters accepted by the list endpoint.
type ListOptions struct {
	Filter    string
	Sort      string
	Expand    string
	SkipTotal bool
}

// ListResult is one page of records.
type ListResult struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Items      []json.RawMessage `json:"items"`
}

func (s *RecordService) basePath() string {
	return "/api/collections/" + url.PathEscape(s.collection) + "/records"
}

func (s *RecordService) recordPath(id string) string {
	return s.basePath() + "/" + url.PathEscape(id)
}

// GetList fetches a single page of records.
func (s *RecordService) GetList(ctx context.Context, page, perPage int, opts ListOptions) (*ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Expand != "" {
		q.Set("expand", opts.Expand)
	}
	if opts.SkipTotal {
		q.Set("skipTotal", "1")
	}

	var result ListResult
	if err := s.client.send(ctx, http.MethodGet, s.basePath(), q, nil, &result, s.collection); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFirstListItem decodes the first record matching filter into out.
// A query without matches fails with a 404 ResponseError.
func (s *RecordService) GetFirstListItem(ctx context.Context, filter string, out any) error {
	result, err := s.GetList(ctx, 1, 1, ListOptions{Filter: filter, SkipTotal: true})
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		return &ResponseError{
			URL:     s.client.baseURL + s.basePath(),
			Status:  http.StatusNotFound,
			Message: "The requested resource wasn't found.",
		}
	}
	if err := json.Unmarshal(result.Items[0], out); err != nil {
		return fmt.Errorf("decoding %s record: %w", s.collection, err)
	}
	return nil
}

// GetFullList fetches every record matching opts, batch by batch.
func (s *RecordService) GetFullList(ctx context.Context, opts ListOptions) ([]json.RawMessage, error) {
	opts.SkipTotal = true
	var items []json.RawMessage
	for page := 1; ; page++ {
		result, err := s.GetList(ctx, page, fullListBatch, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if len(result.Items) < fullListBatch {
			return items, nil
		}
	}
}

// GetOne decodes the record with the given id into out.
func (s *RecordService) GetOne(ctx context.Context, id string, out any) error {
	return s.client.send(ctx, http.MethodGet, s.recordPath(id), nil, nil, out, s.collection)
}

// Create creates a record from body and decodes the stored record into out.
func (s *RecordService) Create(ctx context.Context, body, out any) error {
	return s.client.send(ctx, http.MethodPost, s.basePath(), nil, body, out, s.collection)
}

// Update patches the record with the given id.
func (s *RecordService) Update(ctx context.Context, id string, body, out any) error {
	return s.client.send(ctx, http.MethodPatch, s.recordPath(id), nil, body, out, s.collection)
}

// Delete removes the record with the given id.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	return s.client.send(ctx, http.MethodDelete, s.recordPath(id), nil, nil, nil, s.collection)
}

// authResponse is returned by the auth-with-password and auth-refresh endpoints.
type authResponse struct {
	Token  string      `json:"token"`
	Record *AuthRecord `json:"record"`
}

// ErrNoAuthStore is returned by auth calls on a client without an AuthStore.
var ErrNoAuthStore = errors.New("pocketbase: client has no auth store")

// AuthWithPassword authenticates against an auth collection and saves the
// resulting credentials into the client's AuthStore.
func (s *RecordService) AuthWithPassword(ctx context.Context, identity, password string) (*AuthRecord, error) {
	if s.client.auth == nil {
		return nil, ErrNoAuthStore
	}
	body := map[string]string{"identity": identity, "password": password}
	var resp authResponse
	path := "/api/collections/" + url.PathEscape(s.collection) + "/auth-with-password"
	if err := s.client.send(ctx, http.MethodPost, path, nil, body, &resp, s.collection); err != nil {
		return nil, err
	}
	s.client.auth.Save(resp.Token, resp.Record)
	return resp.Record, nil
}

// AuthRefresh exchanges the current token for a fresh one.
func (s *RecordService) AuthRefresh(ctx context.Context) (*AuthRecord, error) {
	if s.client.auth == nil {
		return nil, ErrNoAuthStore
	}
	var resp authResponse
	path := "/api/collections/" + url.PathEscape(s.collection) + "/auth-refresh"
	if err := s.client.send(ctx, http.MethodPost, path, nil, nil, &resp, s.collection); err != nil {
		return nil, err
	}
	s.client.auth.Save(resp.Token, resp.Record)
	return resp.Record, nil
}
