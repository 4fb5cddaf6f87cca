// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pocketbase is a small client for the PocketBase REST API.
//
// It covers the record, auth and file endpoints oSites needs. A Client is
// immutable after construction and safe for concurrent use; per-visitor
// credentials are attached with WithAuthStore, which returns a shallow copy
// sharing the underlying transport.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 << 20

// Observer receives timing information for every backend request.
type Observer interface {
	ObserveRequest(method, collection string, status int, elapsed time.Duration)
}

// Client talks to a single PocketBase instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
	userAgent  string
	requestID  func(ctx context.Context) string
	auth       *AuthStore
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver registers a request observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithUserAgent sets the User-Agent header sent to the backend.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRequestID sets the function deriving the X-Request-Id header from the
// request context. An empty result falls back to a random UUID.
func WithRequestID(fn func(ctx context.Context) string) Option {
	return func(c *Client) { c.requestID = fn }
}

// New creates a client for the PocketBase instance at baseURL.
//
// The client sets no timeout of its own; deadlines come from the context of
// each call.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		userAgent:  "osites",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithAuthStore returns a copy of the client that authenticates requests
// with the token held by store and saves new credentials into it.
func (c *Client) WithAuthStore(store *AuthStore) *Client {
	cp := *c
	cp.auth = store
	return &cp
}

// AuthStore returns the auth store attached to the client, or nil.
func (c *Client) AuthStore() *AuthStore {
	return c.auth
}

// Collection returns a service for the records of the named collection.
func (c *Client) Collection(name string) *RecordService {
	return &RecordService{client: c, collection: name}
}

// FileURL returns the public URL of a file attached to a record.
// It returns an empty string when any part is missing.
func (c *Client) FileURL(collection, recordID, filename string) string {
	if collection == "" || recordID == "" || filename == "" {
		return ""
	}
	return c.baseURL + "/api/files/" + url.PathEscape(collection) + "/" +
		url.PathEscape(recordID) + "/" + url.PathEscape(filename)
}

// Health calls the backend health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/api/health", nil, nil, nil, "health")
}

// send performs a JSON request against the API and decodes the response
// into out when it is non-nil.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any, label string) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", c.requestIDFor(ctx))
	if c.auth != nil {
		if token := c.auth.Token(); token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, label, 0, start)
		return &ResponseError{URL: endpoint, Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(method, label, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &ResponseError{URL: endpoint, Status: resp.StatusCode, Message: "reading response failed", Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseResponseError(endpoint, resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ResponseError{URL: endpoint, Status: resp.StatusCode, Message: "decoding response failed", Err: err}
	}
	return nil
}

func (c *Client) requestIDFor(ctx context.Context) string {
	if c.requestID != nil {
		if id := c.requestID(ctx); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func (c *Client) observe(method, label string, status int, start time.Time) {
	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveRequest(method, label, status, elapsed)
	}
	c.logger.Debug("backend request", "method", method, "collection", label, "status", status, "elapsed", elapsed)
}

// ResponseError is returned for any failed backend call. Status is zero
// when the request never produced an HTTP response. Reported is set when
// Message came from the backend's error body rather than the status text.
type ResponseError struct {
	URL      string
	Status   int
	Message  string
	Reported bool
	Data     map[string]FieldError
	Err      error
}

// FieldError describes a validation failure of a single record field.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pocketbase: %s (status %d): %v", e.Message, e.Status, e.Err)
	}
	return fmt.Sprintf("pocketbase: %s (status %d)", e.Message, e.Status)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// Detail returns the backend message followed by any field errors, suitable
// for showing to the user who submitted the request. It is empty unless the
// backend itself explained the failure.
func (e *ResponseError) Detail() string {
	if e.Status == 0 {
		return ""
	}
	var parts []string
	if e.Reported {
		parts = append(parts, e.Message)
	}
	for _, field := range slices.Sorted(maps.Keys(e.Data)) {
		if fe := e.Data[field]; fe.Message != "" {
			parts = append(parts, field+": "+fe.Message)
		}
	}
	return strings.Join(parts, " ")
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// errorBody covers both the "status" (v0.23+) and "code" (older) layouts.
type errorBody struct {
	Status  int                   `json:"status"`
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    map[string]FieldError `json:"data"`
}

func parseResponseError(endpoint string, status int, data []byte) *ResponseError {
	re := &ResponseError{URL: endpoint, Status: status, Message: http.StatusText(status)}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			re.Message = body.Message
			re.Reported = true
		}
		re.Data = body.Data
	}
	return re
}
