// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pbtest provides an in-process fake PocketBase server for tests.
//
// It implements the record list/view/create/update/delete endpoints, password
// auth and health, evaluates filters of the form `field = "value" && ...`
// with real unescaping, and records every request it receives.
package pbtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const timeLayout = "2006-01-02 15:04:05.000Z"

var signingKey = []byte("pbtest-signing-key")

// Request is a request received by the fake server.
type Request struct {
	Method        string
	Path          string
	Filter        string
	Authorization string
	Body          map[string]any
}

type failure struct {
	status  int
	message string
}

type credential struct {
	password string
	userID   string
}

// Server is a fake PocketBase backend.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string][]map[string]any
	unique      map[string][][]string
	failures    map[string]failure
	credentials map[string]credential
	tokens      map[string]string
	requests    []Request
	nextID      int
	TokenTTL    time.Duration
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		collections: make(map[string][]map[string]any),
		unique:      make(map[string][][]string),
		failures:    make(map[string]failure),
		credentials: make(map[string]credential),
		tokens:      make(map[string]string),
		TokenTTL:    time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/collections/{collection}/records", s.handleList)
	mux.HandleFunc("GET /api/collections/{collection}/records/{id}", s.handleView)
	mux.HandleFunc("POST /api/collections/{collection}/records", s.handleCreate)
	mux.HandleFunc("PATCH /api/collections/{collection}/records/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/collections/{collection}/records/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/collections/{collection}/auth-with-password", s.handleAuth)
	mux.HandleFunc("POST /api/collections/{collection}/auth-refresh", s.handleRefresh)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Add stores a record and returns its id. Missing system fields are filled in.
func (s *Server) Add(collection string, record map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, record)
}

// AddUser stores a user record that can log in with username or email.
func (s *Server) AddUser(username, password string, fields map[string]any) string {
	record := map[string]any{"username": username}
	for k, v := range fields {
		record[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.insert("users", record)
	s.credentials[username] = credential{password: password, userID: id}
	if email, ok := record["email"].(string); ok && email != "" {
		s.credentials[email] = credential{password: password, userID: id}
	}
	return id
}

// Unique declares a unique index over fields of collection.
func (s *Server) Unique(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], fields)
}

// Fail makes every request on collection fail with status and message.
// A status of zero clears the failure.
func (s *Server) Fail(collection string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, collection)
		return
	}
	s.failures[collection] = failure{status: status, message: message}
}

// Token issues a valid token for userID, as auth-with-password would.
func (s *Server) Token(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueToken(userID)
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// RequestCount returns how many requests were received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Records returns copies of the records stored in collection.
func (s *Server) Records(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		out = append(out, clone(rec))
	}
	return out
}

// Record returns a copy of the record with id, or nil.
func (s *Server) Record(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(collection, id); i >= 0 {
		return clone(s.collections[collection][i])
	}
	return nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Filter:        r.URL.Query().Get("filter"),
			Authorization: r.Header.Get("Authorization"),
		}
		if r.Body != nil && r.ContentLength != 0 {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				req.Body = body
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), req.Body)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy.", "data": map[string]any{}})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if s.failed(w, collection) {
		return
	}

	clauses, err := parseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Something went wrong while processing your request. Invalid filter parameters.")
		return
	}
	page := atoi(r.URL.Query().Get("page"), 1)
	perPage := atoi(r.URL.Query().Get("perPage"), 30)

	s.mu.Lock()
	var matched []map[string]any
	for _, rec := range s.collections[collection] {
		if matches(rec, clauses) {
			matched = append(matched, clone(rec))
		}
	}
	s.mu.Unlock()

	sortRecords(matched, r.URL.Query().Get("sort"))

	start := min((page-1)*perPage, len(matched))
	end := min(start+perPage, len(matched))
	items := matched[start:end]
	if items == nil {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": -1,
		"totalPages": -1,
		"items":      items,
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if s.failed(w, collection) {
		return
	}
	if rec := s.Record(collection, r.PathValue("id")); rec != nil {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if s.failed(w, collection) || !s.authorized(w, r) {
		return
	}
	body := bodyFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	if field := s.violatesUnique(collection, body, ""); field != "" {
		writeValidation(w, "Failed to create record.", field)
		return
	}
	id := s.insert(collection, body)
	writeJSON(w, http.StatusOK, clone(s.collections[collection][s.indexOf(collection, id)]))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	if s.failed(w, collection) || !s.authorized(w, r) {
		return
	}
	body := bodyFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(collection, id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	merged := clone(s.collections[collection][i])
	for k, v := range body {
		merged[k] = v
	}
	if field := s.violatesUnique(collection, merged, id); field != "" {
		writeValidation(w, "Failed to update record.", field)
		return
	}
	merged["updated"] = time.Now().UTC().Format(timeLayout)
	s.collections[collection][i] = merged
	writeJSON(w, http.StatusOK, clone(merged))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	if s.failed(w, collection) || !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(collection, id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	s.collections[collection] = slices.Delete(s.collections[collection], i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if s.failed(w, collection) {
		return
	}
	body := bodyFrom(r.Context())
	identity, _ := body["identity"].(string)
	password, _ := body["password"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[identity]
	if !ok || cred.password != password {
		writeError(w, http.StatusBadRequest, "Failed to authenticate.")
		return
	}
	token := s.issueToken(cred.userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"record": clone(s.collections["users"][s.indexOf("users", cred.userID)]),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if s.failed(w, collection) || !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID := s.tokens[r.Header.Get("Authorization")]
	i := s.indexOf("users", userID)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Missing auth record context.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  s.issueToken(userID),
		"record": clone(s.collections["users"][i]),
	})
}

func (s *Server) failed(w http.ResponseWriter, collection string) bool {
	s.mu.Lock()
	f, ok := s.failures[collection]
	s.mu.Unlock()
	if ok {
		writeError(w, f.status, f.message)
	}
	return ok
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("Authorization")
	s.mu.Lock()
	_, ok := s.tokens[token]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "The request requires valid record authorization token.")
	}
	return ok
}

// insert must be called with s.mu held.
func (s *Server) insert(collection string, record map[string]any) string {
	rec := clone(record)
	id, _ := rec["id"].(string)
	if id == "" {
		s.nextID++
		id = fmt.Sprintf("rec%012d", s.nextID)
		rec["id"] = id
	}
	now := time.Now().UTC().Format(timeLayout)
	setDefault(rec, "collectionId", "pbc_"+collection)
	setDefault(rec, "collectionName", collection)
	setDefault(rec, "created", now)
	setDefault(rec, "updated", now)
	s.collections[collection] = append(s.collections[collection], rec)
	return id
}

// issueToken must be called with s.mu held.
func (s *Server) issueToken(userID string) string {
	claims := jwt.MapClaims{
		"id":   userID,
		"type": "auth",
		"exp":  time.Now().Add(s.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	s.tokens[token] = userID
	return token
}

func (s *Server) indexOf(collection, id string) int {
	return slices.IndexFunc(s.collections[collection], func(rec map[string]any) bool {
		return rec["id"] == id
	})
}

func (s *Server) violatesUnique(collection string, rec map[string]any, selfID string) string {
	for _, fields := range s.unique[collection] {
		for _, other := range s.collections[collection] {
			if other["id"] == selfID {
				continue
			}
			same := true
			for _, f := range fields {
				if fmt.Sprint(other[f]) != fmt.Sprint(rec[f]) {
					same = false
					break
				}
			}
			if same {
				return fields[len(fields)-1]
			}
		}
	}
	return ""
}

func sortRecords(recs []map[string]any, sort string) {
	if sort == "" {
		return
	}
	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")
	slices.SortStableFunc(recs, func(a, b map[string]any) int {
		c := strings.Compare(fmt.Sprint(a[field]), fmt.Sprint(b[field]))
		if desc {
			return -c
		}
		return c
	})
}

func setDefault(rec map[string]any, key, value string) {
	if v, ok := rec[key].(string); !ok || v == "" {
		rec[key] = value
	}
}

func clone(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "message": message, "data": map[string]any{}})
}

func writeValidation(w http.ResponseWriter, message, field string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"status":  http.StatusBadRequest,
		"message": message,
		"data": map[string]any{
			field: map[string]any{"code": "validation_not_unique", "message": "Value must be unique."},
		},
	})
}
