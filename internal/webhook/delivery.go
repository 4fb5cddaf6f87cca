// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/olegiv/osites/internal/util"
)

// Delivery defaults.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 1 * time.Minute
	RequestTimeout        = 10 * time.Second
	MaxResponseLen        = 10 * 1024
)

// Headers set on every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// DeliveryResult is the outcome of a single attempt.
type DeliveryResult struct {
	Success     bool
	StatusCode  int
	Error       error
	ShouldRetry bool
}

// delivery is one event bound for one endpoint.
type delivery struct {
	ID      string
	URL     string
	Event   string
	Payload []byte
}

// newSafeClient returns a client that refuses to dial private addresses.
func newSafeClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: RequestTimeout,
		Transport: &http.Transport{
			DialContext:         util.SSRFSafeDialContext(dialer),
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// GenerateSignature returns the hex HMAC-SHA256 of payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header value against payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := "sha256=" + GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// attempt performs one HTTP POST.
func (d *Dispatcher) attempt(ctx context.Context, dl *delivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dl.URL, bytes.NewReader(dl.Payload))
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set(HeaderSignature, "sha256="+GenerateSignature(dl.Payload, d.secret))
	req.Header.Set(HeaderEvent, dl.Event)
	req.Header.Set(HeaderDeliveryID, dl.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("request failed: %w", err), ShouldRetry: true}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests,
		}
	default:
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: true,
		}
	}
}

// calculateBackoff doubles initial for every attempt after the first, capped at limit.
func calculateBackoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt <= 1 {
		return initial
	}
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	return backoff
}
