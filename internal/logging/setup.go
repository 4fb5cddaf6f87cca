// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Output receives text logs.
	Output io.Writer
	// SentryDSN enables error forwarding when set.
	SentryDSN   string
	Environment string
	Release     string
}

// New returns the application logger and a flush function to call on shutdown.
// Without a Sentry DSN, or if Sentry cannot start, only text output is produced.
func New(opts Options) (*slog.Logger, func()) {
	text := slog.NewTextHandler(opts.Output, &slog.HandlerOptions{Level: opts.Level})
	noop := func() {}

	if opts.SentryDSN == "" {
		return slog.New(NewContextHandler(text, RequestID)), noop
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(text).Error("failed to initialize Sentry", "error", err)
		return slog.New(NewContextHandler(text, RequestID)), noop
	}

	secondary := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	handler := NewContextHandler(NewFanoutHandler(text, secondary, slog.LevelWarn), RequestID)
	return slog.New(handler), func() { sentry.Flush(2 * time.Second) }
}

// RequestID extracts the chi request id.
func RequestID(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}
