// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/olegiv/osites/internal/backend"
	"github.com/olegiv/osites/internal/cache"
	"github.com/olegiv/osites/internal/config"
	"github.com/olegiv/osites/internal/content"
	"github.com/olegiv/osites/internal/handler"
	"github.com/olegiv/osites/internal/logging"
	"github.com/olegiv/osites/internal/metrics"
	"github.com/olegiv/osites/internal/middleware"
	"github.com/olegiv/osites/internal/pocketbase"
	"github.com/olegiv/osites/internal/render"
	"github.com/olegiv/osites/internal/scheduler"
	"github.com/olegiv/osites/internal/session"
	"github.com/olegiv/osites/internal/version"
	"github.com/olegiv/osites/internal/webhook"
	"github.com/olegiv/osites/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	healthTimeout    = 5 * time.Second
	checkTimeout    = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	check := flag.Bool("check", false, "Check backend and cache connectivity, then exit")
	clearCache := flag.Bool("clear-cache", false, "Clear the shared lookup cache, then exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "oSites - multi-tenant pages on PocketBase\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_PB_URL            PocketBase base URL\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_SESSION_SECRET    Session key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_SERVER_HOST       Listen host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_SERVER_PORT       Listen port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_ENV               development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_PLATFORM_HOSTS    Hosts serving user namespaces (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_REDIS_URL         Redis URL for the lookup cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_WEBHOOK_URLS      Page event endpoints, comma separated (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSITES_SENTRY_DSN        Sentry DSN for warnings and errors (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	if *check {
		if err := runCheck(cfg); err != nil {
			slog.Error("connectivity check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("connectivity check passed")
		os.Exit(0)
	}

	if *clearCache {
		if err := runClearCache(cfg); err != nil {
			slog.Error("clearing cache failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg, info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// runCheck checks the backend and, when configured, Redis in parallel.
func runCheck(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		provider := backend.NewProvider(backend.Config{URL: cfg.PBURL}, slog.Default())
		if err := provider.Ping(ctx); err != nil {
			return fmt.Errorf("backend %s: %w", cfg.PBURL, err)
		}
		return nil
	})
	if cfg.UseRedisCache() {
		g.Go(func() error {
			opts := cache.DefaultRedisCacheOptions()
			opts.URL = cfg.RedisURL
			rc, err := cache.NewRedisCache(ctx, opts)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer func() { _ = rc.Close() }()
			return rc.Ping(ctx)
		})
	}
	return g.Wait()
}

// runClearCache drops every lookup entry under the configured prefix, for
// example after a site changed its domain.
func runClearCache(cfg *config.Config) error {
	if !cfg.UseRedisCache() {
		slog.Info("no shared cache configured, nothing to clear")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	opts := cache.DefaultRedisCacheOptions()
	opts.URL = cfg.RedisURL
	if cfg.CachePrefix != "" {
		opts.Prefix = cfg.CachePrefix
	}
	rc, err := cache.NewRedisCache(ctx, opts)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = rc.Close() }()
	if err := rc.Clear(ctx); err != nil {
		return fmt.Errorf("clearing %s: %w", cfg.CachePrefix, err)
	}
	slog.Info("lookup cache cleared", "prefix", cfg.CachePrefix)
	return nil
}

func lookupCacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheDuration(),
		MaxSize:    cfg.CacheMaxSize,
	}
}

func run(cfg *config.Config, info version.Info) error {
	logger, flush := logging.New(logging.Options{
		Level:       cfg.SlogLevel(),
		Output:      os.Stdout,
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Env,
		Release:     info.Version,
	})
	defer flush()
	slog.SetDefault(logger)
	slog.Info("starting", "version", info.String(), "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	lookupCache := cache.New(ctx, lookupCacheConfig(cfg), logger)
	defer func() {
		if err := lookupCache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	m.RegisterCache(lookupCache)

	provider := backend.NewProvider(backend.Config{
		URL: cfg.PBURL,
		Options: []pocketbase.Option{
			pocketbase.WithObserver(m),
			pocketbase.WithUserAgent(info.UserAgent()),
			pocketbase.WithRequestID(chimw.GetReqID),
		},
	}, logger)
	if !provider.Configured() {
		slog.Warn("OSITES_PB_URL is not set; pages cannot be served until it is")
	}

	storeOpts := content.Options{Cache: lookupCache, CacheTTL: cfg.CacheDuration()}
	if cfg.WebhooksEnabled() {
		whCfg := webhook.DefaultConfig()
		whCfg.URLs = cfg.WebhookURLs
		whCfg.Secret = cfg.WebhookSecret
		whCfg.UserAgent = info.UserAgent()
		whCfg.OnDelivery = m.ObserveDelivery
		whCfg.OnEvent = m.ObservePageEvent
		dispatcher, err := webhook.NewDispatcher(whCfg, logger)
		if err != nil {
			return fmt.Errorf("initializing webhook dispatcher: %w", err)
		}
		dispatcher.Start(context.Background())
		defer dispatcher.Stop()

		debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig())
		defer func() {
			if n := debouncer.PendingCount(); n > 0 {
				logger.Info("flushing pending webhook events", "count", n)
			}
			debouncer.Flush()
		}()
		storeOpts.Notifier = debouncer
		slog.Info("webhook dispatcher initialized", "endpoints", len(cfg.WebhookURLs))
	}
	store := content.New(provider, logger, storeOpts)

	sessionManager := session.New(cfg.IsDevelopment())
	renderer, err := render.New(render.Config{
		TemplatesFS:    web.Templates(),
		SessionManager: sessionManager,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	monitor := scheduler.NewMonitor(scheduler.HealthCheckFunc(provider.Ping), healthTimeout, m.SetBackendUp, logger)
	healthJob := scheduler.HealthJob(monitor)
	sched := scheduler.New(logger)
	jobs := []scheduler.Job{
		healthJob,
		scheduler.CleanupJob("login-protection-cleanup", loginProtection.Cleanup),
	}
	if sp, ok := lookupCache.(cache.StatsProvider); ok {
		jobs = append(jobs, scheduler.CacheStatsJob(sp, logger))
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("scheduling %s: %w", job.Name, err)
		}
	}
	sched.Start()
	defer sched.Stop()
	for _, info := range sched.List() {
		logger.Debug("scheduled job", "name", info.Name, "schedule", info.Schedule, "next_run", info.NextRun)
	}
	// Readiness reflects the backend from the first request on.
	if err := sched.TriggerNow(healthJob.Name); err != nil {
		logger.Warn("initial backend check failed", "error", err)
	}

	var pinger handler.Pinger
	if rc, ok := lookupCache.(*cache.RedisCache); ok {
		pinger = rc
	}

	router := handler.NewRouter(handler.Deps{
		Store:           store,
		Renderer:        renderer,
		Sessions:        sessionManager,
		LoginProtection: loginProtection,
		Backend:         monitor,
		Cache:           pinger,
		Metrics:         m,
		Static:          web.Static(),
		Version:         info,
		Logger:          logger,
		PlatformHosts:   cfg.PlatformHosts,
		ImageOrigins:    cfg.BackendOrigins(),
		IsDevelopment:   cfg.IsDevelopment(),
		Port:            fmt.Sprint(cfg.ServerPort),
		SessionSecret:   []byte(cfg.SessionSecret),
		RequestTimeout:  cfg.RequestTimeout,
		RateLimit:       20,
		RateBurst:       40,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "platform_hosts", cfg.PlatformHosts)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
