// Package main implements sitecounter, a web server that serves a static
// landing page and records anonymous visit statistics in SQLite.
//
// Visitors are identified either by a random cookie token or by their
// network address and user agent. Statistics are available as JSON under
// /api, and Prometheus metrics under /metrics.
//
// Usage:
//
//	sitecounter -p 8000 -db data/visitors.db -web web
//	sitecounter -mode network -trust-proxy
//
// Every flag can also be set through a SITECOUNTER_* environment variable
// or a .env file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rampantspark/sitecounter/internal/config"
	"github.com/rampantspark/sitecounter/internal/handler"
	"github.com/rampantspark/sitecounter/internal/identity"
	"github.com/rampantspark/sitecounter/internal/logging"
	"github.com/rampantspark/sitecounter/internal/metrics"
	"github.com/rampantspark/sitecounter/internal/ratelimit"
	"github.com/rampantspark/sitecounter/internal/server"
	"github.com/rampantspark/sitecounter/internal/ui"
	"github.com/rampantspark/sitecounter/internal/visits"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		ui.PrintError(os.Stderr, "Invalid command line", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		ui.PrintError(os.Stderr, "Invalid configuration", err)
		return 2
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level, cfg.LogFormat)
	loc, _ := cfg.Location()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		ui.PrintError(os.Stderr, "Failed to create data directory", err)
		return 1
	}
	dbSummary := ui.BuildDatabaseSummary(cfg.DBPath)

	store, err := visits.Open(cfg.DBPath, logger, visits.WithLocation(loc))
	if err != nil {
		ui.PrintError(os.Stderr, "Failed to open database", err)
		return 1
	}

	resolver, err := identity.New(cfg.Mode(), identity.Options{
		TrustProxy:   cfg.TrustProxy,
		SecureCookie: cfg.SecureCookie,
	})
	if err != nil {
		store.Close()
		ui.PrintError(os.Stderr, "Invalid identity mode", err)
		return 2
	}

	m := metrics.New()
	recorder := visits.NewRecorder(store, m, logger)
	aggregator := visits.NewAggregator(store, m, logger)

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst)

	h := handler.New(resolver, recorder, aggregator, store, handler.Options{
		WebDir: cfg.WebDir,
		DBPath: cfg.DBPath,
	}, logger)
	router := h.Router(handler.RouterConfig{
		Limiter: limiter,
		ClientKey: func(r *http.Request) string {
			return identity.ClientIP(r, cfg.TrustProxy)
		},
		Metrics: m,
	})

	srv := server.New(cfg.Server(), logger)
	srv.RegisterHandler(router)

	if _, err := os.Stat(filepath.Join(cfg.WebDir, "index.html")); err != nil {
		logger.Warn("Landing page missing; / will answer 404", "path", filepath.Join(cfg.WebDir, "index.html"))
	}

	ui.PrintBanner(os.Stdout)
	ui.PrintStartupInfo(os.Stdout, ui.StartupInfo{
		Port:         cfg.Port,
		IdentityMode: string(resolver.Mode()),
		TrustProxy:   cfg.TrustProxy,
		RateLimit:    ui.BuildRateLimitSummary(cfg.RateLimit, cfg.RateBurst),
		Database:     dbSummary,
		WebDir:       cfg.WebDir,
		Timezone:     loc.String(),
		Metrics:      true,
	})

	cleanup := func() {
		ui.PrintShutdown(os.Stdout)
		limiter.Stop()
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}

	if err := srv.GracefulShutdown(cfg.ShutdownTimeout, cleanup); err != nil {
		ui.PrintError(os.Stderr, fmt.Sprintf("Server on port %s stopped", cfg.Port), err)
		return 1
	}
	ui.PrintShutdownComplete(os.Stdout)
	return 0
}
