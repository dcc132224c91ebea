package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rampantspark/sitecounter/internal/identity"
	"github.com/rampantspark/sitecounter/internal/metrics"
	"github.com/rampantspark/sitecounter/internal/middleware"
	"github.com/rampantspark/sitecounter/internal/ratelimit"
)

// RouterConfig holds the optional cross-cutting pieces of the router.
type RouterConfig struct {
	Limiter   *ratelimit.Limiter         // Limits /api/*; nil disables
	ClientKey func(*http.Request) string // Rate limit key; required with Limiter
	Metrics   *metrics.Metrics           // Instruments routes and serves /metrics; nil disables
}

// Router builds the chi router for every endpoint.
//
// /api/live-visitors is only registered in network mode. The JSON 404 lists
// exactly the routes registered here.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	if cfg.Metrics != nil {
		r.Use(middleware.Instrument(cfg.Metrics))
	}
	r.Use(middleware.RecoverPanic(h.logger))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/", h.ServePage)
	r.Get("/health", h.Health)
	r.Get("/debug", h.Debug)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticPath()))))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Limiter != nil {
			api.Use(middleware.RateLimit(cfg.Limiter, cfg.ClientKey))
		}
		api.Get("/stats", h.Stats)
		if h.resolver.Mode() == identity.ModeNetwork {
			api.Get("/live-visitors", h.LiveVisitors)
		}
		api.Get("/visitors/recent", h.RecentVisitors)
		api.Get("/visitors/count", h.VisitorCount)
	})

	h.endpoints = registeredRoutes(r)
	return r
}

// registeredRoutes lists the route patterns of r, sorted.
func registeredRoutes(r chi.Routes) []string {
	seen := make(map[string]bool)
	var routes []string
	chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.ReplaceAll(route, "/*/", "/")
		if !seen[route] {
			seen[route] = true
			routes = append(routes, route)
		}
		return nil
	})
	sort.Strings(routes)
	return routes
}
