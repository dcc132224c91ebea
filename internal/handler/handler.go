// Package handler implements sitecounter's HTTP surface: the tracked landing
// page, the statistics API and the operator endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rampantspark/sitecounter/internal/identity"
	"github.com/rampantspark/sitecounter/internal/visits"
)

const (
	indexFile  = "index.html"
	staticDir  = "static"
	service    = "sitecounter"
	genericErr = "internal server error"
)

var (
	// ErrPageNotFound is reported when the landing page asset is missing.
	ErrPageNotFound = errors.New("page not found")
	// ErrInvalidParam is reported for malformed query parameters.
	ErrInvalidParam = errors.New("invalid query parameter")
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options locates the files served and inspected by the handlers.
type Options struct {
	WebDir string // Directory holding index.html and static/
	DBPath string // Database file, reported by /health and /debug
}

// Handler serves every sitecounter endpoint.
//
// Page requests go through the identity resolver and the recorder; the API
// endpoints only read through the aggregator.
type Handler struct {
	resolver   identity.Resolver
	recorder   *visits.Recorder
	aggregator *visits.Aggregator
	store      Pinger
	opts       Options
	logger     *slog.Logger
	started    time.Time
	endpoints  []string // filled by Router
}

// New creates a new handler set.
//
// Parameters:
//   - resolver: the identity strategy in use
//   - recorder: persists page visits
//   - aggregator: answers statistics queries
//   - store: pinged by /health
//   - opts: web and database file locations
//   - logger: structured logger instance
//
// Returns a new Handler instance.
func New(resolver identity.Resolver, recorder *visits.Recorder, aggregator *visits.Aggregator, store Pinger, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:   resolver,
		recorder:   recorder,
		aggregator: aggregator,
		store:      store,
		opts:       opts,
		logger:     logger,
		started:    time.Now(),
	}
}

// notFoundBody is returned for unknown paths and a missing landing page.
type notFoundBody struct {
	Message            string   `json:"message"`
	Path               string   `json:"path"`
	AvailableEndpoints []string `json:"available_endpoints"`
}

// NotFound answers with a JSON 404 that lists the registered endpoints.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	endpoints := h.endpoints
	if endpoints == nil {
		endpoints = []string{}
	}
	h.writeJSON(w, http.StatusNotFound, notFoundBody{
		Message:            "Resource not found",
		Path:               r.URL.Path,
		AvailableEndpoints: endpoints,
	})
}

// MethodNotAllowed answers with a JSON 405.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (h *Handler) indexPath() string {
	return filepath.Join(h.opts.WebDir, indexFile)
}

func (h *Handler) staticPath() string {
	return filepath.Join(h.opts.WebDir, staticDir)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
