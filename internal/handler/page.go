package handler

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"
)

// recordTimeout bounds visit recording. The recording outlives a client
// disconnect but never holds the response for long.
const recordTimeout = 5 * time.Second

// ServePage handles a landing page request.
//
// The method:
//  1. Resolves the visitor identity
//  2. Records the visit (best-effort; failures never affect the response)
//  3. Reads index.html from disk, so edits show up without a restart
//  4. Persists the identity (cookie mode) and writes the page
//
// A missing index.html yields the JSON 404 listing available endpoints.
//
// Parameters:
//   - w: the HTTP response writer
//   - r: the HTTP request
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	id := h.resolver.Resolve(r)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), recordTimeout)
	result := h.recorder.Record(ctx, id, r.URL.Path)
	cancel()

	body, err := os.ReadFile(h.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		h.logger.Error("Landing page not found", "path", h.indexPath(), "error", ErrPageNotFound)
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read landing page", "path", h.indexPath(), "error", err)
		h.writeError(w, http.StatusInternalServerError, genericErr)
		return
	}

	h.resolver.Persist(w, id)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write landing page", "error", err)
		return
	}

	h.logger.Info("Served landing page",
		"visitor", result.Visitor,
		"mode", string(id.Mode),
		"new_visitor", id.IsNew,
		"new_today", result.IsNewToday,
		"recorded", result.OK,
	)
}
