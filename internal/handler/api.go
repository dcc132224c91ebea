package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rampantspark/sitecounter/internal/visits"
)

// Stats serves the summary statistics.
//
// Storage faults still answer 200 with zeroed counts and an error field, so
// dashboards keep rendering.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Summary(r.Context()))
}

// LiveVisitors serves the visits of the last ?minutes (default 5, at most
// one day).
func (h *Handler) LiveVisitors(w http.ResponseWriter, r *http.Request) {
	minutes, ok, err := positiveParam(r, "minutes")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		minutes = visits.DefaultLiveMinutes
	}
	if minutes > visits.MaxLiveMinutes {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: minutes must be at most %d", ErrInvalidParam, visits.MaxLiveMinutes))
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.LiveVisitors(r.Context(), minutes))
}

// RecentVisitors serves the ?limit most recent visits (default 20, capped
// at 500).
func (h *Handler) RecentVisitors(w http.ResponseWriter, r *http.Request) {
	limit, ok, err := positiveParam(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		limit = visits.DefaultRecentLimit
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.RecentVisitors(r.Context(), limit))
}

// VisitorCount serves visit counts for ?hours=N (rolling) or ?days=N
// (calendar), or all time when neither is given. Supplying both is a 400.
func (h *Handler) VisitorCount(w http.ResponseWriter, r *http.Request) {
	var p visits.Period
	var err error

	// absent parameters read as 0, which Period treats as unset
	if p.Hours, _, err = positiveParam(r, "hours"); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Days, _, err = positiveParam(r, "days"); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := p.Validate(); err != nil {
		msg := err.Error()
		if errors.Is(err, visits.ErrInvalidPeriod) {
			msg = "specify either days or hours, not both"
		}
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.CountByPeriod(r.Context(), p))
}

// positiveParam reads an optional positive integer query parameter. ok is
// false when the parameter is absent or empty.
func positiveParam(r *http.Request, name string) (n int, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidParam, name, raw)
	}
	return n, true, nil
}
