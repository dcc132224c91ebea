package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rampantspark/sitecounter/internal/visits"
)

const pingTimeout = 2 * time.Second

// HealthStatus is the /health response.
type HealthStatus struct {
	Status    string    `json:"status"` // "healthy" or "unhealthy"
	Service   string    `json:"service"`
	Mode      string    `json:"identity_mode"`
	Timestamp time.Time `json:"timestamp"`
	Database  bool      `json:"database"` // store answered a ping
	IndexHTML bool      `json:"index_html"`
	StaticDir bool      `json:"static_dir"`
	Uptime    string    `json:"uptime"`
}

// Health reports store reachability and asset presence.
//
// Answers 503 when the store does not respond; missing assets are reported
// but do not fail the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	dbOK := true
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		dbOK = false
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   service,
		Mode:      string(h.resolver.Mode()),
		Timestamp: time.Now(),
		Database:  dbOK,
		IndexHTML: exists(h.indexPath()),
		StaticDir: isDir(h.staticPath()),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if !dbOK {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, status)
}

// DebugInfo is the /debug response.
type DebugInfo struct {
	ServerTime   time.Time  `json:"server_time"`
	Mode         string     `json:"identity_mode"`
	Files        DebugFiles `json:"files"`
	VisitorStats DebugStats `json:"visitor_stats"`
	LiveVisitors DebugLive  `json:"live_visitors"`
}

// DebugFiles reports which files exist on disk.
type DebugFiles struct {
	Database  bool `json:"database"`
	IndexHTML bool `json:"index_html"`
	StaticDir bool `json:"static_dir"`
}

// DebugStats is the headline subset of the summary.
type DebugStats struct {
	TotalVisits    int64  `json:"total_visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
	TodayVisits    int64  `json:"today_visits"`
	Error          string `json:"error,omitempty"`
}

// DebugLive summarises the default live window.
type DebugLive struct {
	WindowMinutes  int    `json:"window_minutes"`
	Count          int    `json:"count"`
	UniqueVisitors int64  `json:"unique_visitors"`
	Error          string `json:"error,omitempty"`
}

// Debug dumps a snapshot of files, headline statistics and the live window
// for operators.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary := h.aggregator.Summary(ctx)
	live := h.aggregator.LiveVisitors(ctx, visits.DefaultLiveMinutes)

	h.writeJSON(w, http.StatusOK, DebugInfo{
		ServerTime: time.Now(),
		Mode:       string(h.resolver.Mode()),
		Files: DebugFiles{
			Database:  exists(h.opts.DBPath),
			IndexHTML: exists(h.indexPath()),
			StaticDir: isDir(h.staticPath()),
		},
		VisitorStats: DebugStats{
			TotalVisits:    summary.TotalVisits,
			UniqueVisitors: summary.UniqueVisitors,
			TodayVisits:    summary.TodayVisits,
			Error:          summary.Error,
		},
		LiveVisitors: DebugLive{
			WindowMinutes:  live.WindowMinutes,
			Count:          live.Count,
			UniqueVisitors: live.UniqueVisitors,
			Error:          live.Error,
		},
	})
}
