// Package metrics exposes sitecounter's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitecounter"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	visitsRecorded  *prometheus.CounterVec
	recordFailures  *prometheus.CounterVec
	queryFailures   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the metric set together with Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		visitsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Visits persisted, by identity mode.",
		}, []string{"mode"}),
		recordFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_record_failures_total",
			Help:      "Visits that could not be persisted, by identity mode.",
		}, []string{"mode"}),
		queryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_query_failures_total",
			Help:      "Statistics queries that failed, by query.",
		}, []string{"query"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"route", "method", "status"}),
	}
}

// VisitRecorded counts a persisted visit.
func (m *Metrics) VisitRecorded(mode string) {
	m.visitsRecorded.WithLabelValues(mode).Inc()
}

// RecordFailed counts a visit lost to a storage fault.
func (m *Metrics) RecordFailed(mode string) {
	m.recordFailures.WithLabelValues(mode).Inc()
}

// QueryFailed counts a failed statistics query.
func (m *Metrics) QueryFailed(query string) {
	m.queryFailures.WithLabelValues(query).Inc()
}

// ObserveRequest records one served request. route is the router pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
