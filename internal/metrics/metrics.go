// Package metrics holds the Prometheus instruments for context assembly.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the ctxpack collectors.
type Metrics struct {
	RetrievalCandidates *prometheus.CounterVec
	RetrievalLatency    prometheus.Histogram
	SearchFailures      prometheus.Counter
	PackRuns            *prometheus.CounterVec
	PackDropped         prometheus.Counter
	Compressions        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	m.gatherer = reg
	return m
}

// NewWithRegisterer registers the collectors with reg. Handler serves the
// default gatherer in that case.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := newMetrics(reg)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetrievalCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctxpack_retrieval_candidates_total",
			Help: "Candidates returned by retrieval, by source channel",
		}, []string{"source"}),

		RetrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctxpack_retrieval_duration_seconds",
			Help:    "Time spent gathering candidates across all channels",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		SearchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctxpack_search_failures_total",
			Help: "Search calls that failed or timed out",
		}),

		PackRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctxpack_pack_runs_total",
			Help: "Budget packing runs, by whether the result was truncated",
		}, []string{"truncated"}),

		PackDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctxpack_pack_dropped_candidates_total",
			Help: "Candidates dropped entirely by the budget packer",
		}),

		Compressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctxpack_compressions_total",
			Help: "History compression attempts, by result",
		}, []string{"result"}), // summarized, cached, skipped, failed
	}

	reg.MustRegister(
		m.RetrievalCandidates,
		m.RetrievalLatency,
		m.SearchFailures,
		m.PackRuns,
		m.PackDropped,
		m.Compressions,
	)
	return m
}

// ObserveRetrieval records per-source candidate counts and total latency.
func (m *Metrics) ObserveRetrieval(bySource map[string]int, d time.Duration) {
	if m == nil {
		return
	}
	for src, n := range bySource {
		m.RetrievalCandidates.WithLabelValues(src).Add(float64(n))
	}
	m.RetrievalLatency.Observe(d.Seconds())
}

// SearchFailed counts a failed search call.
func (m *Metrics) SearchFailed() {
	if m == nil {
		return
	}
	m.SearchFailures.Inc()
}

// ObservePack records one packing run.
func (m *Metrics) ObservePack(truncated bool, dropped int) {
	if m == nil {
		return
	}
	label := "false"
	if truncated {
		label = "true"
	}
	m.PackRuns.WithLabelValues(label).Inc()
	m.PackDropped.Add(float64(dropped))
}

// Compression counts a compression attempt with the given result label.
func (m *Metrics) Compression(result string) {
	if m == nil {
		return
	}
	m.Compressions.WithLabelValues(result).Inc()
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
