// Package metrics defines the Prometheus collectors for the acquisition
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	StrategyAttemptsTotal *prometheus.CounterVec
	AcquisitionsTotal     *prometheus.CounterVec
	AcquisitionDuration   prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	ChunksProduced        prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all pipeline metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		StrategyAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recolte_strategy_attempts_total",
				Help: "Fetch strategy attempts by strategy and outcome (ok, failed, thin).",
			},
			[]string{"strategy", "outcome"},
		),
		AcquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recolte_acquisitions_total",
				Help: "Acquisitions by terminal state (validated, all_failed, crawl_error, cache_hit).",
			},
			[]string{"state"},
		),
		AcquisitionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recolte_acquisition_duration_seconds",
				Help:    "End-to-end acquisition latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recolte_cache_hits_total",
				Help: "Acquisitions served from the URL cache.",
			},
		),
		ChunksProduced: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recolte_chunks_per_acquisition",
				Help:    "Number of chunks produced per acquisition.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.StrategyAttemptsTotal,
		m.AcquisitionsTotal,
		m.AcquisitionDuration,
		m.CacheHitsTotal,
		m.ChunksProduced,
	)

	return m
}

// Handler returns the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
