// Package metrics exposes Prometheus instrumentation for the ratings service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ratings"

type Metrics struct {
	registry *prometheus.Registry

	GamesApplied    *prometheus.CounterVec
	GamesDuplicate  *prometheus.CounterVec
	GamesRejected   *prometheus.CounterVec
	RatingQueries   prometheus.Counter
	AdjustedWritten *prometheus.CounterVec
	SportFailures   *prometheus.CounterVec
	SyncRuns        *prometheus.CounterVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,
		GamesApplied: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "games_applied_total",
			Help:      "Games applied to ratings.",
		}, []string{"sport"}),
		GamesDuplicate: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "games_duplicate_total",
			Help:      "Games skipped because they were already processed.",
		}, []string{"sport"}),
		GamesRejected: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "games_rejected_total",
			Help:      "Games rejected as structurally invalid.",
		}, []string{"sport"}),
		RatingQueries: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rating_queries_total",
			Help:      "Rating lookups served.",
		}),
		AdjustedWritten: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "adjusted_metrics_total",
			Help:      "Opponent-adjusted metrics written.",
		}, []string{"sport"}),
		SportFailures: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "sport_failures_total",
			Help:      "Per-sport failures absorbed by batch coordinators.",
		}, []string{"sport", "operation"}),
		SyncRuns: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Provider sync runs by outcome.",
		}, []string{"sport", "outcome"}),
		HTTPRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
