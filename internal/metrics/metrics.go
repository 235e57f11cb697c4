// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package metrics provides Prometheus instrumentation for the sync agent:
// API request outcomes, retries, circuit breaker state, response cache
// efficiency, pagination, and import runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client metrics

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hevy_api_requests_total",
			Help: "Total Hevy API requests by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "rejected", "cache_hit"
	)

	APIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hevy_api_retries_total",
			Help: "Total retry attempts issued by the resilient client",
		},
	)

	APIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hevy_api_request_duration_seconds",
			Help:    "Duration of Hevy API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BreakerState tracks the circuit breaker: 0 closed, 1 open, 2 half-open.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hevy_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// Response cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hevy_response_cache_hits_total",
			Help: "Response cache hits by tier",
		},
		[]string{"tier"}, // "memory", "durable"
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hevy_response_cache_misses_total",
			Help: "Response cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hevy_response_cache_evictions_total",
			Help: "Memory-tier FIFO evictions",
		},
	)

	// Pagination metrics

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hevy_pages_fetched_total",
			Help: "Paginated pages fetched by endpoint",
		},
		[]string{"endpoint"},
	)

	// Import metrics

	ImportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hevysync_import_runs_total",
			Help: "Import runs by result",
		},
		[]string{"result"}, // "complete", "paused", "error", "already_active", "cancelled"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hevysync_import_duration_seconds",
			Help:    "Duration of import runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ImportStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hevysync_import_step_duration_seconds",
			Help:    "Duration of individual import steps in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"step"},
	)

	DeltaEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hevysync_delta_events_total",
			Help: "Workout delta events processed by type",
		},
		[]string{"type"}, // "created", "updated", "deleted"
	)

	DeltaFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hevysync_delta_fetch_failures_total",
			Help: "Per-workout fetch failures during delta import",
		},
	)

	RateLimitRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hevy_rate_limit_remaining",
			Help: "Most recently observed rate-limit budget remaining",
		},
	)
)

// RecordImportRun records the outcome and duration of an import run.
func RecordImportRun(result string, duration time.Duration) {
	ImportRuns.WithLabelValues(result).Inc()
	ImportDuration.Observe(duration.Seconds())
}
