// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package metrics exposes Prometheus collectors for every pipeline stage
// boundary: cache outcomes, discovery, enrichment, scoring drops, upstream
// request timing, and the background warmer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Manager metrics. The "class" label is the artifact class
	// (library, discovery, ratings, catalog).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total fresh cache hits per artifact class",
		},
		[]string{"class"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses per artifact class",
		},
		[]string{"class"},
	)

	CacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_served_total",
			Help: "Total stale entries served (stale-while-revalidate)",
		},
		[]string{"class"},
	)

	CacheComputeShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_compute_shared_total",
			Help: "Recomputations deduplicated by the per-key compute lock",
		},
		[]string{"class"},
	)

	CacheComputeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_compute_failures_total",
			Help: "Artifact recomputations that failed past the retry budget",
		},
		[]string{"class"},
	)

	CacheStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_store_errors_total",
			Help: "Cache store failures treated as misses",
		},
	)

	// Discovery metrics.
	DiscoveryCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_candidates_per_seed",
			Help:    "Candidate count returned by discovery per seed",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	DiscoveryFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_fallbacks_total",
			Help: "Seeds that fell back to the generic similar-items endpoint",
		},
	)

	// Enrichment metrics.
	EnrichmentDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrichment_degraded_total",
			Help: "Requests in which the rating service was marked degraded",
		},
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidates_dropped_total",
			Help: "Candidates dropped from the pipeline by reason",
		},
		[]string{"reason"}, // "missing_canonical_id", "below_min_rating", "watched"
	)

	// Upstream client metrics. The "service" label is stremio, tmdb or mdblist.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_request_errors_total",
			Help: "Upstream API request failures after retries",
		},
		[]string{"service", "operation"},
	)

	// Circuit breaker metrics (TMDB).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Warmer metrics.
	WarmingCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warming_cycles_total",
			Help: "Completed background cache warming cycles",
		},
	)

	WarmingRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warming_refreshes_total",
			Help: "Catalogs refreshed by the background warmer",
		},
	)

	WarmingActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "warming_active_users",
			Help: "User configs currently registered for background warming",
		},
	)
)
