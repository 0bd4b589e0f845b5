// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package metrics exposes Prometheus instrumentation for the pricing
// pipeline: per-provider fetch outcomes, heuristic extraction yield,
// circuit breaker state, render round trips, aggregation and alert runs,
// and advisory-cache efficiency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch / adapter metrics
	FetchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_fetch_runs_total",
			Help: "Total pricing fetch job executions by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure, circuit_open
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_fetch_duration_seconds",
			Help:    "Duration of pricing fetch runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "adapter"},
	)

	ObservationsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_observations_extracted_total",
			Help: "Normalized pricing observations produced by adapter runs",
		},
		[]string{"provider", "adapter"},
	)

	ExtractionCandidatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_extraction_candidates_skipped_total",
			Help: "Heuristic extraction candidates skipped per reason",
		},
		[]string{"provider", "reason"}, // reason: no_price, invalid_price, duplicate
	)

	// Circuit breaker metrics
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

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	// Render worker round trips
	RenderRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_request_duration_seconds",
			Help:    "Browser render request round-trip duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	RenderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_requests_total",
			Help: "Render requests by outcome",
		},
		[]string{"outcome"}, // outcome: success, timeout, invalid
	)

	// Aggregation / alert metrics
	AggregationRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregation_runs_total",
			Help: "Completed cheapest-per-GPU aggregation runs",
		},
	)

	AggregationEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregation_rollup_entries",
			Help: "Entries in the most recent cheapest-per-GPU rollup",
		},
	)

	AlertsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_evaluated_total",
			Help: "Alert subscriptions evaluated",
		},
	)

	AlertsNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_notified_total",
			Help: "Alert notifications enqueued",
		},
	)

	// Advisory cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Advisory cache hits by key prefix",
		},
		[]string{"prefix"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Advisory cache misses by key prefix",
		},
		[]string{"prefix"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache keys invalidated by prefix sweep",
		},
		[]string{"prefix"},
	)

	// Store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of authoritative store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Authoritative store query errors",
		},
		[]string{"operation"},
	)

	// Scheduler metrics
	ScheduledJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_registered_jobs",
			Help: "Recurring jobs currently registered",
		},
	)

	JobsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_published_total",
			Help: "Job messages published by topic",
		},
		[]string{"topic"},
	)
)
