// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package metrics provides Prometheus instrumentation for the recognition
// pipeline: job throughput, inference latency, resolver drops, pantry
// reconciliation, match cache efficiency, and API latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job lifecycle metrics
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_jobs_submitted_total",
			Help: "Total number of recognition jobs submitted",
		},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrio_jobs_completed_total",
			Help: "Total number of recognition jobs reaching a terminal state",
		},
		[]string{"status"}, // "completed", "failed"
	)

	JobsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_jobs_reclaimed_total",
			Help: "Total number of jobs requeued after a visibility timeout",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pantrio_queue_depth",
			Help: "Current number of queued recognition jobs",
		},
	)

	// Inference backend metrics
	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pantrio_inference_duration_seconds",
			Help:    "Duration of inference backend calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	InferenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrio_inference_errors_total",
			Help: "Total number of inference backend errors",
		},
		[]string{"kind"}, // "timeout", "unavailable", "invalid_input"
	)

	InferenceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_inference_retries_total",
			Help: "Total number of inference retry attempts",
		},
	)

	// Resolver metrics
	CandidatesResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_candidates_resolved_total",
			Help: "Total number of candidates resolved to canonical ingredients",
		},
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrio_candidates_dropped_total",
			Help: "Total number of candidates dropped during resolution",
		},
		[]string{"reason"}, // "below_threshold", "spatial_overlap", "unknown_label"
	)

	// Reconciliation metrics
	ReconcileOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrio_reconcile_operations_total",
			Help: "Total number of pantry reconciliation outcomes",
		},
		[]string{"action"}, // "created", "incremented", "pending_confirmation", "failed", "skipped"
	)

	// Match cache metrics
	MatchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_match_cache_hits_total",
			Help: "Total number of match cache hits",
		},
	)

	MatchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_match_cache_misses_total",
			Help: "Total number of match cache misses",
		},
	)

	MatchComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pantrio_match_compute_duration_seconds",
			Help:    "Duration of recipe match computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrio_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pantrio_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Notification metrics
	NotificationsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_notifications_published_total",
			Help: "Total number of recognition-complete notifications published",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pantrio_notifications_dropped_total",
			Help: "Total number of notifications dropped (best-effort delivery)",
		},
	)
)
