// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package metrics defines the Prometheus instrumentation surface.
//
// All collectors are package-level and registered once via promauto at init.
// Callers record through the exported variables; nothing here allocates per
// request beyond what the Prometheus client does itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ranklab"

// Ranking pipeline metrics.
var (
	// RankingRequests counts feed requests by terminal status
	// (ok, degraded, error).
	RankingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "requests_total",
		Help:      "Feed ranking requests by terminal status.",
	}, []string{"status"})

	// RankingDuration measures end-to-end ranking latency.
	RankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "duration_seconds",
		Help:      "End-to-end feed ranking latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// StageDuration measures per-stage pipeline latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage pipeline latency.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"stage"})

	// SourceCandidates counts candidates produced per sourcing branch.
	SourceCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "source_candidates_total",
		Help:      "Candidates produced per sourcing branch.",
	}, []string{"source"})

	// SourceFailures counts failed sourcing branches.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "source_failures_total",
		Help:      "Sourcing branch failures absorbed as degraded responses.",
	}, []string{"source"})

	// FilterDropped counts candidates removed per filter.
	FilterDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "filter_dropped_total",
		Help:      "Candidates removed per filter.",
	}, []string{"filter"})

	// HydrationDropped counts candidates dropped during hydration.
	HydrationDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ranking",
		Name:      "hydration_dropped_total",
		Help:      "Candidates dropped because post hydration failed.",
	})
)

// Online learning metrics.
var (
	// LearningEvents counts ingested engagement events by action.
	LearningEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "events_total",
		Help:      "Ingested engagement events by action type.",
	}, []string{"action"})

	// VectorUpdates counts vector mutations by tier (realtime, batch).
	VectorUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "vector_updates_total",
		Help:      "Vector mutations by learning tier.",
	}, []string{"tier"})

	// BatchRebuildDuration measures full batch re-derivation time.
	BatchRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "batch_rebuild_duration_seconds",
		Help:      "Duration of a full batch vector re-derivation.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// BatchRebuilds counts batch runs by outcome (ok, skipped, error).
	BatchRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "batch_rebuilds_total",
		Help:      "Batch re-derivation runs by outcome.",
	}, []string{"outcome"})

	// StoredVectors gauges the vector population by kind (item, user).
	StoredVectors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "stored_vectors",
		Help:      "Stored vectors by kind.",
	}, []string{"kind"})
)

// Encoder metrics.
var (
	// EncoderBreakerState is 0 closed, 1 half-open, 2 open.
	EncoderBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "breaker_state",
		Help:      "Encoder circuit breaker state (0 closed, 1 half-open, 2 open).",
	})

	// EncoderCalls counts encoder invocations by outcome (ok, error, open).
	EncoderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "calls_total",
		Help:      "Encoder invocations by outcome.",
	}, []string{"outcome"})
)

// HTTP metrics.
var (
	// HTTPRequests counts handled HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status class.",
	}, []string{"route", "method", "status"})

	// HTTPDuration measures HTTP handler latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
