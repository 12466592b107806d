// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the heuristics
// service.
//
// # Description
//
// Metrics cover whole evaluations (count, latency), per-heuristic outcomes
// (scored, unavailable, malformed output), classifier latency, score
// distribution, violations by severity, knowledge base degradation and API
// requests. They are exposed on /metrics.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace    = "aleutian"
	heuristicsSubsystem = "heuristics"
)

// Outcome labels for HeuristicOutcomesTotal.
const (
	OutcomeScored      = "scored"
	OutcomeUnavailable = "unavailable"
	OutcomeMalformed   = "malformed"
)

// Evaluation status labels for EvaluationsTotal.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Metrics holds all Prometheus collectors for the heuristics service.
type Metrics struct {
	// EvaluationsTotal counts full evaluations. Labels: status.
	EvaluationsTotal *prometheus.CounterVec

	// EvaluationDurationSeconds measures full evaluation latency.
	EvaluationDurationSeconds prometheus.Histogram

	// HeuristicOutcomesTotal counts per-heuristic outcomes.
	// Labels: heuristic, outcome.
	HeuristicOutcomesTotal *prometheus.CounterVec

	// ClassifierDurationSeconds measures classifier calls. Labels: heuristic.
	ClassifierDurationSeconds *prometheus.HistogramVec

	// HeuristicScore records the distribution of scores. Labels: heuristic.
	HeuristicScore *prometheus.HistogramVec

	// ViolationsTotal counts reported violations. Labels: heuristic, severity.
	ViolationsTotal *prometheus.CounterVec

	// KnowledgeFallbacksTotal counts retrievals that failed and fell back
	// to empty context.
	KnowledgeFallbacksTotal prometheus.Counter

	// RequestsTotal counts API requests. Labels: endpoint, code.
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
//
// # Inputs
//
//   - reg: Target registry. Pass prometheus.DefaultRegisterer in
//     production and prometheus.NewRegistry() in tests.
//
// # Limitations
//
//   - Panics if the same collectors are registered twice on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "evaluations_total",
				Help:      "Total interface evaluations by status",
			},
			[]string{"status"},
		),
		EvaluationDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Wall time of a full interface evaluation",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		HeuristicOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "heuristic_outcomes_total",
				Help:      "Per-heuristic evaluation outcomes",
			},
			[]string{"heuristic", "outcome"},
		),
		ClassifierDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "classifier_duration_seconds",
				Help:      "Latency of violation classifier calls",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"heuristic"},
		),
		HeuristicScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "score",
				Help:      "Distribution of heuristic scores",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"heuristic"},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "violations_total",
				Help:      "Violations reported by the classifier",
			},
			[]string{"heuristic", "severity"},
		),
		KnowledgeFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "knowledge_fallbacks_total",
				Help:      "Retrievals that failed and continued with empty context",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: heuristicsSubsystem,
				Name:      "requests_total",
				Help:      "API requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordEvaluation records a finished evaluation.
func (m *Metrics) RecordEvaluation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDurationSeconds.Observe(d.Seconds())
}

// RecordClassifierCall records the latency of one classifier call.
func (m *Metrics) RecordClassifierCall(heuristic string, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassifierDurationSeconds.WithLabelValues(heuristic).Observe(d.Seconds())
}

// RecordOutcome records a per-heuristic outcome.
func (m *Metrics) RecordOutcome(heuristic, outcome string) {
	if m == nil {
		return
	}
	m.HeuristicOutcomesTotal.WithLabelValues(heuristic, outcome).Inc()
}

// RecordScore records a heuristic score and its violations' severities.
func (m *Metrics) RecordScore(heuristic string, score int, severities []string) {
	if m == nil {
		return
	}
	m.HeuristicScore.WithLabelValues(heuristic).Observe(float64(score))
	for _, sev := range severities {
		m.ViolationsTotal.WithLabelValues(heuristic, sev).Inc()
	}
}

// RecordKnowledgeFallback records a failed retrieval.
func (m *Metrics) RecordKnowledgeFallback() {
	if m == nil {
		return
	}
	m.KnowledgeFallbacksTotal.Inc()
}

// RecordRequest records an API request.
func (m *Metrics) RecordRequest(endpoint string, code int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
