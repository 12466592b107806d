// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noViolations struct{}

func (noViolations) Classify(context.Context, catalogue.HeuristicDefinition, []detection.UIElement, []knowledge.KnowledgeEntry) ([]classifier.Violation, error) {
	return []classifier.Violation{}, nil
}

func setup(t *testing.T) (*gin.Engine, *observability.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	store := knowledge.NewMemoryStore(knowledge.SeedEntries())
	eng := engine.New(catalogue.Default(), store, noViolations{},
		engine.WithLogger(logging.Nop()),
		engine.WithMetrics(m),
	)

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Engine:   eng,
		Store:    store,
		Detector: detection.NewFixtureDetector(),
		Metrics:  m,
		Gatherer: reg,
	})
	return router, m, reg
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	router, _, _ := setup(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/health/ready"},
		{"GET", "/metrics"},
		{"POST", "/api/v1/heuristic/detect-elements"},
		{"POST", "/api/v1/heuristic/analyze"},
		{"POST", "/api/v1/evaluation/evaluate"},
		{"POST", "/api/v1/evaluation/evaluate-legacy/:heuristic_id"},
		{"GET", "/api/v1/evaluation/heuristics"},
		{"GET", "/api/v1/evaluation/knowledge-base/stats"},
		{"POST", "/api/v1/evaluation/knowledge-base/feedback"},
	}

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, e := range expected {
		assert.True(t, registered[e.method+" "+e.path], "route %s %s not registered", e.method, e.path)
	}
}

func TestSetupRoutes_WithoutGatherer(t *testing.T) {
	store := knowledge.NewMemoryStore(nil)
	router := gin.New()
	SetupRoutes(router, Dependencies{
		Engine:   engine.New(catalogue.Default(), store, noViolations{}, engine.WithLogger(logging.Nop())),
		Store:    store,
		Detector: detection.NewFixtureDetector(),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, m, _ := setup(t)

	for range 2 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/evaluation/heuristics", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/evaluation/heuristics", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "4xx")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "requests_total")
}
