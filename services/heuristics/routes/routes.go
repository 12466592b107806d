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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/handlers"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/observability"
)

// Dependencies are the components the HTTP surface is wired to.
type Dependencies struct {
	Engine   *engine.Engine
	Store    knowledge.Store
	Detector detection.Detector

	// HTTPClient fetches images by URL. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Metrics may be nil. Gatherer serves /metrics when set.
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	MaxImageBytes int64
}

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Metrics != nil {
		router.Use(handlers.RequestMetrics(deps.Metrics))
	}

	health := router.Group("/health")
	{
		health.GET("", handlers.HealthCheck)
		health.GET("/ready", handlers.HandleReadiness(deps.Store))
	}
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		heuristic := v1.Group("/heuristic")
		{
			heuristic.POST("/detect-elements", handlers.HandleDetectElements(deps.Detector, deps.HTTPClient, deps.MaxImageBytes))
			heuristic.POST("/analyze", handlers.HandleAnalyze(deps.Detector, deps.MaxImageBytes))
		}

		evaluation := v1.Group("/evaluation")
		{
			evaluation.POST("/evaluate", handlers.HandleEvaluate(deps.Engine, deps.Detector, deps.MaxImageBytes))
			evaluation.POST("/evaluate-legacy/:heuristic_id", handlers.HandleEvaluateLegacy(deps.Engine))
			evaluation.GET("/heuristics", handlers.HandleListHeuristics(deps.Engine))
			evaluation.GET("/knowledge-base/stats", handlers.HandleKnowledgeStats(deps.Store))
			evaluation.POST("/knowledge-base/feedback", handlers.HandleFeedback(deps.Store))
		}
	}
}
