// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
)

// EvaluateRequest is the JSON form of an evaluation request, used when
// detection has already been done by the caller.
type EvaluateRequest struct {
	DetectionResults *detection.DetectionResult `json:"detection_results"`
}

// HandleEvaluate evaluates an interface against every heuristic.
//
// # Description
//
// Accepts either a multipart upload (field "image"), which is run through
// the detector first, or a JSON EvaluateRequest. The query parameter
// include_llm_analysis (default true) controls narrative explanations.
//
// # Outputs
//
// 200 with an engine.EvaluationReport. 400 for bad input, 422 when
// detection fails, 503 when no heuristic could be scored.
func HandleEvaluate(eng *engine.Engine, det detection.Detector, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleEvaluate")
		defer span.End()
		start := time.Now()
		requestID := uuid.NewString()

		includeNarrative := true
		if raw, ok := c.GetQuery("include_llm_analysis"); ok {
			v, err := cast.ToBoolE(raw)
			if err != nil {
				respondError(c, herrors.Invalid("evaluate", raw, errors.New("include_llm_analysis must be a boolean")))
				return
			}
			includeNarrative = v
		}

		var result *detection.DetectionResult
		img, err := readImage(c, maxBytes)
		switch {
		case err == nil:
			result, err = det.Detect(ctx, img)
			if err != nil {
				span.RecordError(err)
				respondError(c, err)
				return
			}
		case errors.Is(err, http.ErrMissingFile):
			var req EvaluateRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, herrors.Invalid("evaluate", "body", err))
				return
			}
			if req.DetectionResults == nil {
				respondError(c, herrors.Invalid("evaluate", "body", errors.New("image upload or detection_results is required")))
				return
			}
			result = req.DetectionResults
		default:
			respondError(c, err)
			return
		}

		span.SetAttributes(
			attribute.String("heuristics.request_id", requestID),
			attribute.Int("heuristics.elements", len(result.Elements)),
		)
		slog.Info("Evaluating interface", "request_id", requestID, "elements", len(result.Elements), "narrative", includeNarrative)

		var opts []engine.EvalOption
		if !includeNarrative {
			opts = append(opts, engine.WithoutNarrative())
		}
		report, err := eng.EvaluateInterface(ctx, result, opts...)
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		respond(c, report, gin.H{
			"request_id":           requestID,
			"processing_time_ms":   time.Since(start).Milliseconds(),
			"model_version":        engine.EvaluationVersion,
			"include_llm_analysis": includeNarrative,
		})
	}
}

// HandleEvaluateLegacy evaluates one heuristic against a JSON array of
// elements. The heuristic id path parameter is case-insensitive.
func HandleEvaluateLegacy(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleEvaluateLegacy")
		defer span.End()

		raw := c.Param("heuristic_id")
		id, err := catalogue.ParseHeuristicID(raw)
		if err != nil {
			respondError(c, herrors.Invalid("evaluate_legacy", raw, errors.New("invalid heuristic id")))
			return
		}
		span.SetAttributes(attribute.String("heuristics.id", string(id)))

		var elements []detection.UIElement
		if err := c.ShouldBindJSON(&elements); err != nil {
			respondError(c, herrors.Invalid("evaluate_legacy", "body", err))
			return
		}

		score, err := eng.EvaluateSingleHeuristic(ctx, id, elements, engine.WithoutNarrative())
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		respond(c, score, nil)
	}
}

// HandleListHeuristics returns name, description and criteria count per
// heuristic.
func HandleListHeuristics(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, eng.CatalogueSummary(), nil)
	}
}

// HandleKnowledgeStats returns knowledge base statistics.
func HandleKnowledgeStats(store knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, stats, nil)
	}
}

// HandleFeedback appends an expert feedback entry to the knowledge base.
func HandleFeedback(store knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleFeedback")
		defer span.End()

		var fb knowledge.Feedback
		if err := c.ShouldBindJSON(&fb); err != nil {
			respondError(c, herrors.Invalid("add_feedback", "body", err))
			return
		}
		entry, err := store.AddFeedback(ctx, fb)
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, Response{Success: true, Data: entry})
	}
}
