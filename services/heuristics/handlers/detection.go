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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
)

// AnalyzeResponse is the data payload of the analyze endpoint.
type AnalyzeResponse struct {
	Detection       *detection.DetectionResult       `json:"detection"`
	GroupedElements map[string][]detection.UIElement `json:"grouped_elements"`
	Summary         detection.InterfaceSummary       `json:"summary"`
}

// HandleDetectElements detects UI elements in an uploaded image or, when no
// file is sent, in the image at form field "image_url".
func HandleDetectElements(det detection.Detector, client *http.Client, maxBytes int64) gin.HandlerFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleDetectElements")
		defer span.End()

		img, err := readImage(c, maxBytes)
		if errors.Is(err, http.ErrMissingFile) {
			imageURL := c.PostForm("image_url")
			if imageURL == "" {
				respondError(c, herrors.Invalid("detect_elements", "", errors.New("either image or image_url must be provided")))
				return
			}
			span.SetAttributes(attribute.String("heuristics.image_url", imageURL))
			img, err = detection.FetchImage(ctx, client, imageURL, maxBytes)
		}
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}

		result, err := det.Detect(ctx, img)
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		slog.Info("Detected UI elements", "elements", len(result.Elements))
		respond(c, result, nil)
	}
}

// HandleAnalyze detects elements and adds grouping and a summary.
func HandleAnalyze(det detection.Detector, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleAnalyze")
		defer span.End()

		img, err := readImage(c, maxBytes)
		if errors.Is(err, http.ErrMissingFile) {
			err = herrors.Invalid("analyze_interface", "image", errors.New("image file is required"))
		}
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := det.Detect(ctx, img)
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		respond(c, AnalyzeResponse{
			Detection:       result,
			GroupedElements: detection.GroupRelatedElements(result.Elements),
			Summary:         detection.Summarize(result.Elements),
		}, nil)
	}
}
