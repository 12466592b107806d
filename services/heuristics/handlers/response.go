// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the heuristics service.
//
// Every handler is a factory returning a gin.HandlerFunc closed over its
// dependencies. Successful responses use the envelope
// {"success": true, "data": ..., "metadata": ...}; failures use
// {"success": false, "error": ..., "kind": ...} with the status code
// chosen by herrors.HTTPStatus.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/observability"
)

var handlerTracer = otel.Tracer("aleutian.heuristics.handlers")

// DefaultMaxImageBytes bounds image uploads when no limit is configured.
const DefaultMaxImageBytes int64 = 20 << 20

// Response is the success envelope.
type Response struct {
	Success  bool  `json:"success"`
	Data     any   `json:"data"`
	Metadata gin.H `json:"metadata,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

func respond(c *gin.Context, data any, metadata gin.H) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Metadata: metadata})
}

func respondError(c *gin.Context, err error) {
	status := herrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		slog.Warn("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Kind:    herrors.KindOf(err).String(),
	})
}

// RequestMetrics counts requests per route and status class.
func RequestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordRequest(endpoint, c.Writer.Status())
	}
}

// readImage reads the multipart "image" field, bounded by maxBytes.
// It returns http.ErrMissingFile when the field is absent.
func readImage(c *gin.Context, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, http.ErrMissingFile
		}
		return nil, herrors.Invalid("upload_image", "image", err)
	}
	if fh.Size > maxBytes {
		return nil, herrors.Invalid("upload_image", fh.Filename, fmt.Errorf("image exceeds %d bytes", maxBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, herrors.Invalid("upload_image", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, herrors.Invalid("upload_image", fh.Filename, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, herrors.Invalid("upload_image", fh.Filename, fmt.Errorf("image exceeds %d bytes", maxBytes))
	}
	return data, nil
}
