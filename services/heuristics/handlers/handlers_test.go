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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Setup
// =============================================================================

type stubClassifier struct {
	err error
}

func (s stubClassifier) Classify(_ context.Context, def catalogue.HeuristicDefinition, _ []detection.UIElement, _ []knowledge.KnowledgeEntry) ([]classifier.Violation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if def.ID == "H1" {
		return []classifier.Violation{{
			HeuristicID: "H1",
			CriterionID: "H1.2",
			Severity:    catalogue.SeverityMajor,
			Description: "No feedback after submit",
		}}, nil
	}
	return []classifier.Violation{}, nil
}

type stubExplainer struct{}

func (stubExplainer) Explain(_ context.Context, def catalogue.HeuristicDefinition, _ int, _ []classifier.Violation) (string, error) {
	return "narrative for " + string(def.ID), nil
}

type fixture struct {
	router *gin.Engine
	store  *knowledge.MemoryStore
}

func newFixture(t *testing.T, cls classifier.Classifier) fixture {
	t.Helper()
	store := knowledge.NewMemoryStore(knowledge.SeedEntries())
	eng := engine.New(catalogue.Default(), store, cls,
		engine.WithLogger(logging.Nop()),
		engine.WithExplainer(stubExplainer{}),
	)
	det := detection.NewFixtureDetector()

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.GET("/health/ready", HandleReadiness(store))
	router.POST("/detect-elements", HandleDetectElements(det, nil, 1<<20))
	router.POST("/analyze", HandleAnalyze(det, 1<<20))
	router.POST("/evaluate", HandleEvaluate(eng, det, 1<<20))
	router.POST("/evaluate-legacy/:heuristic_id", HandleEvaluateLegacy(eng))
	router.GET("/heuristics", HandleListHeuristics(eng))
	router.GET("/stats", HandleKnowledgeStats(store))
	router.POST("/feedback", HandleFeedback(store))
	return fixture{router: router, store: store}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, img []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "screen.png")
	require.NoError(t, err)
	_, err = part.Write(img)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(f fixture, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Metadata map[string]any  `json:"metadata"`
	Error    string          `json:"error"`
	Kind     string          `json:"kind"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceVersion, body["version"])
}

func TestReadiness(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	require.NoError(t, f.store.Close())
	w = serve(f, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// =============================================================================
// Evaluation
// =============================================================================

func TestEvaluate_JSONDetectionResults(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	body := `{"detection_results": {"elements": [
		{"type": "button", "bbox": [100, 200, 220, 240], "interactivity": true, "content": "Submit"},
		{"element_type": "input", "bbox": [100, 150, 300, 185], "interactive": true}
	]}}`
	w := serve(f, jsonRequest(http.MethodPost, "/evaluate?include_llm_analysis=false", body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, false, env.Metadata["include_llm_analysis"])
	assert.NotEmpty(t, env.Metadata["request_id"])

	var report engine.EvaluationReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Len(t, report.HeuristicScores, 10)
	assert.Equal(t, 94, report.HeuristicScores[0].Score)
	assert.Nil(t, report.HeuristicScores[0].LLMExplanation)
	// (94 + 9*100) / 10
	assert.Equal(t, 99.4, report.OverallScore)
	assert.Equal(t, 1, report.TotalViolations)
	assert.Equal(t, 2, report.Metadata.TotalElements)
}

func TestEvaluate_MultipartImage(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, multipartRequest(t, "/evaluate", pngBytes(t, 64, 32)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.Equal(t, true, env.Metadata["include_llm_analysis"])

	var report engine.EvaluationReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 4, report.Metadata.TotalElements)
	require.NotNil(t, report.HeuristicScores[0].LLMExplanation)
	assert.Equal(t, "narrative for H1", *report.HeuristicScores[0].LLMExplanation)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cls    classifier.Classifier
		req    func(t *testing.T) *http.Request
		status int
		kind   string
	}{
		{
			name:   "empty body",
			cls:    stubClassifier{},
			req:    func(*testing.T) *http.Request { return jsonRequest(http.MethodPost, "/evaluate", `{}`) },
			status: http.StatusBadRequest,
			kind:   "invalid_input",
		},
		{
			name:   "malformed json",
			cls:    stubClassifier{},
			req:    func(*testing.T) *http.Request { return jsonRequest(http.MethodPost, "/evaluate", `{"detection_results":`) },
			status: http.StatusBadRequest,
			kind:   "invalid_input",
		},
		{
			name:   "bad narrative flag",
			cls:    stubClassifier{},
			req:    func(*testing.T) *http.Request { return jsonRequest(http.MethodPost, "/evaluate?include_llm_analysis=maybe", `{}`) },
			status: http.StatusBadRequest,
			kind:   "invalid_input",
		},
		{
			name: "undecodable image",
			cls:  stubClassifier{},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/evaluate", []byte("not an image"))
			},
			status: http.StatusUnprocessableEntity,
			kind:   "detection_failed",
		},
		{
			name: "classifier down",
			cls:  stubClassifier{err: errors.New("connection refused")},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/evaluate", pngBytes(t, 10, 10))
			},
			status: http.StatusServiceUnavailable,
			kind:   "classifier_unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.cls)
			w := serve(f, tt.req(t))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.kind, env.Kind)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestEvaluateLegacy(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	body := `[{"type": "button", "bbox": [0, 0, 10, 10], "interactivity": true, "content": "OK"}]`

	w := serve(f, jsonRequest(http.MethodPost, "/evaluate-legacy/h1", body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var score engine.HeuristicScore
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &score))
	assert.Equal(t, catalogue.HeuristicID("H1"), score.HeuristicID)
	assert.Equal(t, 94, score.Score)
	assert.Nil(t, score.LLMExplanation)

	w = serve(f, jsonRequest(http.MethodPost, "/evaluate-legacy/H11", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f, jsonRequest(http.MethodPost, "/evaluate-legacy/H2", `[{"bbox": [0, 0, 1, 1]}]`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "element without type")
}

func TestListHeuristics(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, httptest.NewRequest(http.MethodGet, "/heuristics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]catalogue.Summary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &summary))
	assert.Len(t, summary, 10)
	assert.Equal(t, "User Control and Freedom", summary["H3"].Name)
	assert.Equal(t, 3, summary["H3"].CriteriaCount)
}

// =============================================================================
// Knowledge Base
// =============================================================================

func TestKnowledgeStatsAndFeedback(t *testing.T) {
	f := newFixture(t, stubClassifier{})

	w := serve(f, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats knowledge.Stats
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &stats))
	assert.Equal(t, 12, stats.TotalEntries)
	assert.True(t, stats.IndexInitialized)

	w = serve(f, jsonRequest(http.MethodPost, "/feedback", `{
		"ui_pattern": "modal without close button",
		"violation_type": "trapped user",
		"expert_rationale": "Users cannot dismiss the dialog",
		"heuristic_id": "H3"
	}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry knowledge.KnowledgeEntry
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entry))
	assert.Equal(t, "kb_013", entry.ID)
	assert.Equal(t, "Expert Feedback - trapped user", entry.Category)

	w = serve(f, jsonRequest(http.MethodPost, "/feedback", `{"ui_pattern": "x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decode(t, w).Kind)
}

// =============================================================================
// Detection
// =============================================================================

func TestDetectElements_Upload(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, multipartRequest(t, "/detect-elements", pngBytes(t, 320, 240)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result detection.DetectionResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Len(t, result.Elements, 4)
	assert.Equal(t, 320, result.Metadata.Width)
	assert.Equal(t, 240, result.Metadata.Height)
}

func TestDetectElements_ImageURL(t *testing.T) {
	img := pngBytes(t, 200, 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	f := newFixture(t, stubClassifier{})
	form := url.Values{"image_url": {srv.URL + "/shot.png"}}
	req := httptest.NewRequest(http.MethodPost, "/detect-elements", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(f, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result detection.DetectionResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 200, result.Metadata.Width)
}

func TestDetectElements_NoInput(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	req := httptest.NewRequest(http.MethodPost, "/detect-elements", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(f, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "image_url")
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t, stubClassifier{})
	w := serve(f, multipartRequest(t, "/analyze", pngBytes(t, 64, 64)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Len(t, resp.GroupedElements[detection.GroupButtons], 1)
	assert.Len(t, resp.GroupedElements[detection.GroupInputs], 1)
	assert.Equal(t, 4, resp.Summary.TotalElements)
	assert.Equal(t, 3, resp.Summary.InteractiveElements)

	w = serve(f, jsonRequest(http.MethodPost, "/analyze", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadImage_TooLarge(t *testing.T) {
	router := gin.New()
	router.POST("/upload", func(c *gin.Context) {
		_, err := readImage(c, 16)
		respondError(c, err)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/upload", bytes.Repeat([]byte("x"), 64)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds 16 bytes")
}
