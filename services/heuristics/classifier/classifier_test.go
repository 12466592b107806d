// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/llm"
)

// mockLLM records the last call and returns a canned answer.
type mockLLM struct {
	response   string
	err        error
	block      bool
	lastPrompt string
	lastParams llm.GenerationParams
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.lastPrompt = prompt
	m.lastParams = params
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.response, m.err
}

func h1(t *testing.T) catalogue.HeuristicDefinition {
	t.Helper()
	def, err := catalogue.Default().Get("H1")
	require.NoError(t, err)
	return def
}

// =============================================================================
// Prompt
// =============================================================================

func TestSerializeElements_StableFieldSet(t *testing.T) {
	out, err := SerializeElements(detection.LoginFormFixture()[:1])
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Len(t, decoded[0], 4)
	assert.Equal(t, "button", decoded[0]["type"])
	assert.Equal(t, []any{100.0, 200.0, 220.0, 240.0}, decoded[0]["bbox"])
	assert.Equal(t, true, decoded[0]["interactivity"])
	assert.Equal(t, "Submit", decoded[0]["content"])
	assert.Contains(t, out, "\n  ")
}

func TestBuildPrompt(t *testing.T) {
	def := h1(t)
	examples := []knowledge.KnowledgeEntry{{ID: "kb_001", Content: "Buttons should provide clear visual feedback"}}

	prompt := BuildPrompt(def, `[{"type":"button"}]`, examples)

	assert.Contains(t, prompt, "Heuristic: Visibility of System Status")
	assert.Contains(t, prompt, "Description: The design should always keep users informed")
	assert.Contains(t, prompt, "- H1.1: Loading states visible")
	assert.Contains(t, prompt, "- H1.3: Progress indicators for multi-step processes")
	assert.Contains(t, prompt, `[{"type":"button"}]`)
	assert.Contains(t, prompt, "Relevant examples:\n- Buttons should provide clear visual feedback")
	assert.Contains(t, prompt, `"violations"`)

	assert.NotContains(t, BuildPrompt(def, "[]", nil), "Relevant examples")
}

// =============================================================================
// Parsing
// =============================================================================

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", "Here you go: [1,2] thanks", `[1,2]`},
		{"no json", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseResponse_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantShape Shape
		wantLen   int
		wantErr   bool
	}{
		{"object with violations", `{"violations":[{"criterion_id":"H1.1","severity":"major","description":"no spinner"}]}`, ShapeObjectWithKnownKey, 1, false},
		{"object with issues", `{"issues":[{"criterion_id":"H1.2"},{"criterion_id":"H1.3"}]}`, ShapeObjectWithKnownKey, 2, false},
		{"empty list", `{"violations":[]}`, ShapeObjectWithKnownKey, 0, false},
		{"array", `[{"criterion_id":"H1.1"}]`, ShapeArray, 1, false},
		{"array skips scalars", `[{"criterion_id":"H1.1"}, "junk", 3]`, ShapeArray, 1, false},
		{"top-level string", `"no violations found"`, ShapeUnrecognized, 0, true},
		{"string holding an array", `"[{}]"`, ShapeUnrecognized, 0, true},
		{"prose around scalar array", `see [1,2]`, ShapeUnrecognized, 0, true},
		{"scalar list under known key", `{"violations":[1,"x"]}`, ShapeUnrecognized, 0, true},
		{"prose around object", `Here you go: {"violations":[{"criterion_id":"H1.1"}]} thanks`, ShapeObjectWithKnownKey, 1, false},
		{"fenced array", "```json\n[{\"criterion_id\":\"H1.1\"}]\n```", ShapeArray, 1, false},
		{"unknown object", `{"verdict":"fine"}`, ShapeUnrecognized, 0, true},
		{"violations not a list", `{"violations":"none"}`, ShapeUnrecognized, 0, true},
		{"invalid json", `{"violations":[`, ShapeUnrecognized, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shape, err := ParseResponse(tt.raw, "H1")
			assert.Equal(t, tt.wantShape, shape)
			assert.Len(t, got, tt.wantLen)
			assert.NotNil(t, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnrecognizedShape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseResponse_FieldDefaults(t *testing.T) {
	raw := `{"violations":[
		{"description":"missing id"},
		{"criterion_id":"H1.2","severity":"CRITICAL","affected_elements":"Submit button","recommendation":"add a spinner"},
		{"criterion_id":"H1.3","severity":"blocker","affected_elements":["a", 2]}
	]}`
	got, _, err := ParseResponse(raw, "H1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "H1.0", got[0].CriterionID)
	assert.Equal(t, catalogue.SeverityMinor, got[0].Severity)
	assert.Equal(t, []string{}, got[0].AffectedElements)
	assert.Equal(t, catalogue.HeuristicID("H1"), got[0].HeuristicID)

	assert.Equal(t, catalogue.SeverityCritical, got[1].Severity)
	assert.Equal(t, []string{"Submit button"}, got[1].AffectedElements)
	assert.Equal(t, "add a spinner", got[1].Recommendation)

	assert.Equal(t, catalogue.SeverityMinor, got[2].Severity)
	assert.Equal(t, []string{"a", "2"}, got[2].AffectedElements)
}

// =============================================================================
// LLMClassifier
// =============================================================================

func TestLLMClassifier_Classify(t *testing.T) {
	mock := &mockLLM{response: `{"violations":[{"criterion_id":"H1.1","severity":"major","description":"No loading state","affected_elements":["Submit"]}]}`}
	c := NewLLMClassifier(mock, Config{})

	got, err := c.Classify(context.Background(), h1(t), detection.LoginFormFixture(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "H1.1", got[0].CriterionID)
	assert.Equal(t, catalogue.SeverityMajor, got[0].Severity)

	assert.True(t, mock.lastParams.JSONMode)
	assert.Equal(t, "Respond only with valid JSON.", mock.lastParams.SystemPrompt)
	require.NotNil(t, mock.lastParams.Temperature)
	assert.InDelta(t, 0.3, *mock.lastParams.Temperature, 1e-6)
	assert.True(t, strings.Contains(mock.lastPrompt, "Forgot Password?"))
}

func TestLLMClassifier_CallFailureIsUnavailable(t *testing.T) {
	c := NewLLMClassifier(&mockLLM{err: errors.New("connection refused")}, Config{})

	got, err := c.Classify(context.Background(), h1(t), nil, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, herrors.ErrClassifierUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLLMClassifier_TimeoutIsUnavailable(t *testing.T) {
	c := NewLLMClassifier(&mockLLM{block: true}, Config{Timeout: 20 * time.Millisecond})

	got, err := c.Classify(context.Background(), h1(t), nil, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, herrors.ErrClassifierUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLLMClassifier_MalformedOutputIsRecoverable(t *testing.T) {
	c := NewLLMClassifier(&mockLLM{response: `"everything looks fine"`}, Config{})

	got, err := c.Classify(context.Background(), h1(t), nil, nil)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.ErrorIs(t, err, herrors.ErrMalformedClassifierOutput)
	assert.Equal(t, herrors.KindMalformedClassifierOutput, herrors.KindOf(err))
}

func TestLLMClassifier_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, JSON: true, Writer: &buf})
	c := NewLLMClassifier(&mockLLM{response: `"[{}]"`}, Config{Logger: logger})

	got, err := c.Classify(context.Background(), h1(t), nil, nil)
	assert.Empty(t, got)
	assert.ErrorIs(t, err, herrors.ErrMalformedClassifierOutput)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Classifier output could not be interpreted"`)
	assert.Contains(t, out, `"component":"classifier"`)
	assert.Contains(t, out, `"heuristic_id":"H1"`)
}

// =============================================================================
// LLMExplainer
// =============================================================================

func TestLLMExplainer_Explain(t *testing.T) {
	mock := &mockLLM{response: "  Users cannot tell when the form is submitting.  "}
	e := NewLLMExplainer(mock, 0)

	out, err := e.Explain(context.Background(), h1(t), 95, []Violation{
		{CriterionID: "H1.1", Severity: catalogue.SeverityMajor, Description: "No loading state"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Users cannot tell when the form is submitting.", out)
	assert.Contains(t, mock.lastPrompt, "95/100")
	assert.Contains(t, mock.lastPrompt, "[major] H1.1: No loading state")
	assert.False(t, mock.lastParams.JSONMode)
}

func TestLLMExplainer_Error(t *testing.T) {
	_, err := NewLLMExplainer(&mockLLM{err: errors.New("boom")}, 0).Explain(context.Background(), h1(t), 100, nil)
	assert.Error(t, err)
}
