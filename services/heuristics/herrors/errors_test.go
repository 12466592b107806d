// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package herrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := fmt.Errorf("heuristic H2: %w", New(KindClassifierUnavailable, "classify", cause))

	assert.ErrorIs(t, err, ErrClassifierUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindClassifierUnavailable, KindOf(err))
}

func TestError_MessageEchoesInput(t *testing.T) {
	err := Invalid("get_heuristic", "H11", errors.New("unknown heuristic"))
	assert.Equal(t, `get_heuristic: invalid_input "H11": unknown heuristic`, err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", Invalid("op", "x", nil), http.StatusBadRequest},
		{"detection", New(KindDetectionFailed, "detect", nil), http.StatusUnprocessableEntity},
		{"classifier", New(KindClassifierUnavailable, "classify", nil), http.StatusServiceUnavailable},
		{"knowledge", New(KindKnowledgeStoreUnavailable, "retrieve", nil), http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "detection_failed", KindDetectionFailed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
