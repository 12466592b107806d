// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package herrors defines the failure taxonomy shared by the heuristic
// evaluation pipeline and its HTTP surface.
//
// Every pipeline failure is an *Error carrying a Kind. Callers branch on
// the kind with errors.Is against the sentinels below, and the HTTP layer
// maps kinds onto status codes with HTTPStatus.
package herrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindUnknown is never produced by the pipeline itself.
	KindUnknown Kind = iota

	// KindInvalidInput marks an unknown heuristic id, a malformed element
	// list or an unreadable upload. The offending input is echoed.
	KindInvalidInput

	// KindDetectionFailed marks a detector error or timeout.
	KindDetectionFailed

	// KindClassifierUnavailable marks a classifier call failure or timeout.
	KindClassifierUnavailable

	// KindMalformedClassifierOutput marks classifier output that could not
	// be interpreted. It is recovered locally as zero violations.
	KindMalformedClassifierOutput

	// KindKnowledgeStoreUnavailable marks a knowledge store failure.
	// Evaluation continues with empty retrieved context.
	KindKnowledgeStoreUnavailable
)

// Sentinel errors, one per kind, for errors.Is.
var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrDetectionFailed           = errors.New("element detection failed")
	ErrClassifierUnavailable     = errors.New("violation classifier unavailable")
	ErrMalformedClassifierOutput = errors.New("malformed classifier output")
	ErrKnowledgeStoreUnavailable = errors.New("knowledge store unavailable")
)

// String returns the snake_case name used in API error bodies.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDetectionFailed:
		return "detection_failed"
	case KindClassifierUnavailable:
		return "classifier_unavailable"
	case KindMalformedClassifierOutput:
		return "malformed_classifier_output"
	case KindKnowledgeStoreUnavailable:
		return "knowledge_store_unavailable"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindDetectionFailed:
		return ErrDetectionFailed
	case KindClassifierUnavailable:
		return ErrClassifierUnavailable
	case KindMalformedClassifierOutput:
		return ErrMalformedClassifierOutput
	case KindKnowledgeStoreUnavailable:
		return ErrKnowledgeStoreUnavailable
	default:
		return nil
	}
}

// Error is a classified pipeline failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op names the operation that failed, e.g. "classify".
	Op string

	// Input echoes the offending input for KindInvalidInput. Optional.
	Input string

	// Err is the underlying cause. May be nil.
	Err error
}

// New creates an *Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid creates a KindInvalidInput error echoing input.
func Invalid(op, input string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Input: input, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Input != "" {
		msg += fmt.Sprintf(" %q", e.Input)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err onto the status code returned by the API.
//
//   - invalid input: 400
//   - detection failed: 422
//   - classifier or knowledge store unavailable: 503
//   - anything else: 500
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDetectionFailed, KindMalformedClassifierOutput:
		return http.StatusUnprocessableEntity
	case KindClassifierUnavailable, KindKnowledgeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
