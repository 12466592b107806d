// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge holds the curated UX knowledge base and the
// keyword-overlap retriever that feeds examples into classifier prompts.
//
// The corpus is small (twelve seed entries plus expert feedback), so
// retrieval is a linear scan. There is no embedding index.
package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("knowledge store closed")

	// ErrInvalidFeedback is returned when feedback fails validation.
	ErrInvalidFeedback = errors.New("invalid expert feedback")
)

// SourceExpertValidation marks entries added through expert feedback.
const SourceExpertValidation = "expert_validation"

// KnowledgeEntry is one curated guideline or expert note.
type KnowledgeEntry struct {
	ID          string                `json:"id"`
	Category    string                `json:"category"`
	Content     string                `json:"content"`
	HeuristicID catalogue.HeuristicID `json:"heuristic_id"`
	Example     string                `json:"example,omitempty"`

	// Set on expert feedback entries only.
	UIPattern     string     `json:"ui_pattern,omitempty"`
	ViolationType string     `json:"violation_type,omitempty"`
	Source        string     `json:"source,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// Feedback is an expert's note on a violation pattern.
type Feedback struct {
	UIPattern     string `json:"ui_pattern" validate:"required"`
	ViolationType string `json:"violation_type" validate:"required"`
	Rationale     string `json:"expert_rationale" validate:"required"`
	HeuristicID   string `json:"heuristic_id" validate:"required"`
}

// Stats summarizes the knowledge base.
type Stats struct {
	TotalEntries     int                           `json:"total_entries"`
	ByHeuristic      map[catalogue.HeuristicID]int `json:"by_heuristic"`
	FeedbackEntries  int                           `json:"feedback_entries"`
	IndexInitialized bool                          `json:"index_initialized"`
}

// Store is the knowledge base boundary used by the evaluation engine and
// the HTTP handlers.
type Store interface {
	// Retrieve ranks entries against query. A nil filter searches all
	// heuristics. topK <= 0 returns no entries.
	Retrieve(ctx context.Context, query string, filter *catalogue.HeuristicID, topK int) ([]KnowledgeEntry, error)

	// AddFeedback appends an expert feedback entry and returns it.
	AddFeedback(ctx context.Context, fb Feedback) (KnowledgeEntry, error)

	// Stats reports entry counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases resources. Further calls fail with ErrStoreClosed.
	Close() error
}
