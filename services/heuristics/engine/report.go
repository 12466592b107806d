// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"math"
	"time"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/scoring"
)

// Evaluation metadata constants.
const (
	EvaluationVersion = "2.0.0-llm"
	EvaluationMethod  = "llm-based"
)

// Status is the outcome of one heuristic evaluation.
type Status string

const (
	// StatusScored means the classifier answered and the score is valid.
	StatusScored Status = "scored"

	// StatusUnavailable means the classifier failed; the heuristic carries
	// no score and is excluded from the overall mean.
	StatusUnavailable Status = "unavailable"
)

// HeuristicScore is the result for one heuristic.
type HeuristicScore struct {
	HeuristicID    catalogue.HeuristicID  `json:"heuristic_id"`
	Name           string                 `json:"name"`
	Status         Status                 `json:"status"`
	Score          int                    `json:"score"`
	MaxScore       int                    `json:"max_score"`
	Percentage     float64                `json:"percentage"`
	Violations     []classifier.Violation `json:"violations"`
	Explanation    string                 `json:"explanation"`
	LLMExplanation *string                `json:"llm_explanation"`

	// Error describes why the heuristic is unavailable.
	Error string `json:"error,omitempty"`

	// Warnings lists recovered degradations, such as malformed classifier
	// output or a knowledge store failure.
	Warnings []string `json:"warnings,omitempty"`
}

func scoredResult(def catalogue.HeuristicDefinition, score int, explanation string, violations []classifier.Violation) HeuristicScore {
	return HeuristicScore{
		HeuristicID: def.ID,
		Name:        def.Name,
		Status:      StatusScored,
		Score:       score,
		MaxScore:    scoring.MaxScore,
		Percentage:  round2(float64(score) / scoring.MaxScore * 100),
		Violations:  violations,
		Explanation: explanation,
	}
}

func unavailableResult(def catalogue.HeuristicDefinition, err error) HeuristicScore {
	return HeuristicScore{
		HeuristicID: def.ID,
		Name:        def.Name,
		Status:      StatusUnavailable,
		MaxScore:    scoring.MaxScore,
		Violations:  []classifier.Violation{},
		Explanation: "Heuristic could not be evaluated",
		Error:       err.Error(),
	}
}

// Metadata describes how a report was produced.
type Metadata struct {
	EvaluationVersion     string `json:"evaluation_version"`
	EvaluationMethod      string `json:"evaluation_method"`
	TotalElements         int    `json:"total_elements"`
	HeuristicsEvaluated   int    `json:"heuristics_evaluated"`
	HeuristicsUnavailable int    `json:"heuristics_unavailable"`
	Model                 string `json:"model,omitempty"`
	DurationMS            int64  `json:"duration_ms"`
}

// EvaluationReport aggregates all heuristic scores for one interface.
type EvaluationReport struct {
	ID              string           `json:"id"`
	OverallScore    float64          `json:"overall_score"`
	HeuristicScores []HeuristicScore `json:"heuristic_scores"`
	TotalViolations int              `json:"total_violations"`
	CriticalIssues  int              `json:"critical_issues"`
	Metadata        Metadata         `json:"evaluation_metadata"`
	Timestamp       time.Time        `json:"timestamp"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
