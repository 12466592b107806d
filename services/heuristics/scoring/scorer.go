// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring reduces violation lists to deterministic 0-100 scores.
package scoring

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
)

// MaxScore is the score of a heuristic with no matched violations.
const MaxScore = 100

// NoCriteriaExplanation is returned for heuristics absent from the catalogue.
const NoCriteriaExplanation = "No criteria defined"

// Scorer computes heuristic scores against a catalogue.
//
// # Thread Safety
//
// Stateless apart from the immutable catalogue; safe for concurrent use.
type Scorer struct {
	catalogue *catalogue.Catalogue
}

// New creates a Scorer.
func New(c *catalogue.Catalogue) *Scorer {
	return &Scorer{catalogue: c}
}

// Score computes the score and explanation for violations of heuristicID.
//
// # Description
//
// Each violation whose CriterionID exactly matches a criterion of the
// heuristic deducts that criterion's weight for the violation's severity
// (1 if the criterion defines no weight for it). Violations naming any
// other criterion are skipped without deduction. The score is
// max(0, 100 - total deduction).
//
// # Outputs
//
//   - int: Score in [0, 100]. An unknown heuristic scores 100.
//   - string: "Score {score}/100 - {N} violations: " followed by
//     "{severity}: {description}" for matched violations joined by "; ".
//     N counts every violation passed in, matched or not.
//
// # Limitations
//
//   - Criterion matching is case sensitive.
func (s *Scorer) Score(violations []classifier.Violation, heuristicID catalogue.HeuristicID) (int, string) {
	def, err := s.catalogue.Get(heuristicID)
	if err != nil {
		return MaxScore, NoCriteriaExplanation
	}

	deduction := 0
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		crit, ok := def.Criterion(v.CriterionID)
		if !ok {
			continue
		}
		deduction += crit.Weight(v.Severity)
		parts = append(parts, fmt.Sprintf("%s: %s", v.Severity, v.Description))
	}

	score := max(0, MaxScore-deduction)
	explanation := fmt.Sprintf("Score %d/%d - %d violations: ", score, MaxScore, len(violations)) + strings.Join(parts, "; ")
	return score, explanation
}
