// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier asks an LLM which heuristic criteria a set of UI
// elements violates, and turns its loosely structured answer into typed
// violations.
//
// The LLM is treated as an untrusted boundary. Its output is parsed into a
// tagged variant (array, object with a known key, unrecognized); anything
// that cannot be read yields zero violations and a
// herrors.KindMalformedClassifierOutput error that callers recover from.
// A failed or timed-out call is herrors.KindClassifierUnavailable and is
// never reported as an empty success.
package classifier

import "github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"

// Violation is one reported heuristic violation.
type Violation struct {
	HeuristicID      catalogue.HeuristicID `json:"heuristic_id"`
	CriterionID      string                `json:"criterion_id"`
	Severity         catalogue.Severity    `json:"severity"`
	Description      string                `json:"description"`
	AffectedElements []string              `json:"affected_elements"`
	Recommendation   string                `json:"recommendation"`
}
