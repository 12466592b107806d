// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
)

// Relevance points awarded by Rank.
const (
	scoreHeuristicMatch = 3
	scoreContentMatch   = 2
	scoreCategoryMatch  = 1
)

// Rank selects the entries most relevant to query.
//
// # Description
//
// With a filter, only entries for that heuristic are considered, and each
// of them earns +3. Every candidate earns +2 if any lowercase
// whitespace-separated query token is a substring of its lowercase
// content, and +1 if any token is a substring of its lowercase category.
// Entries scoring 0 are dropped. The rest are stable-sorted by score
// descending, so equal scores keep corpus order.
//
// # Inputs
//
//   - entries: Corpus in insertion order. Not modified.
//   - query: Free text. An empty query matches nothing by keyword.
//   - filter: Optional heuristic restriction.
//   - topK: Maximum entries returned. topK <= 0 returns none.
//
// # Outputs
//
//   - []KnowledgeEntry: At most topK entries, never nil.
func Rank(entries []KnowledgeEntry, query string, filter *catalogue.HeuristicID, topK int) []KnowledgeEntry {
	if topK <= 0 {
		return []KnowledgeEntry{}
	}
	tokens := strings.Fields(strings.ToLower(query))

	type scored struct {
		entry KnowledgeEntry
		score int
	}
	var candidates []scored
	for _, e := range entries {
		if filter != nil && e.HeuristicID != *filter {
			continue
		}
		score := 0
		if filter != nil {
			score += scoreHeuristicMatch
		}
		if containsAny(strings.ToLower(e.Content), tokens) {
			score += scoreContentMatch
		}
		if containsAny(strings.ToLower(e.Category), tokens) {
			score += scoreCategoryMatch
		}
		if score > 0 {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	n := min(topK, len(candidates))
	out := make([]KnowledgeEntry, n)
	for i := range n {
		out[i] = candidates[i].entry
	}
	return out
}

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
