// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianHeuristics/pkg/ux"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
)

const barWidth = 20

func renderReport(p *ux.Printer, report *engine.EvaluationReport) {
	p.Title("Heuristic evaluation " + report.ID)
	p.KeyValue("Overall", p.ScoreBar(report.OverallScore, 100, barWidth))
	p.KeyValue("Violations", report.TotalViolations)
	p.KeyValue("Critical issues", report.CriticalIssues)
	p.KeyValue("Elements", report.Metadata.TotalElements)
	if report.Metadata.Model != "" {
		p.KeyValue("Model", report.Metadata.Model)
	}
	if report.Metadata.HeuristicsUnavailable > 0 {
		p.Warning(fmt.Sprintf("%d of %d heuristics could not be evaluated",
			report.Metadata.HeuristicsUnavailable,
			report.Metadata.HeuristicsEvaluated+report.Metadata.HeuristicsUnavailable))
	}

	for _, hs := range report.HeuristicScores {
		renderHeuristicScore(p, hs)
	}
}

func renderHeuristicScore(p *ux.Printer, hs engine.HeuristicScore) {
	title := fmt.Sprintf("%s  %s", hs.HeuristicID, hs.Name)
	if hs.Status == engine.StatusUnavailable {
		p.Box(title, "unavailable: "+hs.Error)
		return
	}

	var b strings.Builder
	b.WriteString(p.ScoreBar(float64(hs.Score), float64(hs.MaxScore), barWidth))
	b.WriteString("\n")
	b.WriteString(hs.Explanation)
	for _, v := range hs.Violations {
		fmt.Fprintf(&b, "\n  - [%s] %s %s", v.Severity, v.CriterionID, v.Description)
		if v.Recommendation != "" {
			fmt.Fprintf(&b, "\n    fix: %s", v.Recommendation)
		}
	}
	for _, w := range hs.Warnings {
		fmt.Fprintf(&b, "\n  ! %s", w)
	}
	if hs.LLMExplanation != nil {
		b.WriteString("\n\n")
		b.WriteString(*hs.LLMExplanation)
	}
	p.Box(title, b.String())
}

func renderCatalogue(p *ux.Printer, cat *catalogue.Catalogue) {
	p.Title(fmt.Sprintf("%d heuristics", cat.Len()))
	summary := cat.Summary()
	for _, id := range cat.IDs() {
		s := summary[id]
		p.KeyValue(string(id), fmt.Sprintf("%s (%d criteria)", s.Name, s.CriteriaCount))
		p.Muted("    " + s.Description)
	}
}

func renderStats(p *ux.Printer, stats knowledge.Stats) {
	p.Title("Knowledge base")
	p.KeyValue("Entries", stats.TotalEntries)
	p.KeyValue("Feedback entries", stats.FeedbackEntries)
	p.KeyValue("Index initialized", stats.IndexInitialized)

	ids := make([]string, 0, len(stats.ByHeuristic))
	for id := range stats.ByHeuristic {
		ids = append(ids, string(id))
	}
	sort.Slice(ids, func(i, j int) bool {
		return heuristicOrder(ids[i]) < heuristicOrder(ids[j])
	})
	for _, id := range ids {
		p.KeyValue("  "+id, stats.ByHeuristic[catalogue.HeuristicID(id)])
	}
}

// heuristicOrder sorts H2 before H10.
func heuristicOrder(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, "H%d", &n); err != nil {
		return 1 << 30
	}
	return n
}
