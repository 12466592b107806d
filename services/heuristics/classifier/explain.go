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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/llm"
)

// Explainer writes a short narrative for a scored heuristic.
type Explainer interface {
	Explain(ctx context.Context, def catalogue.HeuristicDefinition, score int, violations []Violation) (string, error)
}

// LLMExplainer implements Explainer with a second, free-text LLM call.
type LLMExplainer struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewLLMExplainer creates an explainer. timeout <= 0 uses 30s.
func NewLLMExplainer(client llm.LLMClient, timeout time.Duration) *LLMExplainer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMExplainer{client: client, timeout: timeout}
}

// Explain implements Explainer.
func (e *LLMExplainer) Explain(ctx context.Context, def catalogue.HeuristicDefinition, score int, violations []Violation) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The interface scored %d/100 on the heuristic %q (%s).\n", score, def.Name, def.Description)
	if len(violations) == 0 {
		sb.WriteString("No violations were found.\n")
	} else {
		sb.WriteString("Violations found:\n")
		for _, v := range violations {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", v.Severity, v.CriterionID, v.Description)
		}
	}
	sb.WriteString("\nIn two or three sentences for a product team, explain what this score means and what to fix first.")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.client.Generate(ctx, sb.String(), llm.GenerationParams{
		Temperature:  llm.Float32(0.5),
		MaxTokens:    llm.Int(300),
		SystemPrompt: "You are a UX evaluation expert who writes concise, actionable summaries.",
	})
	if err != nil {
		return "", fmt.Errorf("narrative for %s: %w", def.ID, err)
	}
	return strings.TrimSpace(out), nil
}

var _ Explainer = (*LLMExplainer)(nil)
