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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
)

// promptElement is the minimal, stable field set sent to the model.
type promptElement struct {
	Type          string     `json:"type"`
	BBox          [4]float64 `json:"bbox"`
	Interactivity bool       `json:"interactivity"`
	Content       string     `json:"content"`
}

// SerializeElements renders elements as indented JSON with only type,
// bbox, interactivity and content, in input order.
func SerializeElements(elements []detection.UIElement) (string, error) {
	out := make([]promptElement, len(elements))
	for i, e := range elements {
		out[i] = promptElement{
			Type:          e.ElementType,
			BBox:          [4]float64{e.BBox.X1, e.BBox.Y1, e.BBox.X2, e.BBox.Y2},
			Interactivity: e.Interactive,
			Content:       e.Text,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize elements: %w", err)
	}
	return string(data), nil
}

// BuildPrompt assembles the classification prompt for one heuristic.
func BuildPrompt(def catalogue.HeuristicDefinition, elementsJSON string, examples []knowledge.KnowledgeEntry) string {
	var sb strings.Builder

	sb.WriteString("You are a UX evaluation expert.\n\n")
	fmt.Fprintf(&sb, "Heuristic: %s\n", def.Name)
	fmt.Fprintf(&sb, "Description: %s\n\n", def.Description)

	sb.WriteString("Criteria:\n")
	for _, c := range def.Criteria {
		fmt.Fprintf(&sb, "- %s: %s", c.ID, c.Description)
		if c.Evaluation != "" {
			fmt.Fprintf(&sb, " (%s)", c.Evaluation)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nUI Elements:\n")
	sb.WriteString(elementsJSON)
	sb.WriteString("\n")

	if len(examples) > 0 {
		sb.WriteString("\nRelevant examples:\n")
		for _, ex := range examples {
			fmt.Fprintf(&sb, "- %s\n", ex.Content)
		}
	}

	sb.WriteString("\nReturn a JSON object of the form ")
	sb.WriteString(`{"violations": [{"criterion_id": "<one of the criteria ids above>", "severity": "critical|major|minor|cosmetic", "description": "...", "affected_elements": ["..."], "recommendation": "..."}]}`)
	sb.WriteString(". Return an empty list when nothing is violated.\n")
	return sb.String()
}
