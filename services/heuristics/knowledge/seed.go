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

// SeedEntries returns the curated guidelines shipped with the service,
// at least one per heuristic.
func SeedEntries() []KnowledgeEntry {
	return []KnowledgeEntry{
		{
			ID:          "kb_001",
			Category:    "Button Feedback",
			Content:     "Buttons should provide clear visual feedback on hover, active, and disabled states. This helps users understand interactability and system response.",
			HeuristicID: "H1",
			Example:     "A primary button changes to darker shade on hover and shows pressed state on click",
		},
		{
			ID:          "kb_002",
			Category:    "Error Prevention",
			Content:     "Destructive actions like delete should always be preceded by confirmation dialogs to prevent accidental data loss.",
			HeuristicID: "H3",
			Example:     "Delete button triggers modal: 'Are you sure you want to delete this item? This action cannot be undone.'",
		},
		{
			ID:          "kb_003",
			Category:    "Form Labels",
			Content:     "All input fields must have visible labels or placeholders. Placeholders should complement, not replace labels.",
			HeuristicID: "H1",
			Example:     "Email field has label 'Email Address' and placeholder 'you@example.com'",
		},
		{
			ID:          "kb_004",
			Category:    "User-Friendly Language",
			Content:     "Use action-oriented, conversational language that matches user expectations. Avoid technical jargon in user-facing text.",
			HeuristicID: "H2",
			Example:     "Use 'Send Message' instead of 'Submit Payload' or 'Create Account' instead of 'Register User'",
		},
		{
			ID:          "kb_005",
			Category:    "Navigation",
			Content:     "Always provide a clear way to exit or cancel actions. Users should never feel trapped in the interface.",
			HeuristicID: "H3",
			Example:     "Multi-step wizard has Back button and Cancel option on all steps",
		},
		{
			ID:          "kb_006",
			Category:    "Consistency",
			Content:     "Users should not have to wonder whether different words, situations, or actions mean the same thing. Follow platform conventions.",
			HeuristicID: "H4",
			Example:     "Use standard platform icons (e.g., magnifying glass for search) and keep terminology consistent (e.g., don't mix 'Delete' and 'Remove')",
		},
		{
			ID:          "kb_007",
			Category:    "Error Prevention",
			Content:     "Prevent errors from occurring in the first place by using constraints and good defaults.",
			HeuristicID: "H5",
			Example:     "Date picker disables past dates for flight departure; numeric fields reject alphabetic characters",
		},
		{
			ID:          "kb_008",
			Category:    "Recognition over Recall",
			Content:     "Minimize the user's memory load by making objects, actions, and options visible. The user should not have to remember information from one part of the dialogue to another.",
			HeuristicID: "H6",
			Example:     "Search bar shows recent searches; Menu items are visible or easily accessible, not hidden deep in sub-menus",
		},
		{
			ID:          "kb_009",
			Category:    "Flexibility and Efficiency",
			Content:     "Accelerators, unseen by the novice user, may often speed up the interaction for the expert user.",
			HeuristicID: "H7",
			Example:     "Support keyboard shortcuts (Ctrl+S to save) and allow users to customize their dashboard layout",
		},
		{
			ID:          "kb_010",
			Category:    "Aesthetic and Minimalist Design",
			Content:     "Dialogues should not contain information which is irrelevant or rarely needed. Every extra unit of information competes with the relevant units.",
			HeuristicID: "H8",
			Example:     "Remove rarely used metadata from the main table view; use ample whitespace to group related elements",
		},
		{
			ID:          "kb_011",
			Category:    "Error Recovery",
			Content:     "Error messages should be expressed in plain language (no codes), precisely indicate the problem, and constructively suggest a solution.",
			HeuristicID: "H9",
			Example:     "Instead of 'Error 503', show 'Connection failed. Please check your internet and Try Again'",
		},
		{
			ID:          "kb_012",
			Category:    "Help and Documentation",
			Content:     "Even though it is better if the system can be used without documentation, it may be necessary to provide help and documentation.",
			HeuristicID: "H10",
			Example:     "Provide contextual tooltips for complex settings and a searchable Help Center",
		},
	}
}
