// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalogue

import (
	"fmt"
	"strconv"
	"strings"
)

// HeuristicID identifies one of Nielsen's heuristics, "H1" through "H10".
type HeuristicID string

// ParseHeuristicID normalizes s ("h3", " H3 ") to a HeuristicID.
//
// # Outputs
//
//   - HeuristicID: Upper-cased id.
//   - error: ErrUnknownHeuristic when s is not H1..H10.
func ParseHeuristicID(s string) (HeuristicID, error) {
	id := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(id, "H") {
		return "", fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n < 1 || n > 10 || strconv.Itoa(n) != id[1:] {
		return "", fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
	}
	return HeuristicID(id), nil
}

// Severity is the closed four-level violation severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityCosmetic Severity = "cosmetic"
)

// Severities lists all levels from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeverityCosmetic}

// ParseSeverity maps s case-insensitively onto a Severity. The boolean is
// false when s names no level, in which case SeverityMinor is returned.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical, true
	case SeverityMajor:
		return SeverityMajor, true
	case SeverityMinor:
		return SeverityMinor, true
	case SeverityCosmetic:
		return SeverityCosmetic, true
	default:
		return SeverityMinor, false
	}
}

// Criterion is one measurable check within a heuristic.
type Criterion struct {
	// ID is "{heuristic}.{n}", e.g. "H1.2".
	ID string `yaml:"id" json:"id" validate:"required"`

	Description string `yaml:"description" json:"description" validate:"required"`

	// Evaluation tells the classifier what to look for.
	Evaluation string `yaml:"evaluation" json:"evaluation"`

	// SeverityWeights are the points deducted per matched violation.
	SeverityWeights map[Severity]int `yaml:"severity_weights" json:"severity_weights" validate:"required,dive,keys,oneof=critical major minor cosmetic,endkeys,gte=0"`
}

// Weight returns the deduction for sev, or 1 when sev has no entry.
func (c Criterion) Weight(sev Severity) int {
	if w, ok := c.SeverityWeights[sev]; ok {
		return w
	}
	return 1
}

// HeuristicDefinition is one heuristic with its criteria.
type HeuristicDefinition struct {
	ID          HeuristicID `yaml:"id" json:"id" validate:"required"`
	Name        string      `yaml:"name" json:"name" validate:"required"`
	Description string      `yaml:"description" json:"description" validate:"required"`
	Criteria    []Criterion `yaml:"criteria" json:"criteria" validate:"dive"`
}

// Criterion looks up a criterion by exact id.
func (d HeuristicDefinition) Criterion(id string) (Criterion, bool) {
	for _, c := range d.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// Summary is the listing view of a heuristic.
type Summary struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	CriteriaCount int    `json:"criteria_count"`
}
