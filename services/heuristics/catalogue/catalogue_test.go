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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
)

func TestDefault_DefinesAllTenHeuristicsInOrder(t *testing.T) {
	c := Default()

	want := []HeuristicID{"H1", "H2", "H3", "H4", "H5", "H6", "H7", "H8", "H9", "H10"}
	assert.Equal(t, want, c.IDs())
	assert.Equal(t, 10, c.Len())

	for _, id := range c.IDs() {
		def, err := c.Get(id)
		require.NoError(t, err)
		assert.NotEmpty(t, def.Name, id)
		assert.Len(t, def.Criteria, 3, id)
		for _, crit := range def.Criteria {
			for _, sev := range Severities {
				assert.Contains(t, crit.SeverityWeights, sev, crit.ID)
			}
			assert.GreaterOrEqual(t, crit.SeverityWeights[SeverityCritical], crit.SeverityWeights[SeverityCosmetic], crit.ID)
		}
	}
}

func TestDefault_H1Weights(t *testing.T) {
	def, err := Default().Get("H1")
	require.NoError(t, err)

	assert.Equal(t, "Visibility of System Status", def.Name)
	crit, ok := def.Criterion("H1.1")
	require.True(t, ok)
	assert.Equal(t, "Loading states visible", crit.Description)
	assert.Equal(t, 10, crit.Weight(SeverityCritical))
	assert.Equal(t, 5, crit.Weight(SeverityMajor))
	assert.Equal(t, 2, crit.Weight(SeverityMinor))
	assert.Equal(t, 1, crit.Weight(SeverityCosmetic))
}

func TestGet_UnknownHeuristic(t *testing.T) {
	_, err := Default().Get("H11")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownHeuristic)
	assert.ErrorIs(t, err, herrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "H11")
}

func TestGet_ReturnsCopy(t *testing.T) {
	c := Default()
	def, err := c.Get("H2")
	require.NoError(t, err)

	def.Criteria[0].SeverityWeights[SeverityCritical] = 999
	def.Criteria[1].Description = "mutated"

	again, err := c.Get("H2")
	require.NoError(t, err)
	assert.Equal(t, 8, again.Criteria[0].SeverityWeights[SeverityCritical])
	assert.Equal(t, "Natural language instead of technical terms", again.Criteria[1].Description)
}

func TestSummary(t *testing.T) {
	s := Default().Summary()
	require.Len(t, s, 10)
	assert.Equal(t, "User Control and Freedom", s["H3"].Name)
	assert.Equal(t, 3, s["H3"].CriteriaCount)
}

func TestParseHeuristicID(t *testing.T) {
	tests := []struct {
		in      string
		want    HeuristicID
		wantErr bool
	}{
		{"H1", "H1", false},
		{"h3", "H3", false},
		{" h10 ", "H10", false},
		{"H0", "", true},
		{"H11", "", true},
		{"H01", "", true},
		{"X1", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHeuristicID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownHeuristic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("CRITICAL")
	assert.True(t, ok)
	assert.Equal(t, SeverityCritical, sev)

	sev, ok = ParseSeverity("blocker")
	assert.False(t, ok)
	assert.Equal(t, SeverityMinor, sev)
}

func TestCriterion_WeightDefaultsToOne(t *testing.T) {
	crit := Criterion{ID: "H1.9", SeverityWeights: map[Severity]int{SeverityCritical: 4}}
	assert.Equal(t, 1, crit.Weight(SeverityMajor))
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "version: 2\nheuristics: []\n"},
		{"bad id", `heuristics:
  - id: H12
    name: N
    description: D
    criteria: []
`},
		{"duplicate", `heuristics:
  - {id: H1, name: N, description: D}
  - {id: H1, name: N, description: D}
`},
		{"foreign criterion", `heuristics:
  - id: H1
    name: N
    description: D
    criteria:
      - {id: H2.1, description: x, severity_weights: {minor: 1}}
`},
		{"negative weight", `heuristics:
  - id: H1
    name: N
    description: D
    criteria:
      - {id: H1.1, description: x, severity_weights: {minor: -1}}
`},
		{"unknown severity", `heuristics:
  - id: H1
    name: N
    description: D
    criteria:
      - {id: H1.1, description: x, severity_weights: {blocker: 3}}
`},
		{"unknown field", `heuristics:
  - {id: H1, name: N, description: D, colour: red}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalogue)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`heuristics:
  - id: H3
    name: User Control and Freedom
    description: Emergency exits.
    criteria:
      - {id: H3.1, description: Undo, severity_weights: {critical: 10, major: 7, minor: 3, cosmetic: 1}}
`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []HeuristicID{"H3"}, c.IDs())
	assert.True(t, c.Has("H3"))
	assert.False(t, c.Has("H1"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
