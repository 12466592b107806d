// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalogue holds the immutable table of heuristic definitions.
//
// The ten Nielsen heuristics are embedded in nielsen.yaml. A deployment may
// load an alternative table from disk with LoadFile; either way the
// Catalogue is built once at start-up and only read afterwards.
//
// # Thread Safety
//
// A *Catalogue is immutable after Load returns and is safe for concurrent
// use. Returned definitions are deep copies.
package catalogue

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
)

//go:embed nielsen.yaml
var nielsenYAML string

var (
	// ErrUnknownHeuristic is returned for ids not present in the catalogue.
	ErrUnknownHeuristic = errors.New("unknown heuristic")

	// ErrInvalidCatalogue is returned when a catalogue file fails validation.
	ErrInvalidCatalogue = errors.New("invalid heuristic catalogue")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type catalogueFile struct {
	Version    int                   `yaml:"version"`
	Heuristics []HeuristicDefinition `yaml:"heuristics"`
}

// Catalogue is the loaded, read-only heuristic table.
type Catalogue struct {
	order []HeuristicID
	byID  map[HeuristicID]HeuristicDefinition
}

// Default returns the embedded Nielsen catalogue. It panics only if the
// embedded file is broken, which the package tests rule out.
func Default() *Catalogue {
	c, err := Load(strings.NewReader(nielsenYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded heuristic catalogue: %v", err))
	}
	return c
}

// LoadFile loads a catalogue from a YAML file.
func LoadFile(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a catalogue.
//
// # Description
//
// Decodes YAML, validates struct constraints (required fields, known
// severity keys, non-negative weights), then checks that heuristic ids are
// unique and well formed and that every criterion id is prefixed by its
// heuristic's id.
//
// # Outputs
//
//   - *Catalogue: Heuristics in file order.
//   - error: Wraps ErrInvalidCatalogue on validation failure.
func Load(r io.Reader) (*Catalogue, error) {
	var file catalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalogue, err)
	}
	if len(file.Heuristics) == 0 {
		return nil, fmt.Errorf("%w: no heuristics defined", ErrInvalidCatalogue)
	}

	c := &Catalogue{byID: make(map[HeuristicID]HeuristicDefinition, len(file.Heuristics))}
	for _, def := range file.Heuristics {
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("%w: heuristic %q: %v", ErrInvalidCatalogue, def.ID, err)
		}
		id, err := ParseHeuristicID(string(def.ID))
		if err != nil || id != def.ID {
			return nil, fmt.Errorf("%w: bad heuristic id %q", ErrInvalidCatalogue, def.ID)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate heuristic %q", ErrInvalidCatalogue, id)
		}
		seen := make(map[string]bool, len(def.Criteria))
		for _, crit := range def.Criteria {
			if !strings.HasPrefix(crit.ID, string(id)+".") {
				return nil, fmt.Errorf("%w: criterion %q does not belong to %s", ErrInvalidCatalogue, crit.ID, id)
			}
			if seen[crit.ID] {
				return nil, fmt.Errorf("%w: duplicate criterion %q", ErrInvalidCatalogue, crit.ID)
			}
			seen[crit.ID] = true
		}
		c.order = append(c.order, id)
		c.byID[id] = def
	}
	return c, nil
}

// Get returns the definition for id.
//
// Unknown ids yield a herrors.KindInvalidInput error wrapping
// ErrUnknownHeuristic; Get never panics.
func (c *Catalogue) Get(id HeuristicID) (HeuristicDefinition, error) {
	def, ok := c.byID[id]
	if !ok {
		return HeuristicDefinition{}, herrors.Invalid("get_heuristic", string(id), ErrUnknownHeuristic)
	}
	return cloneDefinition(def), nil
}

// Has reports whether id is defined.
func (c *Catalogue) Has(id HeuristicID) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns heuristic ids in catalogue order.
func (c *Catalogue) IDs() []HeuristicID {
	out := make([]HeuristicID, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of heuristics.
func (c *Catalogue) Len() int { return len(c.order) }

// Summary returns name, description and criteria count per heuristic.
func (c *Catalogue) Summary() map[HeuristicID]Summary {
	out := make(map[HeuristicID]Summary, len(c.order))
	for _, id := range c.order {
		def := c.byID[id]
		out[id] = Summary{
			Name:          def.Name,
			Description:   def.Description,
			CriteriaCount: len(def.Criteria),
		}
	}
	return out
}

func cloneDefinition(def HeuristicDefinition) HeuristicDefinition {
	out := def
	out.Criteria = make([]Criterion, len(def.Criteria))
	for i, crit := range def.Criteria {
		weights := make(map[Severity]int, len(crit.SeverityWeights))
		for k, v := range crit.SeverityWeights {
			weights[k] = v
		}
		crit.SeverityWeights = weights
		out.Criteria[i] = crit
	}
	return out
}
