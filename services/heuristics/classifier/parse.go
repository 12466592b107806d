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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
)

// ErrUnrecognizedShape is returned for JSON that holds no violation list.
var ErrUnrecognizedShape = errors.New("classifier response has no violation list")

// Shape tags how a response was interpreted.
type Shape int

const (
	// ShapeUnrecognized covers invalid JSON, scalars and objects without a
	// known list key.
	ShapeUnrecognized Shape = iota

	// ShapeArray is a top-level array of violations.
	ShapeArray

	// ShapeObjectWithKnownKey is an object holding the list under one of
	// knownListKeys.
	ShapeObjectWithKnownKey
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeObjectWithKnownKey:
		return "object"
	default:
		return "unrecognized"
	}
}

// knownListKeys are checked in order.
var knownListKeys = []string{"violations", "heuristic_violations", "issues", "results"}

// stripFences trims whitespace and a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// ExtractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array in s.
func ExtractJSON(s string) string {
	s = stripFences(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// decodeResponse decodes the fence-stripped answer as a whole. Only when
// that fails is the outermost object or array cut out of surrounding prose.
func decodeResponse(raw string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err == nil {
		return decoded, nil
	}
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// ParseResponse interprets raw model output for heuristic hid.
//
// # Description
//
// The whole answer is decoded first, so a JSON string that merely contains
// brackets stays a string. Items that are not objects are skipped, and a
// non-empty list holding no objects is unrecognized. Per item: criterion_id defaults
// to "{hid}.0"; severity maps case-insensitively and unknown values become
// minor; affected_elements accepts a list or a single string.
//
// # Outputs
//
//   - []Violation: Never nil.
//   - Shape: How the response was read.
//   - error: Non-nil with ShapeUnrecognized.
func ParseResponse(raw string, hid catalogue.HeuristicID) ([]Violation, Shape, error) {
	decoded, err := decodeResponse(raw)
	if err != nil {
		return []Violation{}, ShapeUnrecognized, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}

	var (
		items []any
		shape Shape
	)
	switch v := decoded.(type) {
	case []any:
		items, shape = v, ShapeArray
	case map[string]any:
		for _, key := range knownListKeys {
			if list, ok := v[key].([]any); ok {
				items, shape = list, ShapeObjectWithKnownKey
				break
			}
		}
		if shape != ShapeObjectWithKnownKey {
			return []Violation{}, ShapeUnrecognized, fmt.Errorf("%w: object keys %v", ErrUnrecognizedShape, keysOf(v))
		}
	default:
		return []Violation{}, ShapeUnrecognized, fmt.Errorf("%w: top-level %T", ErrUnrecognizedShape, decoded)
	}

	violations := make([]Violation, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		violations = append(violations, toViolation(obj, hid))
	}
	if len(items) > 0 && len(violations) == 0 {
		return []Violation{}, ShapeUnrecognized, fmt.Errorf("%w: %d list items, none an object", ErrUnrecognizedShape, len(items))
	}
	return violations, shape, nil
}

func toViolation(obj map[string]any, hid catalogue.HeuristicID) Violation {
	criterion := strings.TrimSpace(cast.ToString(obj["criterion_id"]))
	if criterion == "" {
		criterion = string(hid) + ".0"
	}
	severity, _ := catalogue.ParseSeverity(cast.ToString(obj["severity"]))
	return Violation{
		HeuristicID:      hid,
		CriterionID:      criterion,
		Severity:         severity,
		Description:      cast.ToString(obj["description"]),
		AffectedElements: toStrings(obj["affected_elements"]),
		Recommendation:   cast.ToString(obj["recommendation"]),
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		if t == "" {
			return []string{}
		}
		return []string{t}
	default:
		out, err := cast.ToStringSliceE(t)
		if err != nil {
			return []string{}
		}
		return out
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
