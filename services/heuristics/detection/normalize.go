// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

var (
	// ErrMissingElementType is returned when no type alias is present.
	ErrMissingElementType = errors.New("element has no type")

	// ErrInvalidBoundingBox is returned for malformed or inverted boxes.
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
)

var validate = validator.New()

var (
	typeKeys        = []string{"type", "element_type"}
	textKeys        = []string{"content", "text", "label"}
	interactiveKeys = []string{"interactivity", "interactive"}
)

// NormalizeElement converts a loosely typed element map into a UIElement.
//
// # Description
//
// Recognized spellings:
//
//   - type: "type", "element_type"
//   - box: "bbox" as [x1,y1,x2,y2] or {x1,y1,x2,y2}; "bounds" as
//     {x,y,width,height}
//   - interactivity: "interactivity", "interactive" (bool, "true", 1)
//   - text: "content", "text", "label"
//   - attributes: "attributes" (values stringified)
//
// A missing box yields a zero box. Numbers may arrive as strings.
//
// # Outputs
//
//   - UIElement: The normalized element.
//   - error: ErrMissingElementType or ErrInvalidBoundingBox.
func NormalizeElement(raw map[string]any) (UIElement, error) {
	var el UIElement

	el.ElementType = strings.TrimSpace(cast.ToString(firstOf(raw, typeKeys)))
	if el.ElementType == "" {
		return UIElement{}, ErrMissingElementType
	}
	el.Text = cast.ToString(firstOf(raw, textKeys))
	el.Interactive = cast.ToBool(firstOf(raw, interactiveKeys))

	switch {
	case raw["bbox"] != nil:
		box, err := bboxFromAny(raw["bbox"])
		if err != nil {
			return UIElement{}, err
		}
		el.BBox = box
	case raw["bounds"] != nil:
		box, err := bboxFromBounds(raw["bounds"])
		if err != nil {
			return UIElement{}, err
		}
		el.BBox = box
	}

	if attrs, ok := raw["attributes"].(map[string]any); ok && len(attrs) > 0 {
		el.Attributes = cast.ToStringMapString(attrs)
	}
	return el, nil
}

// NormalizeElements normalizes a list, reporting the index of the first
// failing element.
func NormalizeElements(raw []map[string]any) ([]UIElement, error) {
	out := make([]UIElement, 0, len(raw))
	for i, r := range raw {
		el, err := NormalizeElement(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}
	return out, nil
}

func firstOf(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func bboxFromAny(v any) (BBox, error) {
	switch t := v.(type) {
	case []any:
		if len(t) != 4 {
			return BBox{}, fmt.Errorf("%w: want 4 coordinates, got %d", ErrInvalidBoundingBox, len(t))
		}
		coords := make([]float64, 4)
		for i, c := range t {
			f, err := cast.ToFloat64E(c)
			if err != nil {
				return BBox{}, fmt.Errorf("%w: coordinate %d: %v", ErrInvalidBoundingBox, i, err)
			}
			coords[i] = f
		}
		return checkBox(BBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]})
	case map[string]any:
		if _, ok := t["x1"]; ok {
			return checkBox(BBox{
				X1: cast.ToFloat64(t["x1"]),
				Y1: cast.ToFloat64(t["y1"]),
				X2: cast.ToFloat64(t["x2"]),
				Y2: cast.ToFloat64(t["y2"]),
			})
		}
		return bboxFromBounds(t)
	default:
		return BBox{}, fmt.Errorf("%w: unsupported shape %T", ErrInvalidBoundingBox, v)
	}
}

func bboxFromBounds(v any) (BBox, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return BBox{}, fmt.Errorf("%w: bounds must be an object", ErrInvalidBoundingBox)
	}
	x := cast.ToFloat64(m["x"])
	y := cast.ToFloat64(m["y"])
	w := cast.ToFloat64(m["width"])
	h := cast.ToFloat64(m["height"])
	if w < 0 || h < 0 {
		return BBox{}, fmt.Errorf("%w: negative size %vx%v", ErrInvalidBoundingBox, w, h)
	}
	return checkBox(BBox{X1: x, Y1: y, X2: x + w, Y2: y + h})
}

func checkBox(b BBox) (BBox, error) {
	if err := validate.Struct(b); err != nil {
		return BBox{}, fmt.Errorf("%w: %v", ErrInvalidBoundingBox, err)
	}
	return b, nil
}
