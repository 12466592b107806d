// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detection defines UI elements and the detector boundary that
// turns a screenshot into them.
//
// Detector payloads use several spellings for the same fields ("type" or
// "element_type", "bbox" or "bounds", "content" or "text"). All of them are
// normalized once, here, into UIElement; nothing downstream sees aliases.
package detection

import (
	"encoding/json"
	"fmt"
)

// BBox is an axis-aligned bounding box in image pixels.
type BBox struct {
	X1 float64 `validate:"gte=0"`
	Y1 float64 `validate:"gte=0"`
	X2 float64 `validate:"gtefield=X1"`
	Y2 float64 `validate:"gtefield=Y1"`
}

// Width returns X2 - X1.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON accepts the [x1, y1, x2, y2] form.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	box, err := bboxFromAny(raw)
	if err != nil {
		return err
	}
	*b = box
	return nil
}

// UIElement is one detected element. Values are immutable once built.
type UIElement struct {
	ElementType string            `json:"type"`
	BBox        BBox              `json:"bbox"`
	Interactive bool              `json:"interactivity"`
	Text        string            `json:"content"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Width returns the bounding box width.
func (e UIElement) Width() float64 { return e.BBox.Width() }

// Height returns the bounding box height.
func (e UIElement) Height() float64 { return e.BBox.Height() }

// UnmarshalJSON decodes any supported alias spelling through
// NormalizeElement.
func (e *UIElement) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("element must be a JSON object: %w", err)
	}
	el, err := NormalizeElement(raw)
	if err != nil {
		return err
	}
	*e = el
	return nil
}

// ImageMetadata describes the analysed image.
type ImageMetadata struct {
	Width         int `json:"width"`
	Height        int `json:"height"`
	TotalElements int `json:"total_elements"`
}

// DetectionResult is the detector output for one image.
type DetectionResult struct {
	Elements        []UIElement    `json:"elements"`
	LayoutHierarchy map[string]any `json:"layout_hierarchy"`
	Metadata        ImageMetadata  `json:"metadata"`
}
