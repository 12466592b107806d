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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
)

// ErrUndecodableImage is returned when the upload is not a PNG, JPEG or GIF.
var ErrUndecodableImage = errors.New("image could not be decoded")

// Detector turns screenshot bytes into UI elements.
//
// Implementations return herrors.KindDetectionFailed errors for detector
// faults and herrors.KindInvalidInput for unusable images.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*DetectionResult, error)
}

// DecodeDimensions reads width and height from the image header.
func DecodeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

// =============================================================================
// Fixture Detector
// =============================================================================

// FixtureDetector returns a fixed login-form layout sized to the uploaded
// image. It backs the lightweight deployment and tests where no vision
// model is available.
type FixtureDetector struct{}

// NewFixtureDetector creates a FixtureDetector.
func NewFixtureDetector() *FixtureDetector { return &FixtureDetector{} }

// Detect implements Detector.
func (FixtureDetector) Detect(ctx context.Context, img []byte) (*DetectionResult, error) {
	width, height, err := DecodeDimensions(img)
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}
	elements := LoginFormFixture()
	return &DetectionResult{
		Elements: elements,
		LayoutHierarchy: map[string]any{
			"root": map[string]any{
				"type": "form",
				"children": []any{
					map[string]any{"type": "heading", "ref": 0},
					map[string]any{"type": "input", "ref": 1},
					map[string]any{"type": "button", "ref": 2},
					map[string]any{"type": "link", "ref": 3},
				},
			},
		},
		Metadata: ImageMetadata{Width: width, Height: height, TotalElements: len(elements)},
	}, nil
}

// LoginFormFixture returns the four elements of the fixture layout.
func LoginFormFixture() []UIElement {
	return []UIElement{
		{
			ElementType: "button",
			Text:        "Submit",
			BBox:        BBox{X1: 100, Y1: 200, X2: 220, Y2: 240},
			Interactive: true,
			Attributes:  map[string]string{"class": "btn-primary", "color": "#0066cc"},
		},
		{
			ElementType: "input",
			BBox:        BBox{X1: 100, Y1: 150, X2: 300, Y2: 185},
			Interactive: true,
			Attributes:  map[string]string{"type": "text", "placeholder": "Enter email"},
		},
		{
			ElementType: "heading",
			Text:        "Login Form",
			BBox:        BBox{X1: 100, Y1: 100, X2: 300, Y2: 130},
			Attributes:  map[string]string{"level": "h1"},
		},
		{
			ElementType: "link",
			Text:        "Forgot Password?",
			BBox:        BBox{X1: 100, Y1: 260, X2: 250, Y2: 280},
			Interactive: true,
			Attributes:  map[string]string{"href": "/forgot-password"},
		},
	}
}

// =============================================================================
// OmniParser Client
// =============================================================================

// OmniParserClient calls an OmniParser HTTP service.
//
// The image is posted as multipart field "image" to {BaseURL}/parse. The
// response carries "elements" in any alias spelling NormalizeElement
// accepts, plus optional "layout_hierarchy" and "metadata".
type OmniParserClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOmniParserClient creates a client. timeout <= 0 uses 60s.
func NewOmniParserClient(baseURL string, timeout time.Duration) *OmniParserClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OmniParserClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type omniParserResponse struct {
	Elements        []map[string]any `json:"elements"`
	LayoutHierarchy map[string]any   `json:"layout_hierarchy"`
	Metadata        *ImageMetadata   `json:"metadata"`
}

// Detect implements Detector.
func (c *OmniParserClient) Detect(ctx context.Context, img []byte) (*DetectionResult, error) {
	width, height, err := DecodeDimensions(img)
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "screenshot")
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}
	if err := mw.Close(); err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", &body)
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", fmt.Errorf("omniparser request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements",
			fmt.Errorf("omniparser returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var parsed omniParserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", fmt.Errorf("decode omniparser response: %w", err))
	}
	elements, err := NormalizeElements(parsed.Elements)
	if err != nil {
		return nil, herrors.New(herrors.KindDetectionFailed, "detect_elements", err)
	}

	result := &DetectionResult{
		Elements:        elements,
		LayoutHierarchy: parsed.LayoutHierarchy,
		Metadata:        ImageMetadata{Width: width, Height: height, TotalElements: len(elements)},
	}
	if result.LayoutHierarchy == nil {
		result.LayoutHierarchy = map[string]any{}
	}
	slog.Debug("OmniParser detection complete", "elements", len(elements))
	return result, nil
}

// FetchImage downloads an image for detection, reading at most maxBytes.
func FetchImage(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, herrors.Invalid("fetch_image", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, herrors.Invalid("fetch_image", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, herrors.Invalid("fetch_image", url, fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, herrors.Invalid("fetch_image", url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, herrors.Invalid("fetch_image", url, fmt.Errorf("image exceeds %d bytes", maxBytes))
	}
	return data, nil
}
