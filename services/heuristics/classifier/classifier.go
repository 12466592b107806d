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
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/llm"
)

// Classifier reports candidate violations of one heuristic.
type Classifier interface {
	// Classify returns violations for def given elements and retrieved
	// examples. Errors are *herrors.Error:
	//   - KindClassifierUnavailable: the call failed or timed out.
	//   - KindMalformedClassifierOutput: the answer was unreadable; the
	//     returned slice is empty and evaluation should continue.
	Classify(ctx context.Context, def catalogue.HeuristicDefinition, elements []detection.UIElement, examples []knowledge.KnowledgeEntry) ([]Violation, error)
}

// Config tunes LLMClassifier.
type Config struct {
	// Timeout bounds one classification call. Default 60s.
	Timeout time.Duration

	// Temperature for the classification call. Default 0.3.
	Temperature float32

	// MaxTokens caps the answer. Zero leaves the backend default.
	MaxTokens int

	// Logger receives classification logs. Defaults to logging.Default().
	Logger *logging.Logger
}

const systemPrompt = "Respond only with valid JSON."

// LLMClassifier implements Classifier over an llm.LLMClient.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying client is.
type LLMClassifier struct {
	client llm.LLMClient
	config Config
	logger *logging.Logger
}

// NewLLMClassifier creates a classifier with defaults applied to cfg.
func NewLLMClassifier(client llm.LLMClient, cfg Config) *LLMClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &LLMClassifier{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "classifier"),
	}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, def catalogue.HeuristicDefinition, elements []detection.UIElement, examples []knowledge.KnowledgeEntry) ([]Violation, error) {
	elementsJSON, err := SerializeElements(elements)
	if err != nil {
		return nil, herrors.Invalid("classify", string(def.ID), err)
	}
	prompt := BuildPrompt(def, elementsJSON, examples)

	params := llm.GenerationParams{
		Temperature:  llm.Float32(c.config.Temperature),
		SystemPrompt: systemPrompt,
		JSONMode:     true,
	}
	if c.config.MaxTokens > 0 {
		params.MaxTokens = llm.Int(c.config.MaxTokens)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	log := c.logger.With("heuristic_id", string(def.ID))
	log.Debug("Classifying heuristic",
		"elements", len(elements),
		"examples", len(examples),
		"prompt_chars", len(prompt),
	)
	raw, err := c.client.Generate(callCtx, prompt, params)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.config.Timeout, err)
		}
		return nil, herrors.New(herrors.KindClassifierUnavailable, "classify "+string(def.ID), err)
	}

	violations, shape, err := ParseResponse(raw, def.ID)
	if err != nil {
		log.Warn("Classifier output could not be interpreted",
			"response_chars", len(raw),
			"error", err,
		)
		return violations, herrors.New(herrors.KindMalformedClassifierOutput, "classify "+string(def.ID), err)
	}
	log.Debug("Classifier response parsed", "shape", shape.String(), "violations", len(violations))
	return violations, nil
}

var _ Classifier = (*LLMClassifier)(nil)
