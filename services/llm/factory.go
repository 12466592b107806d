// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// BackendConfig selects and configures one LLM backend.
type BackendConfig struct {
	// Backend is one of "openai", "claude"/"anthropic" or "ollama".
	Backend string

	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Ollama    OllamaConfig

	// RequestsPerSecond throttles outbound calls when > 0.
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates the configured backend, wrapped in a rate limiter
// when RequestsPerSecond is set.
//
// # Outputs
//
//   - LLMClient: The backend.
//   - string: The model name, for report metadata.
//   - error: Unknown backend or backend construction failure.
func NewClient(cfg BackendConfig) (LLMClient, string, error) {
	var (
		client LLMClient
		model  string
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "openai":
		c, err := NewOpenAIClient(cfg.OpenAI)
		if err != nil {
			return nil, "", err
		}
		client, model = c, c.Model()
		slog.Info("Using OpenAI LLM backend")
	case "claude", "anthropic":
		c, err := NewAnthropicClient(cfg.Anthropic)
		if err != nil {
			return nil, "", err
		}
		client, model = c, c.Model()
		slog.Info("Using Anthropic (Claude) LLM backend")
	case "ollama":
		c, err := NewOllamaClient(cfg.Ollama)
		if err != nil {
			return nil, "", err
		}
		client, model = c, c.Model()
		slog.Info("Using Ollama LLM backend")
	default:
		return nil, "", fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}

	return NewRateLimitedClient(client, cfg.RequestsPerSecond, cfg.Burst), model, nil
}

// DefaultOllamaTimeout bounds a single local generation.
const DefaultOllamaTimeout = 5 * time.Minute
