// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads heuristics service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables. The merged result is validated before
// it is returned. API keys are never read from the YAML file; when the
// environment does not carry them the LLM clients fall back to
// /run/secrets files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/llm"
)

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("invalid heuristics config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Types
// =============================================================================

// Config is the complete service configuration.
type Config struct {
	// Port is the HTTP listen port. Default: 12230
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// GinMode is "debug", "release" or "test". Empty keeps gin's default.
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// CataloguePath loads a custom heuristic catalogue. Empty uses the
	// embedded Nielsen catalogue.
	CataloguePath string `yaml:"catalogue_path"`

	LLM        LLMConfig        `yaml:"llm"`
	Detector   DetectorConfig   `yaml:"detector"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LLMConfig selects the classifier backend.
type LLMConfig struct {
	Backend string `yaml:"backend" validate:"oneof=openai claude anthropic ollama"`

	OpenAIAPIKey  string `yaml:"-"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url" validate:"omitempty,url"`

	AnthropicAPIKey string `yaml:"-"`
	ClaudeModel     string `yaml:"claude_model"`

	OllamaBaseURL string `yaml:"ollama_base_url" validate:"omitempty,url"`
	OllamaModel   string `yaml:"ollama_model"`

	// RequestsPerSecond throttles outbound LLM calls. 0 disables.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// DetectorConfig selects the UI element detector.
type DetectorConfig struct {
	// Backend is "fixture" or "omniparser".
	Backend       string        `yaml:"backend" validate:"oneof=fixture omniparser"`
	OmniParserURL string        `yaml:"omniparser_url" validate:"required_if=Backend omniparser"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`

	// MaxImageBytes bounds uploads and fetched images.
	MaxImageBytes int64 `yaml:"max_image_bytes" validate:"gt=0"`
}

// KnowledgeConfig configures the knowledge store.
type KnowledgeConfig struct {
	// DBPath enables Badger persistence of expert feedback. Empty keeps
	// everything in memory.
	DBPath string `yaml:"db_path"`
}

// EvaluationConfig tunes the evaluation engine.
type EvaluationConfig struct {
	ClassifierTimeout time.Duration `yaml:"classifier_timeout" validate:"gt=0"`
	NarrativeTimeout  time.Duration `yaml:"narrative_timeout" validate:"gt=0"`
	Concurrency       int           `yaml:"concurrency" validate:"gte=1,lte=10"`
	RetrievalTopK     int           `yaml:"retrieval_top_k" validate:"gte=1,lte=20"`
	EnableNarrative   bool          `yaml:"enable_narrative"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// OTelEndpoint is an OTLP gRPC collector address, "stdout" to print
	// spans, or empty to disable export.
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name" validate:"required"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: 12230,
		LLM: LLMConfig{
			Backend:       "openai",
			OpenAIModel:   "gpt-4",
			ClaudeModel:   "claude-sonnet-4-5",
			OllamaBaseURL: "http://localhost:11434",
			OllamaModel:   "llama3.1",
		},
		Detector: DetectorConfig{
			Backend:       "fixture",
			Timeout:       60 * time.Second,
			MaxImageBytes: 20 << 20,
		},
		Evaluation: EvaluationConfig{
			ClassifierTimeout: 60 * time.Second,
			NarrativeTimeout:  30 * time.Second,
			Concurrency:       4,
			RetrievalTopK:     3,
			EnableNarrative:   true,
		},
		Telemetry: TelemetryConfig{ServiceName: "heuristics-service"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load resolves configuration from defaults, the YAML file at path (if
// non-empty) and the process environment.
//
// # Outputs
//
//   - Config: Validated configuration.
//   - error: Wraps ErrInvalidConfig on unreadable files, bad env values
//     or failed validation.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(cfg *Config, raw string) error
}

func stringVar(target func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		*target(cfg) = raw
		return nil
	}
}

var envBindings = []envBinding{
	{"HEURISTICS_PORT", func(cfg *Config, raw string) (err error) {
		cfg.Port, err = cast.ToIntE(raw)
		return err
	}},
	{"GIN_MODE", stringVar(func(c *Config) *string { return &c.GinMode })},
	{"CATALOGUE_PATH", stringVar(func(c *Config) *string { return &c.CataloguePath })},
	{"LLM_BACKEND_TYPE", func(cfg *Config, raw string) error {
		cfg.LLM.Backend = strings.ToLower(raw)
		return nil
	}},
	{"OPENAI_API_KEY", stringVar(func(c *Config) *string { return &c.LLM.OpenAIAPIKey })},
	{"OPENAI_MODEL", stringVar(func(c *Config) *string { return &c.LLM.OpenAIModel })},
	{"OPENAI_BASE_URL", stringVar(func(c *Config) *string { return &c.LLM.OpenAIBaseURL })},
	{"ANTHROPIC_API_KEY", stringVar(func(c *Config) *string { return &c.LLM.AnthropicAPIKey })},
	{"CLAUDE_MODEL", stringVar(func(c *Config) *string { return &c.LLM.ClaudeModel })},
	{"OLLAMA_BASE_URL", stringVar(func(c *Config) *string { return &c.LLM.OllamaBaseURL })},
	{"OLLAMA_MODEL", stringVar(func(c *Config) *string { return &c.LLM.OllamaModel })},
	{"LLM_REQUESTS_PER_SECOND", func(cfg *Config, raw string) (err error) {
		cfg.LLM.RequestsPerSecond, err = cast.ToFloat64E(raw)
		return err
	}},
	{"DETECTOR_BACKEND", func(cfg *Config, raw string) error {
		cfg.Detector.Backend = strings.ToLower(raw)
		return nil
	}},
	{"OMNIPARSER_URL", stringVar(func(c *Config) *string { return &c.Detector.OmniParserURL })},
	{"KNOWLEDGE_DB_PATH", stringVar(func(c *Config) *string { return &c.Knowledge.DBPath })},
	{"CLASSIFIER_TIMEOUT", func(cfg *Config, raw string) (err error) {
		cfg.Evaluation.ClassifierTimeout, err = parseDuration(raw)
		return err
	}},
	{"EVAL_CONCURRENCY", func(cfg *Config, raw string) (err error) {
		cfg.Evaluation.Concurrency, err = cast.ToIntE(raw)
		return err
	}},
	{"ENABLE_NARRATIVE", func(cfg *Config, raw string) (err error) {
		cfg.Evaluation.EnableNarrative, err = cast.ToBoolE(raw)
		return err
	}},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", stringVar(func(c *Config) *string { return &c.Telemetry.OTelEndpoint })},
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_DIR", stringVar(func(c *Config) *string { return &c.Logging.Dir })},
	{"LOG_JSON", func(cfg *Config, raw string) (err error) {
		cfg.Logging.JSON, err = cast.ToBoolE(raw)
		return err
	}},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		raw, ok := lookup(b.name)
		if !ok {
			continue
		}
		// Podman passes quoted values through literally.
		raw = strings.Trim(raw, "\"' ")
		if raw == "" {
			continue
		}
		if err := b.set(cfg, raw); err != nil {
			return fmt.Errorf("%s=%q: %v", b.name, raw, err)
		}
	}
	return nil
}

// parseDuration accepts Go durations ("90s") and bare integers as seconds.
func parseDuration(raw string) (time.Duration, error) {
	if n, err := cast.ToInt64E(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return cast.ToDurationE(raw)
}

// =============================================================================
// Derived configuration
// =============================================================================

// BackendConfig converts the LLM section for llm.NewClient.
func (c Config) BackendConfig() llm.BackendConfig {
	return llm.BackendConfig{
		Backend: c.LLM.Backend,
		OpenAI: llm.OpenAIConfig{
			APIKey:  c.LLM.OpenAIAPIKey,
			Model:   c.LLM.OpenAIModel,
			BaseURL: c.LLM.OpenAIBaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey: c.LLM.AnthropicAPIKey,
			Model:  c.LLM.ClaudeModel,
		},
		Ollama: llm.OllamaConfig{
			BaseURL: c.LLM.OllamaBaseURL,
			Model:   c.LLM.OllamaModel,
		},
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Burst:             c.LLM.Burst,
	}
}

// LoggerConfig converts the logging section for logging.New.
func (c Config) LoggerConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}
