// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/pkg/ux"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/config"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
)

// newService builds the service for commands that evaluate. Tests replace
// it to inject a scripted LLM.
var newService = func(cfg config.Config, logger *logging.Logger) (heuristics.Service, error) {
	return heuristics.New(cfg, heuristics.WithLogger(logger))
}

// cliOptions holds the persistent flags.
type cliOptions struct {
	configPath string
	output     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "heuristics",
		Short:         "Evaluate user interfaces against Nielsen's usability heuristics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("HEURISTICS_CONFIG"), "Path to a YAML config file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "auto", "Output mode: auto, rich, plain or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL for this command")

	root.AddCommand(
		newServeCmd(opts),
		newEvaluateCmd(opts),
		newHeuristicsCmd(opts),
		newKnowledgeCmd(opts),
	)
	return root
}

// =============================================================================
// Shared helpers
// =============================================================================

func (o *cliOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return config.Config{}, err
		}
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// cliLogger logs to stderr so stdout stays clean for reports.
func (o *cliOptions) cliLogger(cmd *cobra.Command, cfg config.Config) *logging.Logger {
	lc := cfg.LoggerConfig("heuristics-cli")
	if o.logLevel == "" {
		lc.Level = logging.LevelWarn
	}
	lc.Writer = cmd.ErrOrStderr()
	return logging.New(lc)
}

func (o *cliOptions) printer(cmd *cobra.Command) (*ux.Printer, error) {
	mode, ok, err := ux.ParseMode(o.output)
	if err != nil {
		return nil, err
	}
	if !ok {
		mode = ux.ModePlain
		if f, isFile := cmd.OutOrStdout().(*os.File); isFile {
			mode = ux.DetectMode(f)
		}
	}
	return ux.NewPrinter(cmd.OutOrStdout(), mode), nil
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP evaluation service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			svc, err := heuristics.New(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}
}

// =============================================================================
// evaluate
// =============================================================================

type evaluateFlags struct {
	detectionPath string
	imagePath     string
	heuristic     string
	noNarrative   bool
}

func newEvaluateCmd(opts *cliOptions) *cobra.Command {
	flags := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a detection result or screenshot",
		Long: `Evaluate a user interface against every heuristic, or a single one
with --heuristic. Input is either a detection result JSON file (--detection)
or a screenshot (--image) run through the configured detector.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, opts, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.detectionPath, "detection", "d", "", "Detection result JSON file")
	cmd.Flags().StringVarP(&flags.imagePath, "image", "i", "", "Screenshot to run through the detector")
	cmd.Flags().StringVar(&flags.heuristic, "heuristic", "", "Evaluate a single heuristic (H1..H10)")
	cmd.Flags().BoolVar(&flags.noNarrative, "no-narrative", false, "Skip narrative explanations")
	cmd.MarkFlagsMutuallyExclusive("detection", "image")
	cmd.MarkFlagsOneRequired("detection", "image")
	return cmd
}

func runEvaluate(cmd *cobra.Command, opts *cliOptions, flags *evaluateFlags) error {
	p, err := opts.printer(cmd)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.cliLogger(cmd, cfg)
	defer logger.Close()

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	result, err := loadDetection(ctx, svc.Detector(), flags)
	if err != nil {
		return err
	}

	var evalOpts []engine.EvalOption
	if flags.noNarrative {
		evalOpts = append(evalOpts, engine.WithoutNarrative())
	}

	if flags.heuristic != "" {
		id, err := catalogue.ParseHeuristicID(flags.heuristic)
		if err != nil {
			return err
		}
		score, err := svc.Engine().EvaluateSingleHeuristic(ctx, id, result.Elements, evalOpts...)
		if err != nil {
			return err
		}
		if p.Mode() == ux.ModeJSON {
			return p.JSON(score)
		}
		renderHeuristicScore(p, *score)
		return nil
	}

	report, err := svc.Engine().EvaluateInterface(ctx, result, evalOpts...)
	if err != nil {
		return err
	}
	if p.Mode() == ux.ModeJSON {
		return p.JSON(report)
	}
	renderReport(p, report)
	return nil
}

// loadDetection reads a detection result file or runs the detector on an
// image. A bare element array is accepted as a detection file.
func loadDetection(ctx context.Context, det detection.Detector, flags *evaluateFlags) (*detection.DetectionResult, error) {
	if flags.imagePath != "" {
		img, err := os.ReadFile(flags.imagePath)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		return det.Detect(ctx, img)
	}

	data, err := os.ReadFile(flags.detectionPath)
	if err != nil {
		return nil, fmt.Errorf("read detection file: %w", err)
	}
	var elements []detection.UIElement
	if err := json.Unmarshal(data, &elements); err == nil {
		return &detection.DetectionResult{
			Elements: elements,
			Metadata: detection.ImageMetadata{TotalElements: len(elements)},
		}, nil
	}
	var wrapped struct {
		DetectionResults *detection.DetectionResult `json:"detection_results"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.DetectionResults != nil {
		return wrapped.DetectionResults, nil
	}
	var result detection.DetectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse detection file: %w", err)
	}
	return &result, nil
}

// =============================================================================
// heuristics
// =============================================================================

func newHeuristicsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "heuristics",
		Short: "List the heuristic catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := heuristics.LoadCatalogue(cfg)
			if err != nil {
				return err
			}
			if p.Mode() == ux.ModeJSON {
				return p.JSON(cat.Summary())
			}
			renderCatalogue(p, cat)
			return nil
		},
	}
}

// =============================================================================
// kb
// =============================================================================

func newKnowledgeCmd(opts *cliOptions) *cobra.Command {
	kb := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge-base"},
		Short:   "Inspect and extend the knowledge base",
	}
	kb.AddCommand(newKnowledgeStatsCmd(opts), newKnowledgeFeedbackCmd(opts))
	return kb
}

func withStore(cmd *cobra.Command, opts *cliOptions, fn func(*ux.Printer, knowledge.Store) error) error {
	p, err := opts.printer(cmd)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.cliLogger(cmd, cfg)
	defer logger.Close()

	if cfg.Knowledge.DBPath == "" {
		logger.Warn("KNOWLEDGE_DB_PATH not set, using an in-memory knowledge base")
	}
	store, err := heuristics.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(p, store)
}

func newKnowledgeStatsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(p *ux.Printer, store knowledge.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if p.Mode() == ux.ModeJSON {
					return p.JSON(stats)
				}
				renderStats(p, stats)
				return nil
			})
		},
	}
}

func newKnowledgeFeedbackCmd(opts *cliOptions) *cobra.Command {
	var fb knowledge.Feedback
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record expert feedback on a violation pattern",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(p *ux.Printer, store knowledge.Store) error {
				entry, err := store.AddFeedback(cmd.Context(), fb)
				if err != nil {
					return err
				}
				if p.Mode() == ux.ModeJSON {
					return p.JSON(entry)
				}
				p.Success(fmt.Sprintf("Added %s to %s", entry.ID, entry.HeuristicID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fb.UIPattern, "pattern", "", "UI pattern the feedback applies to")
	cmd.Flags().StringVar(&fb.ViolationType, "violation-type", "", "Kind of violation")
	cmd.Flags().StringVar(&fb.Rationale, "rationale", "", "Expert rationale")
	cmd.Flags().StringVar(&fb.HeuristicID, "heuristic", "", "Heuristic id (H1..H10)")
	for _, name := range []string{"pattern", "violation-type", "rationale", "heuristic"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
