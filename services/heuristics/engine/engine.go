// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the heuristic evaluation pipeline.
//
// For every heuristic in catalogue order the engine retrieves knowledge
// context, asks the classifier for violations, scores them and optionally
// requests a narrative explanation. Heuristics run in parallel; results are
// written into fixed slots so the report order never depends on timing.
//
// # Failure Handling
//
//   - Knowledge store failure: empty context, warning on the heuristic.
//   - Malformed classifier output: zero violations, warning.
//   - Classifier failure or timeout: heuristic marked unavailable and
//     excluded from the overall mean. Never reported as a perfect score.
//   - Narrative failure: logged, narrative omitted.
//
// EvaluateInterface fails only when every heuristic is unavailable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/observability"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/scoring"
)

var tracer = otel.Tracer("aleutian.heuristics.engine")

// Defaults.
const (
	DefaultConcurrency   = 4
	DefaultRetrievalTopK = 3
)

// Engine orchestrates retrieval, classification, scoring and narration.
//
// # Thread Safety
//
// Safe for concurrent use. All dependencies must be safe for concurrent use.
type Engine struct {
	catalogue  *catalogue.Catalogue
	store      knowledge.Store
	classifier classifier.Classifier
	explainer  classifier.Explainer
	scorer     *scoring.Scorer
	metrics    *observability.Metrics
	logger     *logging.Logger

	concurrency int
	topK        int
	model       string
	now         func() time.Time
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithExplainer enables narrative explanations.
func WithExplainer(x classifier.Explainer) Option {
	return func(e *Engine) { e.explainer = x }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Default: logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConcurrency bounds how many heuristics run at once. n <= 0 keeps
// the default.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRetrievalTopK sets how many knowledge entries feed each prompt.
func WithRetrievalTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithModelName records the model name in report metadata.
func WithModelName(name string) Option {
	return func(e *Engine) { e.model = name }
}

// New creates an Engine.
func New(cat *catalogue.Catalogue, store knowledge.Store, cls classifier.Classifier, opts ...Option) *Engine {
	e := &Engine{
		catalogue:   cat,
		store:       store,
		classifier:  cls,
		scorer:      scoring.New(cat),
		logger:      logging.Default(),
		concurrency: DefaultConcurrency,
		topK:        DefaultRetrievalTopK,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvalOption adjusts a single evaluation.
type EvalOption func(*evalSettings)

type evalSettings struct {
	narrative bool
}

// WithoutNarrative skips the narrative call even if an explainer is set.
func WithoutNarrative() EvalOption {
	return func(s *evalSettings) { s.narrative = false }
}

// CatalogueSummary returns name, description and criteria count for every
// heuristic.
func (e *Engine) CatalogueSummary() map[catalogue.HeuristicID]catalogue.Summary {
	return e.catalogue.Summary()
}

// EvaluateInterface evaluates every catalogue heuristic against a
// detection result.
//
// # Description
//
// Heuristics are evaluated concurrently, bounded by the configured
// concurrency. The overall score is the arithmetic mean of the scored
// heuristics, rounded to two decimals.
//
// # Outputs
//
//   - *EvaluationReport: One HeuristicScore per heuristic, catalogue order.
//   - error: KindInvalidInput for a nil result or elements the classifier
//     rejects; KindClassifierUnavailable when no heuristic could be scored.
func (e *Engine) EvaluateInterface(ctx context.Context, det *detection.DetectionResult, opts ...EvalOption) (*EvaluationReport, error) {
	if det == nil {
		return nil, herrors.Invalid("evaluate_interface", "detection result", errors.New("nil detection result"))
	}
	settings := e.settings(opts)
	start := e.now()

	ctx, span := tracer.Start(ctx, "Engine.EvaluateInterface")
	defer span.End()
	span.SetAttributes(attribute.Int("heuristics.elements", len(det.Elements)))

	ids := e.catalogue.IDs()
	defs := make([]catalogue.HeuristicDefinition, len(ids))
	for i, id := range ids {
		def, err := e.catalogue.Get(id)
		if err != nil {
			return nil, err
		}
		defs[i] = def
	}
	results := make([]HeuristicScore, len(defs))
	errs := make([]error, len(defs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, def := range defs {
		g.Go(func() error {
			results[i], errs[i] = e.evaluate(ctx, def, det.Elements, settings)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if herrors.KindOf(err) == herrors.KindInvalidInput {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid input")
			e.metrics.RecordEvaluation(observability.StatusError, e.now().Sub(start))
			return nil, err
		}
	}

	report := &EvaluationReport{
		ID:              e.newID(),
		HeuristicScores: results,
		Timestamp:       e.now().UTC(),
		Metadata: Metadata{
			EvaluationVersion: EvaluationVersion,
			EvaluationMethod:  EvaluationMethod,
			TotalElements:     len(det.Elements),
			Model:             e.model,
		},
	}

	sum := 0
	for _, hs := range results {
		if hs.Status != StatusScored {
			report.Metadata.HeuristicsUnavailable++
			continue
		}
		report.Metadata.HeuristicsEvaluated++
		sum += hs.Score
		report.TotalViolations += len(hs.Violations)
		for _, v := range hs.Violations {
			if v.Severity == catalogue.SeverityCritical {
				report.CriticalIssues++
			}
		}
	}
	elapsed := e.now().Sub(start)
	report.Metadata.DurationMS = elapsed.Milliseconds()

	if report.Metadata.HeuristicsEvaluated == 0 {
		err := herrors.New(herrors.KindClassifierUnavailable, "evaluate_interface", errors.Join(errs...))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no heuristic could be scored")
		e.metrics.RecordEvaluation(observability.StatusError, elapsed)
		e.logger.Error("Evaluation failed, classifier unavailable for every heuristic", "heuristics", len(ids))
		return nil, err
	}
	report.OverallScore = round2(float64(sum) / float64(report.Metadata.HeuristicsEvaluated))

	status := observability.StatusSuccess
	if report.Metadata.HeuristicsUnavailable > 0 {
		status = observability.StatusPartial
	}
	e.metrics.RecordEvaluation(status, elapsed)
	span.SetAttributes(
		attribute.Float64("heuristics.overall_score", report.OverallScore),
		attribute.Int("heuristics.unavailable", report.Metadata.HeuristicsUnavailable),
	)
	e.logger.Info("Evaluation complete",
		"report_id", report.ID,
		"overall_score", report.OverallScore,
		"total_violations", report.TotalViolations,
		"critical_issues", report.CriticalIssues,
		"unavailable", report.Metadata.HeuristicsUnavailable,
		"duration_ms", report.Metadata.DurationMS,
	)
	return report, nil
}

// EvaluateSingleHeuristic evaluates one heuristic against elements.
//
// # Outputs
//
//   - *HeuristicScore: The scored heuristic.
//   - error: KindInvalidInput for an unknown id or rejected elements;
//     KindClassifierUnavailable when the classifier failed.
func (e *Engine) EvaluateSingleHeuristic(ctx context.Context, id catalogue.HeuristicID, elements []detection.UIElement, opts ...EvalOption) (*HeuristicScore, error) {
	def, err := e.catalogue.Get(id)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "Engine.EvaluateSingleHeuristic")
	defer span.End()

	hs, err := e.evaluate(ctx, def, elements, e.settings(opts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &hs, nil
}

func (e *Engine) settings(opts []EvalOption) evalSettings {
	s := evalSettings{narrative: e.explainer != nil}
	for _, opt := range opts {
		opt(&s)
	}
	if e.explainer == nil {
		s.narrative = false
	}
	return s
}

// evaluate runs one heuristic. A KindInvalidInput error is returned as is
// with an empty HeuristicScore. Any other error marks the heuristic
// unavailable and the HeuristicScore is still filled.
func (e *Engine) evaluate(ctx context.Context, def catalogue.HeuristicDefinition, elements []detection.UIElement, s evalSettings) (HeuristicScore, error) {
	ctx, span := tracer.Start(ctx, "Engine.evaluateHeuristic")
	defer span.End()
	span.SetAttributes(attribute.String("heuristics.id", string(def.ID)))

	hid := string(def.ID)
	log := e.logger.With("heuristic_id", hid)
	var warnings []string

	filter := def.ID
	examples, err := e.store.Retrieve(ctx, def.Name+" violations", &filter, e.topK)
	if err != nil {
		log.Warn("Knowledge retrieval failed, continuing without context", "error", err)
		e.metrics.RecordKnowledgeFallback()
		warnings = append(warnings, fmt.Sprintf("knowledge context unavailable: %v", err))
		examples = nil
	}

	callStart := time.Now()
	violations, err := e.classifier.Classify(ctx, def, elements, examples)
	e.metrics.RecordClassifierCall(hid, time.Since(callStart))
	switch {
	case err == nil:
	case herrors.KindOf(err) == herrors.KindMalformedClassifierOutput:
		e.metrics.RecordOutcome(hid, observability.OutcomeMalformed)
		warnings = append(warnings, err.Error())
		violations = []classifier.Violation{}
	case herrors.KindOf(err) == herrors.KindInvalidInput:
		log.Warn("Classifier rejected the element list", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")
		return HeuristicScore{}, err
	default:
		log.Error("Classifier unavailable", "error", err)
		e.metrics.RecordOutcome(hid, observability.OutcomeUnavailable)
		span.RecordError(err)
		span.SetStatus(codes.Error, "classifier unavailable")
		if herrors.KindOf(err) != herrors.KindClassifierUnavailable {
			err = herrors.New(herrors.KindClassifierUnavailable, "classify "+hid, err)
		}
		return unavailableResult(def, err), err
	}
	if violations == nil {
		violations = []classifier.Violation{}
	}

	score, explanation := e.scorer.Score(violations, def.ID)
	hs := scoredResult(def, score, explanation, violations)
	hs.Warnings = warnings

	severities := make([]string, len(violations))
	for i, v := range violations {
		severities[i] = string(v.Severity)
	}
	e.metrics.RecordOutcome(hid, observability.OutcomeScored)
	e.metrics.RecordScore(hid, score, severities)

	if s.narrative {
		narrative, err := e.explainer.Explain(ctx, def, score, violations)
		if err != nil {
			log.Warn("Narrative explanation failed", "error", err)
		} else if narrative != "" {
			hs.LLMExplanation = &narrative
		}
	}

	span.SetAttributes(attribute.Int("heuristics.score", score), attribute.Int("heuristics.violations", len(violations)))
	log.Debug("Heuristic scored", "score", score, "violations", len(violations))
	return hs, nil
}
