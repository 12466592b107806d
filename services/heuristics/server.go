// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package heuristics wires the heuristic UI evaluation service.
//
// The service loads the heuristic catalogue, opens the knowledge store,
// connects an LLM backend, and exposes the evaluation engine over HTTP.
//
// # Usage
//
//	cfg, err := config.Load(os.Getenv("HEURISTICS_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := heuristics.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package heuristics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/classifier"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/config"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/detection"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/engine"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/knowledge"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/observability"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/routes"
	"github.com/AleutianAI/AleutianHeuristics/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the heuristics service lifecycle.
//
// # Thread Safety
//
// Safe for concurrent use after New returns. Run is called at most once.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the server fails, then
	// shuts down gracefully and releases resources.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, for tests.
	Router() *gin.Engine

	// Engine returns the evaluation engine, for the CLI.
	Engine() *engine.Engine

	// Store returns the knowledge store, for the CLI.
	Store() knowledge.Store

	// Detector returns the configured element detector, for the CLI.
	Detector() detection.Detector

	// Close releases resources without serving. Safe after Run.
	Close() error
}

// Option customizes New.
type Option func(*service)

// WithLLMClient bypasses backend construction. model is reported in
// evaluation metadata.
func WithLLMClient(client llm.LLMClient, model string) Option {
	return func(s *service) {
		s.llmClient = client
		s.model = model
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *service) { s.registry = reg }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *logging.Logger) Option {
	return func(s *service) { s.logger = l }
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config config.Config

	logger    *logging.Logger
	ownLogger bool
	registry  *prometheus.Registry
	metrics   *observability.Metrics

	catalogue *catalogue.Catalogue
	store     knowledge.Store
	llmClient llm.LLMClient
	model     string
	detector  detection.Detector
	engine    *engine.Engine
	router    *gin.Engine

	tracerCleanup func(context.Context)
	closed        bool
}

// New creates a Service.
//
// # Description
//
// Initialization order:
//  1. Logging and Gin mode
//  2. OpenTelemetry tracing (skipped when no endpoint is configured)
//  3. Prometheus metrics
//  4. Heuristic catalogue
//  5. Knowledge store (Badger when a path is set, memory otherwise)
//  6. LLM client, classifier and explainer
//  7. Detector, engine and HTTP routes
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Any initialization failure. Partially initialized resources
//     are released.
func New(cfg config.Config, opts ...Option) (Service, error) {
	s := &service{config: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.New(cfg.LoggerConfig("heuristics"))
		s.ownLogger = true
	}
	slog.SetDefault(s.logger.Slog())

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	cleanup, err := s.initTracer()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.initMetrics()

	if err := s.initCatalogue(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	s.initDetector()
	s.initEngine()
	s.initRouter()

	s.logger.Info("Heuristics service initialized",
		"heuristics", s.catalogue.Len(),
		"llm_backend", cfg.LLM.Backend,
		"model", s.model,
		"detector", cfg.Detector.Backend,
	)
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting heuristics server", "port", s.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down heuristics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Engine() *engine.Engine { return s.engine }

func (s *service) Store() knowledge.Store { return s.store }

func (s *service) Detector() detection.Detector { return s.detector }

func (s *service) Close() error {
	s.cleanup()
	return nil
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer configures OpenTelemetry.
//
// An empty endpoint leaves the global no-op provider in place. "stdout"
// prints spans, anything else is an OTLP gRPC collector address.
func (s *service) initTracer() (func(context.Context), error) {
	endpoint := s.config.Telemetry.OTelEndpoint
	if endpoint == "" {
		return func(context.Context) {}, nil
	}
	ctx := context.Background()

	var exporter sdktrace.SpanExporter
	if endpoint == "stdout" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exporter = exp
	} else {
		conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.config.Telemetry.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

func (s *service) initMetrics() {
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = observability.NewMetrics(s.registry)
}

func (s *service) initCatalogue() error {
	cat, err := LoadCatalogue(s.config)
	if err != nil {
		return err
	}
	s.catalogue = cat
	return nil
}

func (s *service) initStore() error {
	store, err := OpenStore(s.config, s.logger)
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

// LoadCatalogue returns the embedded catalogue, or the file at
// cfg.CataloguePath when set.
func LoadCatalogue(cfg config.Config) (*catalogue.Catalogue, error) {
	if cfg.CataloguePath == "" {
		return catalogue.Default(), nil
	}
	cat, err := catalogue.LoadFile(cfg.CataloguePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load heuristic catalogue: %w", err)
	}
	slog.Info("Loaded custom heuristic catalogue", "path", cfg.CataloguePath, "heuristics", cat.Len())
	return cat, nil
}

// OpenStore opens the seeded knowledge store: Badger-backed when
// cfg.Knowledge.DBPath is set, in memory otherwise.
func OpenStore(cfg config.Config, logger *logging.Logger) (knowledge.Store, error) {
	if cfg.Knowledge.DBPath == "" {
		return knowledge.NewMemoryStore(knowledge.SeedEntries(), knowledge.WithLogger(logger)), nil
	}
	store, err := knowledge.OpenBadgerStore(knowledge.BadgerConfig{
		Path:       cfg.Knowledge.DBPath,
		SyncWrites: true,
		Logger:     logger,
	}, knowledge.SeedEntries())
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	return store, nil
}

func (s *service) initLLMClient() error {
	if s.llmClient != nil {
		return nil
	}
	client, model, err := llm.NewClient(s.config.BackendConfig())
	if err != nil {
		return err
	}
	s.llmClient, s.model = client, model
	return nil
}

func (s *service) initDetector() {
	switch s.config.Detector.Backend {
	case "omniparser":
		s.detector = detection.NewOmniParserClient(s.config.Detector.OmniParserURL, s.config.Detector.Timeout)
	default:
		s.logger.Info("Using fixture detector, running in lightweight mode")
		s.detector = detection.NewFixtureDetector()
	}
}

func (s *service) initEngine() {
	opts := []engine.Option{
		engine.WithLogger(s.logger.With("component", "engine")),
		engine.WithMetrics(s.metrics),
		engine.WithConcurrency(s.config.Evaluation.Concurrency),
		engine.WithRetrievalTopK(s.config.Evaluation.RetrievalTopK),
		engine.WithModelName(s.model),
	}
	if s.config.Evaluation.EnableNarrative {
		opts = append(opts, engine.WithExplainer(classifier.NewLLMExplainer(s.llmClient, s.config.Evaluation.NarrativeTimeout)))
	}
	cls := classifier.NewLLMClassifier(s.llmClient, classifier.Config{
		Timeout: s.config.Evaluation.ClassifierTimeout,
		Logger:  s.logger,
	})
	s.engine = engine.New(s.catalogue, s.store, cls, opts...)
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Engine:        s.engine,
		Store:         s.store,
		Detector:      s.detector,
		HTTPClient:    &http.Client{Timeout: s.config.Detector.Timeout},
		Metrics:       s.metrics,
		Gatherer:      s.registry,
		MaxImageBytes: s.config.Detector.MaxImageBytes,
	})
}

// cleanup releases everything New acquired. Safe to call more than once.
func (s *service) cleanup() {
	if s.closed {
		return
	}
	s.closed = true

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Knowledge store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.ownLogger {
		_ = s.logger.Close()
	}
}
