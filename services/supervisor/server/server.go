// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server assembles the trip supervisor service: executor,
// decision policy, specialist registry, HTTP routes, metrics, and
// tracing.
//
// # Usage
//
//	cfg := supervisor.DefaultConfig()
//	svc, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/tripmate/services/policy"
	"github.com/AleutianAI/tripmate/services/specialists"
	"github.com/AleutianAI/tripmate/services/supervisor"
	"github.com/AleutianAI/tripmate/services/supervisor/events"
	"github.com/AleutianAI/tripmate/services/supervisor/middleware"
	"github.com/AleutianAI/tripmate/services/supervisor/routes"
)

// Service defines the contract for the supervisor service.
//
// Run() blocks and should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Executor exposes the turn executor for embedding callers (CLI,
	// tests) that bypass HTTP.
	Executor() *supervisor.Executor
}

type service struct {
	cfg           supervisor.Config
	router        *gin.Engine
	exec          *supervisor.Executor
	registry      *prometheus.Registry
	emitter       *events.Emitter
	watcher       *supervisor.ConfigWatcher
	tracerCleanup func(context.Context)
}

// Options configure non-default service wiring.
type Options struct {
	// Policy overrides the backend chosen by cfg.PolicyBackend.
	Policy supervisor.DecisionPolicy

	// ConfigPath, when set, enables hot reload of tunables.
	ConfigPath string

	// GinMode sets the Gin framework mode (debug, release, test).
	GinMode string
}

// New assembles the service: specialist registry, decision policy,
// executor, metrics registry, tracing, and HTTP routes.
func New(cfg supervisor.Config, opts *Options) (Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	s := &service{cfg: cfg}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := supervisor.NewMetrics(s.registry)

	registry := supervisor.NewRegistry(
		specialists.NewPlanner(),
		specialists.NewFlights(),
		specialists.NewHotels(),
		specialists.NewBudget(),
		specialists.NewBooking(),
	)

	decisionPolicy := opts.Policy
	if decisionPolicy == nil {
		decisionPolicy, err = buildPolicy(cfg)
		if err != nil {
			s.shutdown()
			return nil, err
		}
	}

	s.emitter = events.NewEmitter()
	s.exec = supervisor.NewExecutor(cfg, registry, decisionPolicy,
		supervisor.WithEmitter(s.emitter),
		supervisor.WithMetrics(metrics),
	)

	if opts.ConfigPath != "" {
		s.watcher, err = supervisor.WatchConfig(opts.ConfigPath, s.exec.SetConfig)
		if err != nil {
			slog.Warn("Config watch unavailable, tunables are fixed",
				"path", opts.ConfigPath, "error", err)
		}
	}

	s.initRouter()
	return s, nil
}

// buildPolicy selects the decision backend from config.
func buildPolicy(cfg supervisor.Config) (supervisor.DecisionPolicy, error) {
	switch cfg.PolicyBackend {
	case "openai":
		slog.Info("Using OpenAI decision backend")
		return policy.NewOpenAIPolicy(cfg.OpenAIModel)
	case "", "heuristic":
		slog.Info("Using heuristic decision backend")
		return policy.NewHeuristicPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy backend %q", cfg.PolicyBackend)
	}
}

func (s *service) Run() error {
	defer s.shutdown()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("Starting supervisor server", "port", s.cfg.Port)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Executor() *supervisor.Executor {
	return s.exec
}

// initTracer sets up the OTLP trace exporter. An empty endpoint leaves
// the global no-op tracer in place.
func (s *service) initTracer() (func(context.Context), error) {
	if s.cfg.OTelEndpoint == "" {
		slog.Info("OTel endpoint not configured, tracing disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.cfg.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("supervisor-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("supervisor-service"))

	limiter := middleware.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)
	routes.SetupRoutes(s.router, s.exec, limiter, s.registry)
}

func (s *service) shutdown() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			slog.Warn("Config watcher close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
