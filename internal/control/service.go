// Package control assembles the consumer and manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nypl/cancel-request-consumer/internal/core/config"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/infra/schema"
	"github.com/nypl/cancel-request-consumer/internal/infra/stream"
	"github.com/nypl/cancel-request-consumer/internal/processing/consumer"
	"github.com/nypl/cancel-request-consumer/internal/processing/health"
	"github.com/nypl/cancel-request-consumer/internal/processing/pipeline"
	"github.com/nypl/cancel-request-consumer/internal/processing/publisher"
)

// Service wires the stream source to the batch consumer.
type Service struct {
	cfg          config.AppConfig
	natsClient   *stream.Client
	source       *stream.Source
	consumer     *consumer.Consumer
	healthMon    *health.Monitor
	healthServer *health.Server
	closeTokens  func() error
	log          *slog.Logger
	done         chan struct{}
}

// NewService creates a Service with all dependencies initialized.
func NewService(ctx context.Context, cfg config.AppConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.API.Timeout)

	// 1. Credentials
	cache, closeTokens, err := NewTokenCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init token cache: %w", err)
	}

	// 2. Record pipeline
	p, err := pipeline.New(client, pipeline.Config{
		Profile:      pipeline.Profile(cfg.Pipeline.Profile),
		Lookup:       cfg.Pipeline.Lookup,
		Stages:       cfg.Pipeline.Stages,
		CheckoutURL:  cfg.API.CheckoutURL,
		CheckinURL:   cfg.API.CheckinURL,
		RecapURL:     cfg.API.RecapURL,
		SierraURL:    cfg.API.SierraURL,
		HoldPageSize: cfg.API.HoldPageSize,
	}, cache)
	if err != nil {
		closeTokens()
		return nil, err
	}

	// 3. Stream
	nc, err := stream.Connect(cfg.Stream.NATSURL)
	if err != nil {
		closeTokens()
		return nil, err
	}

	cleanup := func() {
		nc.Close()
		closeTokens()
	}

	if err := nc.EnsureStream(ctx, cfg.Stream.ResultStream); err != nil {
		cleanup()
		return nil, err
	}

	source, err := nc.NewSource(ctx, stream.SourceConfig{
		Stream:     cfg.Stream.InboundStream,
		Subject:    cfg.Stream.InboundSubject,
		Durable:    cfg.Stream.Durable,
		BatchSize:  cfg.Stream.BatchSize,
		FetchWait:  cfg.Stream.FetchWait,
		AckWait:    cfg.Stream.AckWait,
		MaxDeliver: cfg.Stream.MaxDeliver,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	registry := schema.NewRegistry(client, cfg.Schema.RegistryURL)
	monitor := health.NewMonitor(nc.Connected)

	// 4. Consumer
	c, err := consumer.New(consumer.Config{
		RecordSchema: cfg.Stream.RecordSchema,
		ResultStream: cfg.Stream.ResultStream,
		ResultSchema: cfg.Stream.ResultSchema,
	}, consumer.Deps{
		Decoder:   registry,
		Tokens:    cache,
		Fetchers:  NewFetchers(cfg, client),
		Pipeline:  p,
		Publisher: publisher.New(nc.NewWriter(registry)),
		Recorder:  monitor,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	slog.Info("Consumer initialized",
		"profile", cfg.Pipeline.Profile,
		"stages", p.Stages(),
		"inbound", cfg.Stream.InboundSubject,
		"results", cfg.Stream.ResultStream,
	)

	return &Service{
		cfg:          cfg,
		natsClient:   nc,
		source:       source,
		consumer:     c,
		healthMon:    monitor,
		healthServer: health.NewServer(monitor, cfg.Server.Port),
		closeTokens:  closeTokens,
		log:          slog.Default(),
		done:         make(chan struct{}),
	}, nil
}

// Start starts the health server and the batch loop.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		if err := s.source.Run(ctx, s.consumer.Handle); err != nil {
			s.log.Error("Batch loop stopped", "error", err)
		}
	}()

	return nil
}

// Stop waits for the in-flight batch and releases connections.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping consumer...")

	select {
	case <-s.done:
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for the in-flight batch")
	}

	s.natsClient.Close()
	if err := s.closeTokens(); err != nil {
		s.log.Warn("Failed to close token store", "error", err)
	}

	return s.healthServer.Stop(ctx)
}
