// Package app assembles the services shared by every chatlens binary.
package app

import (
	"context"
	"fmt"
	"time"

	"chatlens/internal/analysis"
	"chatlens/internal/analytics"
	"chatlens/internal/config"
	"chatlens/internal/customers"
	"chatlens/internal/database"
	"chatlens/internal/embeddings"
	"chatlens/internal/openai"

	"github.com/rs/zerolog"
)

// App holds the persistence, provider and enrichment services
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	WriteClient *database.WriteClient
	Store       *database.Store
	Tracker     *analytics.Service
	LLM         *openai.Client
	Profiles    *customers.Service
	Pipeline    *analysis.Pipeline
	Batch       *analysis.Batch
	Vectors     *embeddings.Service
	Qdrant      *embeddings.QdrantIndex // nil unless QDRANT_HOST is set and reachable
}

// New connects to Postgres, creates the schema, and wires the enrichment and similarity services
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	writeClient, err := database.NewWriteClient(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := database.NewStore(ctx, writeClient, cfg.EmbeddingDimensions)
	if err != nil {
		_ = writeClient.Close()
		return nil, fmt.Errorf("failed to initialise store: %w", err)
	}

	llm, err := openai.NewClient(cfg, logger)
	if err != nil {
		_ = writeClient.Close()
		return nil, err
	}

	a := &App{
		Config:      cfg,
		Logger:      logger,
		WriteClient: writeClient,
		Store:       store,
		LLM:         llm,
		Profiles:    customers.NewService(store, logger),
	}

	// counters are best-effort; the pipeline runs without them
	if tracker, err := analytics.NewService(ctx, writeClient, logger); err != nil {
		logger.Warn().Err(err).Msg("Analytics disabled")
	} else {
		a.Tracker = tracker
	}

	var index embeddings.Index
	if cfg.UseQdrant() {
		q, err := embeddings.NewQdrantIndex(ctx, embeddings.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dimensions: cfg.EmbeddingDimensions,
		}, store, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Qdrant unavailable, using pgvector")
		} else {
			a.Qdrant = q
			index = q
		}
	}

	opts := []analysis.Option{
		analysis.WithProfiles(a.Profiles),
		analysis.WithTracker(a.Tracker),
	}
	if a.Qdrant != nil {
		opts = append(opts, analysis.WithMirror(a.Qdrant))
	}
	a.Pipeline = analysis.NewPipeline(store, llm, llm, logger, opts...)
	a.Batch = analysis.NewBatch(a.Pipeline, store, cfg.AnalysisMinMessages, cfg.AnalysisBatchSize,
		time.Duration(cfg.AnalysisBatchDelayMs)*time.Millisecond, logger)

	a.Vectors = embeddings.NewService(store, index, llm,
		time.Duration(cfg.EmbeddingBatchDelayMs)*time.Millisecond, logger)
	a.Vectors.SetTracker(a.Tracker)
	if a.Qdrant != nil {
		a.Vectors.SetMirror(a.Qdrant)
	}

	return a, nil
}

// Close releases the database pool and the Qdrant connection
func (a *App) Close() {
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing qdrant client")
		}
	}
	if err := a.WriteClient.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing database")
	}
}
