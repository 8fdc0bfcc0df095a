package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatlens/internal/app"
	"chatlens/internal/config"
)

func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("job", "batch-analysis").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer a.Close()

	logger.Info().
		Int("batch_size", cfg.AnalysisBatchSize).
		Int("min_messages", cfg.AnalysisMinMessages).
		Str("provider", a.LLM.GetProviderName()).
		Msg("Starting batch analysis")
	start := time.Now()

	result, err := a.Batch.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Batch analysis failed")
		a.Close()
		os.Exit(1)
	}

	logger.Info().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Batch analysis completed")
}
