package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatlens/internal/app"
	"chatlens/internal/config"
)

func main() {
	batchSize := flag.Int("batch-size", 0, "Enrichments to embed per batch (default EMBEDDING_BATCH_SIZE)")
	all := flag.Bool("all", false, "Keep running batches until nothing is left")
	flag.Parse()

	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("job", "update-embeddings").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer a.Close()

	size := *batchSize
	if size <= 0 {
		size = cfg.EmbeddingBatchSize
	}

	logger.Info().Int("batch_size", size).Bool("all", *all).Msg("Updating embeddings")
	start := time.Now()

	var processed, updated, failed int
	for {
		result, err := a.Vectors.Backfill(ctx, size)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to update embeddings")
			a.Close()
			os.Exit(1)
		}
		processed += result.Processed
		updated += result.Updated
		failed += result.Failed

		// a batch where every row failed would loop forever
		if !*all || result.Processed == 0 || result.Updated == 0 {
			break
		}
	}

	logger.Info().
		Int("processed", processed).
		Int("updated", updated).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Embedding update completed")
}
