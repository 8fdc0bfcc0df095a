package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"chatlens/internal/app"
	"chatlens/internal/config"
)

func main() {
	sessionKey := flag.String("session", "", "Session key to analyze (required)")
	force := flag.Bool("force", false, "Replace an existing enrichment")
	flag.Parse()

	if *sessionKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("job", "analyze-session").Str("session_key", *sessionKey).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer a.Close()

	enrichment, err := a.Pipeline.AnalyzeSession(ctx, *sessionKey, *force)
	if err != nil {
		logger.Error().Err(err).Msg("Analysis failed")
		a.Close()
		os.Exit(1)
	}
	if enrichment == nil {
		logger.Info().Msg("Nothing to do: session has no text or is already enriched (use -force)")
		return
	}

	out, _ := json.MarshalIndent(enrichment, "", "  ")
	fmt.Println(string(out))
}
