package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatlens/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Batch enriches pending sessions one at a time, paced against the provider
type Batch struct {
	pipeline    *Pipeline
	store       Store
	minMessages int
	size        int
	delay       time.Duration
	logger      zerolog.Logger
}

// NewBatch creates a batch runner. delay is the pause between provider calls.
func NewBatch(pipeline *Pipeline, store Store, minMessages, size int, delay time.Duration, logger zerolog.Logger) *Batch {
	return &Batch{
		pipeline:    pipeline,
		store:       store,
		minMessages: minMessages,
		size:        size,
		delay:       delay,
		logger:      logger.With().Str("component", "batch_analysis").Logger(),
	}
}

// Run enriches up to size unenriched sessions, most recently active first.
// A failure on one session is logged and the batch continues.
func (b *Batch) Run(ctx context.Context) (models.BatchResult, error) {
	var result models.BatchResult

	sessions, err := b.store.ListUnenriched(ctx, b.minMessages, b.size)
	if err != nil {
		return result, fmt.Errorf("failed to list unenriched sessions: %w", err)
	}
	if len(sessions) == 0 {
		b.logger.Info().Msg("No unanalyzed sessions found")
		return result, nil
	}

	b.logger.Info().Int("count", len(sessions)).Msg("Starting batch analysis")

	limiter := newPacer(b.delay)
	for _, sess := range sessions {
		if err := limiter.Wait(ctx); err != nil {
			b.logger.Warn().Err(err).Msg("Batch analysis interrupted")
			return result, err
		}

		result.Attempted++
		_, err := b.pipeline.AnalyzeSession(ctx, sess.SessionKey, false)
		if errors.Is(err, ErrInProgress) {
			result.Skipped++
			b.logger.Debug().Str("session_key", sess.SessionKey).Msg("Session already being analyzed")
			continue
		}
		if err != nil {
			result.Failed++
			b.logger.Error().Err(err).Str("session_key", sess.SessionKey).Msg("Failed to analyze session")
			continue
		}
		result.Succeeded++
	}

	b.logger.Info().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Batch analysis completed")

	return result, nil
}

// newPacer allows one call immediately and then one per delay
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
