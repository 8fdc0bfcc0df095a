package analysis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"chatlens/internal/models"

	"github.com/rs/zerolog"
)

// Analyzer enriches one session
type Analyzer interface {
	AnalyzeSession(ctx context.Context, sessionKey string, force bool) (*models.Enrichment, error)
}

// Trigger schedules background enrichment once a session has enough messages.
// At most one enrichment per session runs at a time in this process.
type Trigger struct {
	analyzer    Analyzer
	minMessages int
	sampleRate  float64
	timeout     time.Duration
	logger      zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
	random   func() float64
}

// NewTrigger creates the trigger policy. sampleRate in (0,1) admits only that
// fraction of eligible requests; 1 or more admits every one.
func NewTrigger(analyzer Analyzer, minMessages int, sampleRate float64, timeout time.Duration, logger zerolog.Logger) *Trigger {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Trigger{
		analyzer:    analyzer,
		minMessages: minMessages,
		sampleRate:  sampleRate,
		timeout:     timeout,
		logger:      logger.With().Str("component", "analysis_trigger").Logger(),
		inFlight:    make(map[string]struct{}),
		random:      rand.Float64,
	}
}

// Eligible reports whether the session qualifies for enrichment
func (t *Trigger) Eligible(agg *models.SessionAggregate) bool {
	return agg != nil && !agg.EnrichmentDone && agg.TotalMessages >= t.minMessages
}

// Consider starts enrichment in the background when the session is eligible
// and not already being enriched. It never blocks on the enrichment itself.
func (t *Trigger) Consider(agg *models.SessionAggregate) bool {
	if !t.Eligible(agg) {
		return false
	}
	if t.sampleRate < 1 && t.random() >= t.sampleRate {
		return false
	}

	key := agg.SessionKey
	t.mu.Lock()
	if _, busy := t.inFlight[key]; busy {
		t.mu.Unlock()
		return false
	}
	t.inFlight[key] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(key)
	return true
}

func (t *Trigger) run(key string) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		delete(t.inFlight, key)
		t.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("session_key", key).Msg("Enrichment panicked")
		}
	}()

	// detached from the delivery that triggered it
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	_, err := t.analyzer.AnalyzeSession(ctx, key, false)
	switch {
	case errors.Is(err, ErrInProgress):
		t.logger.Debug().Str("session_key", key).Msg("Enrichment already running elsewhere")
	case err != nil:
		t.logger.Error().Err(err).Str("session_key", key).Msg("Background enrichment failed")
	}
}

// InFlight reports whether an enrichment for key is running
func (t *Trigger) InFlight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inFlight[key]
	return ok
}

// Wait blocks until every started enrichment finished or ctx is done
func (t *Trigger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
