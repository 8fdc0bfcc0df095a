// Package ingest folds queued chat events into session aggregates.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatlens/internal/analytics"
	"chatlens/internal/database"
	"chatlens/internal/keylock"
	"chatlens/internal/models"
	"chatlens/internal/queue"
	"chatlens/internal/session"

	"github.com/rs/zerolog"
)

// ErrMalformedEvent marks a message that can never be processed
var ErrMalformedEvent = errors.New("malformed event")

// Outcome tells what an event did to its session
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
)

// Store persists session aggregates
type Store interface {
	GetSession(ctx context.Context, sessionKey string) (*models.SessionAggregate, error)
	UpsertSession(ctx context.Context, agg *models.SessionAggregate) error
}

// Trigger decides whether a freshly written aggregate should be enriched
type Trigger interface {
	Consider(agg *models.SessionAggregate) bool
}

// Processor applies events to aggregates, one event per session at a time
type Processor struct {
	store      Store
	aggregator *session.Aggregator
	locks      *keylock.Locker
	trigger    Trigger
	tracker    *analytics.Service
	logger     zerolog.Logger
}

// NewProcessor creates a processor. trigger and tracker may be nil.
func NewProcessor(store Store, aggregator *session.Aggregator, locks *keylock.Locker, trigger Trigger, tracker *analytics.Service, logger zerolog.Logger) *Processor {
	return &Processor{
		store:      store,
		aggregator: aggregator,
		locks:      locks,
		trigger:    trigger,
		tracker:    tracker,
		logger:     logger.With().Str("component", "ingest").Logger(),
	}
}

// Decode parses a queue message into its raw event
func Decode(body []byte) (models.RawEvent, error) {
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := env.RawEvent
	if ev.SessionKey == "" {
		ev.SessionKey = env.SessionKey
	}
	if ev.SessionKey == "" {
		return models.RawEvent{}, fmt.Errorf("%w: missing session_key", ErrMalformedEvent)
	}
	if env.SessionKey != "" && env.SessionKey != ev.SessionKey {
		return models.RawEvent{}, fmt.Errorf("%w: envelope and event disagree on session_key", ErrMalformedEvent)
	}
	return ev, nil
}

// Handle is the queue handler: decode then process. Malformed events are
// marked for rejection; every other error leaves the message retryable.
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	ev, err := Decode(body)
	if err == nil {
		_, err = p.Process(ctx, ev)
	}

	if errors.Is(err, ErrMalformedEvent) {
		p.tracker.Track(ctx, analytics.EventPoisonMessage, ev.SessionKey)
		p.logger.Error().Err(err).Str("session_key", ev.SessionKey).Msg("Poison message")
		return fmt.Errorf("%w: %w", queue.ErrReject, err)
	}
	return err
}

// Process folds ev into its session under the session's lock and, after a
// successful write, offers the aggregate to the trigger.
func (p *Processor) Process(ctx context.Context, ev models.RawEvent) (Outcome, error) {
	key := ev.SessionKey
	unlock, err := p.locks.Lock(ctx, key)
	if err != nil {
		return "", err
	}

	outcome, next, err := func() (Outcome, *models.SessionAggregate, error) {
		defer unlock()
		return p.apply(ctx, ev)
	}()
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeDuplicate:
		p.tracker.Track(ctx, analytics.EventDuplicateIgnored, key)
		p.logger.Debug().Str("session_key", key).Str("fingerprint", ev.Fingerprint).Msg("Duplicate event ignored")
		return outcome, nil
	default:
		p.tracker.Track(ctx, analytics.EventSessionIngested, key)
	}

	if p.trigger != nil && p.trigger.Consider(next) {
		p.logger.Info().Str("session_key", key).Int("messages", next.TotalMessages).Msg("Enrichment scheduled")
	}

	p.logger.Debug().
		Str("session_key", key).
		Str("outcome", string(outcome)).
		Int("messages", next.TotalMessages).
		Msg("Event applied")

	return outcome, nil
}

func (p *Processor) apply(ctx context.Context, ev models.RawEvent) (Outcome, *models.SessionAggregate, error) {
	current, err := p.store.GetSession(ctx, ev.SessionKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return "", nil, fmt.Errorf("failed to load session %s: %w", ev.SessionKey, err)
	}

	next, duplicate, err := p.aggregator.Apply(current, ev)
	if err != nil {
		if errors.Is(err, session.ErrInvalidEvent) {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return "", nil, err
	}
	if duplicate {
		return OutcomeDuplicate, current, nil
	}

	if err := p.store.UpsertSession(ctx, next); err != nil {
		return "", nil, fmt.Errorf("failed to save session %s: %w", ev.SessionKey, err)
	}

	if current == nil {
		return OutcomeCreated, next, nil
	}
	return OutcomeUpdated, next, nil
}
