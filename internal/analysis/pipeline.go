// Package analysis enriches stored sessions with model-generated insight.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatlens/internal/analytics"
	"chatlens/internal/models"
	"chatlens/internal/utils"

	"github.com/jmoiron/sqlx/types"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

// fallback embedding input when the model returned no summary
const embeddingPrefixChars = 2000

// ErrInProgress is returned when another run is already enriching the session
var ErrInProgress = errors.New("enrichment already in progress")

// Completer turns a prompt into free text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Embedder turns text into a fixed-size vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the persistence the pipeline needs
type Store interface {
	GetSession(ctx context.Context, sessionKey string) (*models.SessionAggregate, error)
	SaveEnrichment(ctx context.Context, e *models.Enrichment, upd models.SessionUpdate, replace bool) (bool, error)
	ListUnenriched(ctx context.Context, minMessages, limit int) ([]models.SessionAggregate, error)
}

// ProfileRefresher recomputes a customer rollup after a session is enriched
type ProfileRefresher interface {
	Refresh(ctx context.Context, customerKey string) error
}

// VectorMirror copies an enrichment vector into an external index
type VectorMirror interface {
	Mirror(ctx context.Context, e *models.Enrichment) error
}

// Pipeline runs prompt, parse, derive, embed and persist for one session
type Pipeline struct {
	store     Store
	completer Completer
	embedder  Embedder
	profiles  ProfileRefresher
	mirror    VectorMirror
	tracker   *analytics.Service
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// Option configures optional pipeline collaborators
type Option func(*Pipeline)

// WithProfiles refreshes the customer profile after every enrichment
func WithProfiles(p ProfileRefresher) Option {
	return func(pl *Pipeline) { pl.profiles = p }
}

// WithMirror mirrors vectors into an external index
func WithMirror(m VectorMirror) Option {
	return func(pl *Pipeline) { pl.mirror = m }
}

// WithTracker counts provider calls and outcomes
func WithTracker(t *analytics.Service) Option {
	return func(pl *Pipeline) { pl.tracker = t }
}

// NewPipeline creates the enrichment pipeline
func NewPipeline(store Store, completer Completer, embedder Embedder, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		completer: completer,
		embedder:  embedder,
		logger:    logger.With().Str("component", "analysis").Logger(),
		now:       time.Now,
		running:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeSession enriches one session. It returns (nil, nil) when there is
// nothing to do: no conversation text yet, or already enriched and force is false.
// With force an existing enrichment is replaced. Runs for the same session never
// overlap: the trigger, the batch and manual requests all share this guard.
func (p *Pipeline) AnalyzeSession(ctx context.Context, sessionKey string, force bool) (*models.Enrichment, error) {
	if !p.claim(sessionKey) {
		return nil, ErrInProgress
	}
	defer p.release(sessionKey)

	e, err := p.analyze(ctx, sessionKey, force)
	switch {
	case err != nil:
		p.tracker.Track(ctx, analytics.EventEnrichmentFailed, sessionKey)
	case e != nil:
		p.tracker.Track(ctx, analytics.EventEnrichmentCompleted, sessionKey)
	}
	return e, err
}

func (p *Pipeline) claim(sessionKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.running[sessionKey]; busy {
		return false
	}
	p.running[sessionKey] = struct{}{}
	return true
}

func (p *Pipeline) release(sessionKey string) {
	p.mu.Lock()
	delete(p.running, sessionKey)
	p.mu.Unlock()
}

func (p *Pipeline) analyze(ctx context.Context, sessionKey string, force bool) (*models.Enrichment, error) {
	sess, err := p.store.GetSession(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if strings.TrimSpace(sess.ConversationText) == "" {
		p.logger.Debug().Str("session_key", sessionKey).Msg("No conversation text, skipping")
		return nil, nil
	}
	if sess.EnrichmentDone && !force {
		return nil, nil
	}

	p.tracker.Track(ctx, analytics.EventCompletionCall, sessionKey)
	output, err := p.completer.Complete(ctx, BuildPrompt(sess.ConversationText))
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	result, err := ParseCompletion(output)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion: %w", err)
	}

	enrichment := &models.Enrichment{
		SessionKey:        sessionKey,
		Model:             p.completer.ModelName(),
		Needs:             result.CustomerNeeds,
		PainPoints:        result.PainPoints,
		Topics:            result.MainTopics,
		MentionedProducts: result.MentionedProducts,
		TechnicalIssues:   result.TechnicalIssues,
		FeatureRequests:   result.FeatureRequests,
		Mood:              result.CustomerMood,
		SatisfactionLevel: result.SatisfactionLevel,
		Summary:           result.ConversationSummary,
		ResolutionStatus:  result.ResolutionStatus,
		RawOutput:         types.JSONText(raw),
		AnalyzedAt:        p.now().UTC(),
	}

	// a missing vector is backfilled later
	if vec, err := p.embed(ctx, sessionKey, EmbeddingInput(result.ConversationSummary, sess.ConversationText)); err != nil {
		p.logger.Warn().Err(err).Str("session_key", sessionKey).Msg("Embedding failed, storing enrichment without vector")
	} else {
		v := pgvector.NewVector(vec)
		enrichment.Embedding = &v
	}

	update := models.SessionUpdate{
		Summary:        result.ConversationSummary,
		Category:       Category(result.MainTopics, result.TechnicalIssues),
		SentimentScore: SentimentScore(result.CustomerMood),
		UrgencyScore:   UrgencyScore(sess.ConversationText, result.SatisfactionLevel),
	}

	created, err := p.store.SaveEnrichment(ctx, enrichment, update, force)
	if err != nil {
		return nil, err
	}
	if !created {
		p.logger.Info().Str("session_key", sessionKey).Msg("Enrichment already exists")
		return nil, nil
	}

	p.logger.Info().
		Str("session_key", sessionKey).
		Str("mood", enrichment.Mood).
		Str("category", update.Category).
		Int("urgency", update.UrgencyScore).
		Msg("Completed session analysis")

	p.afterSave(ctx, sess, enrichment)
	return enrichment, nil
}

func (p *Pipeline) embed(ctx context.Context, sessionKey, text string) ([]float32, error) {
	if p.embedder == nil || text == "" {
		return nil, fmt.Errorf("no embedding input")
	}
	p.tracker.Track(ctx, analytics.EventEmbeddingCall, sessionKey)
	return p.embedder.Embed(ctx, text)
}

// afterSave runs best-effort follow-ups; their failures never fail the enrichment
func (p *Pipeline) afterSave(ctx context.Context, sess *models.SessionAggregate, e *models.Enrichment) {
	if p.mirror != nil && e.HasEmbedding() {
		if err := p.mirror.Mirror(ctx, e); err != nil {
			p.logger.Warn().Err(err).Str("session_key", e.SessionKey).Msg("Failed to mirror vector")
		}
	}
	if p.profiles != nil && sess.CustomerKey != "" {
		if err := p.profiles.Refresh(ctx, sess.CustomerKey); err != nil {
			p.logger.Warn().Err(err).Str("customer_key", sess.CustomerKey).Msg("Failed to refresh customer profile")
		}
	}
}

// EmbeddingInput is the summary, or a prefix of the conversation when there is none
func EmbeddingInput(summary, conversationText string) string {
	if s := strings.TrimSpace(summary); s != "" {
		return s
	}
	return strings.TrimSpace(utils.Truncate(conversationText, embeddingPrefixChars))
}
