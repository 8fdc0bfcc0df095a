// Package embeddings implements similarity search, clustering and vector backfill
// over conversation summaries.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatlens/internal/analytics"
	"chatlens/internal/models"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultLimit     = 5
	maxLimit         = 50
	defaultBatchSize = 20
)

// ErrEmptyQuery is returned for a blank semantic search
var ErrEmptyQuery = errors.New("query is required")

// Embedder turns text into a fixed-size vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the persistence the similarity engine needs
type Store interface {
	PostgresStore
	NearestCustomers(ctx context.Context, customerKey string, limit int) ([]models.SimilarCustomer, error)
	ListEmbedded(ctx context.Context) ([]models.EmbeddedConversation, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingCandidate, error)
	UpdateEmbedding(ctx context.Context, sessionKey string, vector []float32) error
	GetEnrichment(ctx context.Context, sessionKey string) (*models.Enrichment, error)
}

// Mirror receives vectors written by the backfill
type Mirror interface {
	Mirror(ctx context.Context, e *models.Enrichment) error
}

// Service answers similarity queries and backfills missing vectors
type Service struct {
	store    Store
	index    Index
	mirror   Mirror
	embedder Embedder
	tracker  *analytics.Service
	delay    time.Duration
	logger   zerolog.Logger
	queries  singleflight.Group
}

// NewService creates the similarity engine. index defaults to pgvector when nil.
// delay paces provider calls during backfill.
func NewService(store Store, index Index, embedder Embedder, delay time.Duration, logger zerolog.Logger) *Service {
	if index == nil {
		index = NewPostgresIndex(store)
	}
	return &Service{
		store:    store,
		index:    index,
		embedder: embedder,
		delay:    delay,
		logger:   logger.With().Str("component", "embeddings").Logger(),
	}
}

// SetMirror mirrors backfilled vectors into an external index
func (s *Service) SetMirror(m Mirror) {
	s.mirror = m
}

// SetTracker counts embedding calls
func (s *Service) SetTracker(t *analytics.Service) {
	s.tracker = t
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// SimilarConversations returns the conversations closest to sessionKey, never including it
func (s *Service) SimilarConversations(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error) {
	limit = clampLimit(limit)
	results, err := s.index.NearestTo(ctx, sessionKey, limit)
	if err != nil {
		return nil, err
	}
	return presentConversations(results, sessionKey), nil
}

// SimilarCustomers returns the customer profiles closest to customerKey
func (s *Service) SimilarCustomers(ctx context.Context, customerKey string, limit int) ([]models.SimilarCustomer, error) {
	results, err := s.store.NearestCustomers(ctx, customerKey, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]models.SimilarCustomer, 0, len(results))
	for _, r := range results {
		if r.CustomerKey == customerKey {
			continue
		}
		r.Similarity = RoundScore(r.Similarity)
		out = append(out, r)
	}
	return out, nil
}

// SemanticSearch embeds the query and ranks every conversation against it.
// Concurrent identical queries share one embedding call.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) ([]models.SimilarConversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}
	limit = clampLimit(limit)

	v, err, _ := s.queries.Do(query, func() (interface{}, error) {
		s.tracker.Track(ctx, analytics.EventEmbeddingCall, "")
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.Search(ctx, v.([]float32), limit)
	if err != nil {
		return nil, err
	}
	return presentConversations(results, ""), nil
}

// Clusters returns pairs of conversations more similar than minSimilarity
func (s *Service) Clusters(ctx context.Context, minSimilarity float64) ([]models.ConversationPair, error) {
	rows, err := s.store.ListEmbedded(ctx)
	if err != nil {
		return nil, err
	}

	pairs := Clusters(rows, minSimilarity, MaxClusterPairs)
	for i := range pairs {
		pairs[i].Similarity = RoundScore(pairs[i].Similarity)
	}
	return pairs, nil
}

// Backfill embeds up to batchSize enrichments that have a summary but no vector,
// one provider call at a time. A failed row is logged and skipped.
func (s *Service) Backfill(ctx context.Context, batchSize int) (models.BackfillResult, error) {
	var result models.BackfillResult
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	candidates, err := s.store.ListMissingEmbeddings(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list missing embeddings: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Info().Msg("No analyses missing embeddings")
		return result, nil
	}

	s.logger.Info().Int("count", len(candidates)).Msg("Updating missing embeddings")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}

	for _, c := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}
		result.Processed++

		if err := s.backfillOne(ctx, c); err != nil {
			result.Failed++
			s.logger.Error().Err(err).Str("session_key", c.SessionKey).Msg("Failed to update embedding")
			continue
		}
		result.Updated++
	}

	s.tracker.TrackCount(ctx, analytics.EventEmbeddingBackfilled, result.Updated)
	s.logger.Info().
		Int("processed", result.Processed).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("Missing embeddings update completed")

	return result, nil
}

func (s *Service) backfillOne(ctx context.Context, c models.EmbeddingCandidate) error {
	s.tracker.Track(ctx, analytics.EventEmbeddingCall, c.SessionKey)
	vector, err := s.embedder.Embed(ctx, c.Summary)
	if err != nil {
		return err
	}
	if err := s.store.UpdateEmbedding(ctx, c.SessionKey, vector); err != nil {
		return err
	}

	if s.mirror != nil {
		e, err := s.store.GetEnrichment(ctx, c.SessionKey)
		if err == nil {
			if e.Embedding == nil {
				v := pgvector.NewVector(vector)
				e.Embedding = &v
			}
			err = s.mirror.Mirror(ctx, e)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("session_key", c.SessionKey).Msg("Failed to mirror backfilled vector")
		}
	}
	return nil
}

func presentConversations(results []models.SimilarConversation, exclude string) []models.SimilarConversation {
	out := make([]models.SimilarConversation, 0, len(results))
	for _, r := range results {
		if exclude != "" && r.SessionKey == exclude {
			continue
		}
		if r.Topics == nil {
			r.Topics = models.StringList{}
		}
		r.Similarity = RoundScore(r.Similarity)
		out = append(out, r)
	}
	return out
}
