package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatlens/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

const enrichmentColumns = `id, session_key, model, needs, pain_points, topics, mentioned_products,
	technical_issues, feature_requests, mood, satisfaction_level, summary, resolution_status,
	raw_output, embedding, analyzed_at, created_at, updated_at`

// SaveEnrichment creates the enrichment row and marks the session done, atomically.
// When replace is false an existing row wins and created is false.
func (s *Store) SaveEnrichment(ctx context.Context, e *models.Enrichment, upd models.SessionUpdate, replace bool) (created bool, err error) {
	conflict := `ON CONFLICT (session_key) DO NOTHING`
	if replace {
		conflict = `ON CONFLICT (session_key) DO UPDATE SET
			model = EXCLUDED.model,
			needs = EXCLUDED.needs,
			pain_points = EXCLUDED.pain_points,
			topics = EXCLUDED.topics,
			mentioned_products = EXCLUDED.mentioned_products,
			technical_issues = EXCLUDED.technical_issues,
			feature_requests = EXCLUDED.feature_requests,
			mood = EXCLUDED.mood,
			satisfaction_level = EXCLUDED.satisfaction_level,
			summary = EXCLUDED.summary,
			resolution_status = EXCLUDED.resolution_status,
			raw_output = EXCLUDED.raw_output,
			embedding = EXCLUDED.embedding,
			analyzed_at = EXCLUDED.analyzed_at,
			updated_at = CURRENT_TIMESTAMP`
	}

	insert := `
		INSERT INTO analyses (
			session_key, model, needs, pain_points, topics, mentioned_products,
			technical_issues, feature_requests, mood, satisfaction_level, summary,
			resolution_status, raw_output, embedding, analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		` + conflict + `
		RETURNING id`

	update := `
		UPDATE sessions SET
			enrichment_done = TRUE,
			enrichment_summary = $2,
			category = $3,
			sentiment_score = $4,
			urgency_score = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE session_key = $1`

	err = s.writeClient.WithTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, insert,
			e.SessionKey, e.Model, e.Needs, e.PainPoints, e.Topics, e.MentionedProducts,
			e.TechnicalIssues, e.FeatureRequests, e.Mood, e.SatisfactionLevel, e.Summary,
			e.ResolutionStatus, e.RawOutput, e.Embedding, e.AnalyzedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			// row already exists
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert enrichment: %w", err)
		}
		e.ID = id
		created = true

		if _, err := tx.ExecContext(ctx, update, e.SessionKey, upd.Summary, upd.Category, upd.SentimentScore, upd.UrgencyScore); err != nil {
			return fmt.Errorf("failed to mark session enriched: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save enrichment for %s: %w", e.SessionKey, err)
	}
	return created, nil
}

// GetEnrichment loads the enrichment of a session
func (s *Store) GetEnrichment(ctx context.Context, sessionKey string) (*models.Enrichment, error) {
	var e models.Enrichment
	query := `SELECT ` + enrichmentColumns + ` FROM analyses WHERE session_key = $1`
	if err := s.writeClient.ExecuteWriteQuerySingle(ctx, &e, query, sessionKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get enrichment %s: %w", sessionKey, err)
	}
	return &e, nil
}

// ListMissingEmbeddings returns enrichments with a summary but no vector
func (s *Store) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingCandidate, error) {
	query := `SELECT session_key, summary, mood FROM analyses
		WHERE embedding IS NULL AND summary <> ''
		ORDER BY id
		LIMIT $1`

	var rows []models.EmbeddingCandidate
	if err := s.writeClient.ExecuteWriteQueryWithResult(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list missing embeddings: %w", err)
	}
	return rows, nil
}

// UpdateEmbedding stores the vector of an enrichment in place
func (s *Store) UpdateEmbedding(ctx context.Context, sessionKey string, vector []float32) error {
	query := `UPDATE analyses SET embedding = $2, updated_at = CURRENT_TIMESTAMP WHERE session_key = $1`
	res, err := s.writeClient.ExecuteWriteQuery(ctx, query, sessionKey, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to update embedding for %s: %w", sessionKey, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// NearestSessions ranks other enrichments by cosine similarity to the session's vector.
// A session without a vector yields no rows.
func (s *Store) NearestSessions(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error) {
	query := `
		SELECT a.session_key, a.summary, a.mood, a.topics, a.resolution_status,
			1 - (a.embedding <=> q.embedding) AS similarity
		FROM analyses a
		CROSS JOIN (SELECT embedding FROM analyses WHERE session_key = $1 AND embedding IS NOT NULL) q
		WHERE a.session_key <> $1 AND a.embedding IS NOT NULL
		ORDER BY a.embedding <=> q.embedding
		LIMIT $2`

	results := []models.SimilarConversation{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &results, query, sessionKey, limit); err != nil {
		return nil, fmt.Errorf("failed to find similar conversations: %w", err)
	}
	return results, nil
}

// SearchSessions ranks all enrichments by cosine similarity to vector
func (s *Store) SearchSessions(ctx context.Context, vector []float32, limit int) ([]models.SimilarConversation, error) {
	query := `
		SELECT session_key, summary, mood, topics, resolution_status,
			1 - (embedding <=> $1) AS similarity
		FROM analyses
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`

	results := []models.SimilarConversation{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &results, query, pgvector.NewVector(vector), limit); err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}
	return results, nil
}

// ListEmbedded returns every enrichment with a vector, ordered by id
func (s *Store) ListEmbedded(ctx context.Context) ([]models.EmbeddedConversation, error) {
	query := `SELECT id, session_key, summary, topics, embedding FROM analyses WHERE embedding IS NOT NULL ORDER BY id`

	var rows []struct {
		ID         int64             `db:"id"`
		SessionKey string            `db:"session_key"`
		Summary    string            `db:"summary"`
		Topics     models.StringList `db:"topics"`
		Embedding  pgvector.Vector   `db:"embedding"`
	}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list embedded conversations: %w", err)
	}

	result := make([]models.EmbeddedConversation, len(rows))
	for i, r := range rows {
		result[i] = models.EmbeddedConversation{
			ID:         r.ID,
			SessionKey: r.SessionKey,
			Summary:    r.Summary,
			Topics:     r.Topics,
			Vector:     r.Embedding.Slice(),
		}
	}
	return result, nil
}

