package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatlens/internal/models"

	"github.com/lib/pq"
)

const sessionColumns = `id, session_key, customer_key, messages, conversation_text, last_message_text,
	customer_nickname, customer_user_id, customer_email, agent_nickname, agent_user_id,
	is_resolved, resolved_at, total_messages, first_message_at, last_message_at, work_day,
	has_attachment, first_response_minutes, enrichment_done, enrichment_summary, category,
	sentiment_score, urgency_score, created_at, updated_at`

// UpsertSession inserts or merges an aggregate by session_key.
// is_resolved never goes back to false and resolved_at is never moved once set.
// Enrichment fields are left untouched.
func (s *Store) UpsertSession(ctx context.Context, agg *models.SessionAggregate) error {
	query := `
		INSERT INTO sessions (
			session_key, customer_key, messages, conversation_text, last_message_text,
			customer_nickname, customer_user_id, customer_email, agent_nickname, agent_user_id,
			is_resolved, resolved_at, total_messages, first_message_at, last_message_at, work_day,
			has_attachment, first_response_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (session_key) DO UPDATE SET
			customer_key = EXCLUDED.customer_key,
			messages = EXCLUDED.messages,
			conversation_text = EXCLUDED.conversation_text,
			last_message_text = EXCLUDED.last_message_text,
			customer_nickname = EXCLUDED.customer_nickname,
			customer_user_id = EXCLUDED.customer_user_id,
			customer_email = EXCLUDED.customer_email,
			agent_nickname = EXCLUDED.agent_nickname,
			agent_user_id = EXCLUDED.agent_user_id,
			is_resolved = sessions.is_resolved OR EXCLUDED.is_resolved,
			resolved_at = COALESCE(sessions.resolved_at, EXCLUDED.resolved_at),
			total_messages = EXCLUDED.total_messages,
			first_message_at = EXCLUDED.first_message_at,
			last_message_at = EXCLUDED.last_message_at,
			work_day = EXCLUDED.work_day,
			has_attachment = EXCLUDED.has_attachment,
			first_response_minutes = EXCLUDED.first_response_minutes,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`

	var row struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.writeClient.ExecuteWriteQuerySingle(ctx, &row, query,
		agg.SessionKey, agg.CustomerKey, agg.Messages, agg.ConversationText, agg.LastMessageText,
		agg.CustomerNickname, agg.CustomerUserID, agg.CustomerEmail, agg.AgentNickname, agg.AgentUserID,
		agg.IsResolved, agg.ResolvedAt, agg.TotalMessages, agg.FirstMessageAt, agg.LastMessageAt, agg.WorkDay,
		agg.HasAttachment, agg.FirstResponseMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", agg.SessionKey, err)
	}

	agg.ID = row.ID
	agg.CreatedAt = row.CreatedAt
	agg.UpdatedAt = row.UpdatedAt
	return nil
}

// GetSession loads one aggregate by session_key
func (s *Store) GetSession(ctx context.Context, sessionKey string) (*models.SessionAggregate, error) {
	var agg models.SessionAggregate
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_key = $1`
	if err := s.writeClient.ExecuteWriteQuerySingle(ctx, &agg, query, sessionKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionKey, err)
	}
	return &agg, nil
}

// ListUnenriched returns up to limit sessions awaiting enrichment, most recently active first
func (s *Store) ListUnenriched(ctx context.Context, minMessages, limit int) ([]models.SessionAggregate, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE enrichment_done = FALSE AND total_messages >= $1 AND conversation_text <> ''
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2`

	var sessions []models.SessionAggregate
	if err := s.writeClient.ExecuteWriteQueryWithResult(ctx, &sessions, query, minMessages, limit); err != nil {
		return nil, fmt.Errorf("failed to list unenriched sessions: %w", err)
	}
	return sessions, nil
}

// ListSessions returns a page of sessions, most recently active first
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]models.SessionAggregate, int, error) {
	var total int
	if err := ExecuteReadOnlyQuerySingle(ctx, s.writeClient.GetDB(), &total, `SELECT COUNT(*) FROM sessions`); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $1 OFFSET $2`

	sessions := []models.SessionAggregate{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &sessions, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// ListSessionsInWindow returns sessions whose first message falls in [start, end), with their enrichment
func (s *Store) ListSessionsInWindow(ctx context.Context, start, end time.Time) ([]models.SessionWithEnrichment, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE first_message_at >= $1 AND first_message_at < $2
		ORDER BY first_message_at`

	var sessions []models.SessionAggregate
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &sessions, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to list sessions in window: %w", err)
	}
	return s.attachEnrichments(ctx, sessions)
}

// ListCustomerSessions returns every session of a customer with its enrichment
func (s *Store) ListCustomerSessions(ctx context.Context, customerKey string) ([]models.SessionWithEnrichment, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE customer_key = $1
		ORDER BY first_message_at`

	var sessions []models.SessionAggregate
	if err := s.writeClient.ExecuteWriteQueryWithResult(ctx, &sessions, query, customerKey); err != nil {
		return nil, fmt.Errorf("failed to list sessions for customer: %w", err)
	}
	return s.attachEnrichments(ctx, sessions)
}

// attachEnrichments left-joins enrichments onto sessions
func (s *Store) attachEnrichments(ctx context.Context, sessions []models.SessionAggregate) ([]models.SessionWithEnrichment, error) {
	result := make([]models.SessionWithEnrichment, len(sessions))
	if len(sessions) == 0 {
		return result, nil
	}

	keys := make([]string, len(sessions))
	for i, sess := range sessions {
		keys[i] = sess.SessionKey
	}

	query := `SELECT ` + enrichmentColumns + ` FROM analyses WHERE session_key = ANY($1)`
	var enrichments []models.Enrichment
	if err := s.writeClient.ExecuteWriteQueryWithResult(ctx, &enrichments, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("failed to load enrichments: %w", err)
	}

	byKey := make(map[string]*models.Enrichment, len(enrichments))
	for i := range enrichments {
		byKey[enrichments[i].SessionKey] = &enrichments[i]
	}

	for i, sess := range sessions {
		result[i] = models.SessionWithEnrichment{Session: sess, Enrichment: byKey[sess.SessionKey]}
	}
	return result, nil
}
