package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatlens/internal/models"
)

// UpsertCustomerProfile writes a recomputed customer rollup by customer_key
func (s *Store) UpsertCustomerProfile(ctx context.Context, p *models.CustomerProfile) error {
	query := `
		INSERT INTO customer_profiles (
			customer_key, primary_nickname, total_sessions, total_messages, first_contact,
			last_contact, overall_satisfaction, common_issues, behavior_pattern, profile_embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_key) DO UPDATE SET
			primary_nickname = EXCLUDED.primary_nickname,
			total_sessions = EXCLUDED.total_sessions,
			total_messages = EXCLUDED.total_messages,
			first_contact = EXCLUDED.first_contact,
			last_contact = EXCLUDED.last_contact,
			overall_satisfaction = EXCLUDED.overall_satisfaction,
			common_issues = EXCLUDED.common_issues,
			behavior_pattern = EXCLUDED.behavior_pattern,
			profile_embedding = COALESCE(EXCLUDED.profile_embedding, customer_profiles.profile_embedding),
			updated_at = CURRENT_TIMESTAMP`

	_, err := s.writeClient.ExecuteWriteQuery(ctx, query,
		p.CustomerKey, p.PrimaryNickname, p.TotalSessions, p.TotalMessages, p.FirstContact,
		p.LastContact, p.OverallSatisfaction, p.CommonIssues, p.BehaviorPattern, p.ProfileEmbedding,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer profile %s: %w", p.CustomerKey, err)
	}
	return nil
}

// GetCustomerProfile loads a customer rollup
func (s *Store) GetCustomerProfile(ctx context.Context, customerKey string) (*models.CustomerProfile, error) {
	var p models.CustomerProfile
	query := `SELECT id, customer_key, primary_nickname, total_sessions, total_messages, first_contact,
		last_contact, overall_satisfaction, common_issues, behavior_pattern, profile_embedding,
		created_at, updated_at
		FROM customer_profiles WHERE customer_key = $1`
	if err := ExecuteReadOnlyQuerySingle(ctx, s.writeClient.GetDB(), &p, query, customerKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer profile %s: %w", customerKey, err)
	}
	return &p, nil
}

// NearestCustomers ranks other customer profiles by cosine similarity of their profile vectors
func (s *Store) NearestCustomers(ctx context.Context, customerKey string, limit int) ([]models.SimilarCustomer, error) {
	query := `
		SELECT c.customer_key, c.primary_nickname, c.total_sessions, c.overall_satisfaction,
			c.common_issues, c.behavior_pattern,
			1 - (c.profile_embedding <=> q.profile_embedding) AS similarity
		FROM customer_profiles c
		CROSS JOIN (SELECT profile_embedding FROM customer_profiles
			WHERE customer_key = $1 AND profile_embedding IS NOT NULL) q
		WHERE c.customer_key <> $1 AND c.profile_embedding IS NOT NULL
		ORDER BY c.profile_embedding <=> q.profile_embedding
		LIMIT $2`

	results := []models.SimilarCustomer{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &results, query, customerKey, limit); err != nil {
		return nil, fmt.Errorf("failed to find similar customers: %w", err)
	}
	return results, nil
}
