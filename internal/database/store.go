package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a row looked up by key does not exist
var ErrNotFound = errors.New("not found")

// Store persists sessions, enrichments and customer profiles in PostgreSQL
type Store struct {
	writeClient *WriteClient
	dimensions  int
}

// NewStore creates the store and its tables
func NewStore(ctx context.Context, writeClient *WriteClient, dimensions int) (*Store, error) {
	if writeClient == nil {
		return nil, fmt.Errorf("write client is required for store")
	}

	store := &Store{
		writeClient: writeClient,
		dimensions:  dimensions,
	}

	if err := store.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// CreateTables creates tables and indexes if they don't exist
func (s *Store) CreateTables(ctx context.Context) error {
	tables := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			session_key VARCHAR(255) UNIQUE NOT NULL,
			customer_key VARCHAR(255) NOT NULL DEFAULT '',
			messages JSONB NOT NULL DEFAULT '[]',
			conversation_text TEXT NOT NULL DEFAULT '',
			last_message_text TEXT NOT NULL DEFAULT '',
			customer_nickname VARCHAR(255) NOT NULL DEFAULT '',
			customer_user_id VARCHAR(255) NOT NULL DEFAULT '',
			customer_email VARCHAR(255) NOT NULL DEFAULT '',
			agent_nickname VARCHAR(255) NOT NULL DEFAULT '',
			agent_user_id VARCHAR(255) NOT NULL DEFAULT '',
			is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at TIMESTAMPTZ,
			total_messages INT NOT NULL DEFAULT 0,
			first_message_at TIMESTAMPTZ,
			last_message_at TIMESTAMPTZ,
			work_day VARCHAR(10) NOT NULL DEFAULT '',
			has_attachment BOOLEAN NOT NULL DEFAULT FALSE,
			first_response_minutes INT,
			enrichment_done BOOLEAN NOT NULL DEFAULT FALSE,
			enrichment_summary TEXT,
			category VARCHAR(50),
			sentiment_score REAL,
			urgency_score INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS analyses (
			id BIGSERIAL PRIMARY KEY,
			session_key VARCHAR(255) UNIQUE NOT NULL REFERENCES sessions(session_key),
			model VARCHAR(100) NOT NULL DEFAULT '',
			needs JSONB NOT NULL DEFAULT '[]',
			pain_points JSONB NOT NULL DEFAULT '[]',
			topics JSONB NOT NULL DEFAULT '[]',
			mentioned_products JSONB NOT NULL DEFAULT '[]',
			technical_issues JSONB NOT NULL DEFAULT '[]',
			feature_requests JSONB NOT NULL DEFAULT '[]',
			mood VARCHAR(20) NOT NULL DEFAULT 'neutral',
			satisfaction_level INT NOT NULL DEFAULT 3,
			summary TEXT NOT NULL DEFAULT '',
			resolution_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			raw_output JSONB,
			embedding vector(%d),
			analyzed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.dimensions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS customer_profiles (
			id BIGSERIAL PRIMARY KEY,
			customer_key VARCHAR(255) UNIQUE NOT NULL,
			primary_nickname VARCHAR(255) NOT NULL DEFAULT '',
			total_sessions INT NOT NULL DEFAULT 0,
			total_messages INT NOT NULL DEFAULT 0,
			first_contact TIMESTAMPTZ,
			last_contact TIMESTAMPTZ,
			overall_satisfaction REAL,
			common_issues JSONB NOT NULL DEFAULT '[]',
			behavior_pattern VARCHAR(20) NOT NULL DEFAULT 'new',
			profile_embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.dimensions),
	}

	for _, query := range tables {
		if _, err := s.writeClient.ExecuteWriteQuery(ctx, query); err != nil {
			return err
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_first_message_at ON sessions(first_message_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_message_at ON sessions(last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_customer_key ON sessions(customer_key)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_enrichment_done ON sessions(enrichment_done) WHERE enrichment_done = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_embedding ON analyses USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS idx_customer_profiles_embedding ON customer_profiles USING ivfflat (profile_embedding vector_cosine_ops) WITH (lists = 100)`,
	}

	for _, query := range indexes {
		// ivfflat creation can fail on an empty table with some pgvector versions; exact scans still work
		_, _ = s.writeClient.ExecuteWriteQuery(ctx, query)
	}

	return nil
}

