package embeddings

import (
	"context"

	"chatlens/internal/models"
)

// Index answers nearest-neighbour queries over conversation vectors
type Index interface {
	// NearestTo ranks other conversations by similarity to sessionKey's vector
	NearestTo(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error)
	// Search ranks every conversation by similarity to vector
	Search(ctx context.Context, vector []float32, limit int) ([]models.SimilarConversation, error)
}

// PostgresStore is the pgvector-backed subset of the database store
type PostgresStore interface {
	NearestSessions(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error)
	SearchSessions(ctx context.Context, vector []float32, limit int) ([]models.SimilarConversation, error)
}

// PostgresIndex serves queries with pgvector's cosine distance operator
type PostgresIndex struct {
	store PostgresStore
}

// NewPostgresIndex wraps the store
func NewPostgresIndex(store PostgresStore) *PostgresIndex {
	return &PostgresIndex{store: store}
}

// NearestTo implements Index
func (p *PostgresIndex) NearestTo(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error) {
	return p.store.NearestSessions(ctx, sessionKey, limit)
}

// Search implements Index
func (p *PostgresIndex) Search(ctx context.Context, vector []float32, limit int) ([]models.SimilarConversation, error) {
	return p.store.SearchSessions(ctx, vector, limit)
}
