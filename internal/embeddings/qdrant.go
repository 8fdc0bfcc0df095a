package embeddings

import (
	"context"
	"fmt"

	"chatlens/internal/models"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

// qdrantAPI is the part of *qdrant.Client the index uses
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// VectorSource loads the stored vector of a conversation
type VectorSource interface {
	GetEnrichment(ctx context.Context, sessionKey string) (*models.Enrichment, error)
}

// QdrantIndex mirrors conversation vectors into a Qdrant collection and serves
// nearest-neighbour queries from it
type QdrantIndex struct {
	client     qdrantAPI
	source     VectorSource
	collection string
	logger     zerolog.Logger
}

// QdrantConfig holds the connection settings
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Dimensions int
}

// NewQdrantIndex connects to Qdrant and ensures the cosine collection exists
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, source VectorSource, logger zerolog.Logger) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := newQdrantIndex(client, cfg.Collection, source, logger)
	if err := idx.ensureCollection(ctx, cfg.Dimensions); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func newQdrantIndex(client qdrantAPI, collection string, source VectorSource, logger zerolog.Logger) *QdrantIndex {
	return &QdrantIndex{
		client:     client,
		source:     source,
		collection: collection,
		logger:     logger.With().Str("component", "qdrant").Logger(),
	}
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dimensions int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	q.logger.Info().Str("collection", q.collection).Int("dimensions", dimensions).Msg("Created qdrant collection")
	return nil
}

// PointID derives a stable point id from a session key
func PointID(sessionKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("chatlens:session:"+sessionKey)).String()
}

// Mirror upserts the enrichment's vector with its display payload
func (q *QdrantIndex) Mirror(ctx context.Context, e *models.Enrichment) error {
	if !e.HasEmbedding() {
		return nil
	}

	topics := make([]any, len(e.Topics))
	for i, t := range e.Topics {
		topics[i] = t
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(e.SessionKey)),
			Vectors: qdrant.NewVectors(e.Embedding.Slice()...),
			Payload: qdrant.NewValueMap(map[string]any{
				"session_key":       e.SessionKey,
				"summary":           e.Summary,
				"mood":              e.Mood,
				"resolution_status": e.ResolutionStatus,
				"topics":            topics,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point for %s: %w", e.SessionKey, err)
	}
	return nil
}

// NearestTo implements Index. The query vector is read from the store.
func (q *QdrantIndex) NearestTo(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error) {
	e, err := q.source.GetEnrichment(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if !e.HasEmbedding() {
		return []models.SimilarConversation{}, nil
	}
	return q.query(ctx, e.Embedding.Slice(), limit, sessionKey)
}

// Search implements Index
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int) ([]models.SimilarConversation, error) {
	return q.query(ctx, vector, limit, "")
}

func (q *QdrantIndex) query(ctx context.Context, vector []float32, limit int, exclude string) ([]models.SimilarConversation, error) {
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if exclude != "" {
		req.Filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewMatch("session_key", exclude)},
		}
	}

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	results := make([]models.SimilarConversation, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hit := models.SimilarConversation{
			SessionKey:       payload["session_key"].GetStringValue(),
			Summary:          payload["summary"].GetStringValue(),
			Mood:             payload["mood"].GetStringValue(),
			ResolutionStatus: payload["resolution_status"].GetStringValue(),
			Topics:           models.StringList{},
			Similarity:       float64(p.GetScore()),
		}
		for _, v := range payload["topics"].GetListValue().GetValues() {
			hit.Topics = append(hit.Topics, v.GetStringValue())
		}
		results = append(results, hit)
	}
	return results, nil
}

// Close releases the gRPC connection
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
