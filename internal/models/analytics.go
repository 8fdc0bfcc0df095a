package models

import "time"

// AnalyticsEvent represents a tracked pipeline event
type AnalyticsEvent struct {
	ID        int       `db:"id" json:"id"`
	EventType string    `db:"event_type" json:"event_type"`
	Count     int       `db:"count" json:"count"`
	Metadata  *string   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AnalyticsSummary represents pipeline counters for a time period
type AnalyticsSummary struct {
	Period               string    `json:"period"` // "today", "yesterday", "last_7_days", "last_30_days"
	SessionsIngested     int       `json:"sessions_ingested"`
	DuplicatesIgnored    int       `json:"duplicates_ignored"`
	PoisonMessages       int       `json:"poison_messages"`
	EnrichmentsCompleted int       `json:"enrichments_completed"`
	EnrichmentsFailed    int       `json:"enrichments_failed"`
	EmbeddingsBackfilled int       `json:"embeddings_backfilled"`
	CompletionCalls      int       `json:"completion_calls"`
	EmbeddingCalls       int       `json:"embedding_calls"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
}

// AnalyticsResponse represents the API response for analytics
// @Description Analytics response payload
type AnalyticsResponse struct {
	Success bool              `json:"success" example:"true"`
	Summary *AnalyticsSummary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty" example:""`
}
