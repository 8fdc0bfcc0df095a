package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pgvector/pgvector-go"
)

// Mood vocabulary accepted from the completion
var Moods = []string{"happy", "satisfied", "neutral", "confused", "frustrated", "angry"}

// Resolution statuses accepted from the completion
var ResolutionStatuses = []string{"resolved", "pending", "escalated", "abandoned"}

// Enrichment is the structured analysis of one session
type Enrichment struct {
	ID                int64            `db:"id" json:"id"`
	SessionKey        string           `db:"session_key" json:"session_key"`
	Model             string           `db:"model" json:"model"`
	Needs             StringList       `db:"needs" json:"needs"`
	PainPoints        StringList       `db:"pain_points" json:"pain_points"`
	Topics            StringList       `db:"topics" json:"topics"`
	MentionedProducts StringList       `db:"mentioned_products" json:"mentioned_products"`
	TechnicalIssues   StringList       `db:"technical_issues" json:"technical_issues"`
	FeatureRequests   StringList       `db:"feature_requests" json:"feature_requests"`
	Mood              string           `db:"mood" json:"mood"`
	SatisfactionLevel int              `db:"satisfaction_level" json:"satisfaction_level"`
	Summary           string           `db:"summary" json:"summary"`
	ResolutionStatus  string           `db:"resolution_status" json:"resolution_status"`
	RawOutput         types.JSONText   `db:"raw_output" json:"raw_output,omitempty" swaggertype:"object"`
	Embedding         *pgvector.Vector `db:"embedding" json:"-"`
	AnalyzedAt        time.Time        `db:"analyzed_at" json:"analyzed_at"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// HasEmbedding reports whether a vector has been stored
func (e *Enrichment) HasEmbedding() bool {
	return e.Embedding != nil && len(e.Embedding.Slice()) > 0
}

// SessionUpdate carries the denormalized enrichment fields written back to a session
type SessionUpdate struct {
	Summary        string
	Category       string
	SentimentScore float64
	UrgencyScore   int
}

// CompletionResult is the JSON object the model is asked to return
type CompletionResult struct {
	CustomerNeeds       []string `json:"customer_needs"`
	PainPoints          []string `json:"pain_points"`
	CustomerMood        string   `json:"customer_mood"`
	SatisfactionLevel   int      `json:"satisfaction_level"`
	ConversationSummary string   `json:"conversation_summary"`
	MainTopics          []string `json:"main_topics"`
	ResolutionStatus    string   `json:"resolution_status"`
	MentionedProducts   []string `json:"mentioned_products"`
	TechnicalIssues     []string `json:"technical_issues"`
	FeatureRequests     []string `json:"feature_requests"`
}

// AnalysisResponse is returned by the explicit analysis endpoint
// @Description Enrichment result for one session
type AnalysisResponse struct {
	Success    bool        `json:"success" example:"true"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
	Skipped    bool        `json:"skipped,omitempty" example:"false"`
	Error      string      `json:"error,omitempty" example:""`
}

// BatchResult summarises one batch run
type BatchResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
