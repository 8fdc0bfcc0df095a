package models

// SimilarConversation is one nearest-neighbour hit
type SimilarConversation struct {
	SessionKey       string     `db:"session_key" json:"session_key" example:"session_abc"`
	Summary          string     `db:"summary" json:"summary"`
	Mood             string     `db:"mood" json:"mood" example:"neutral"`
	Topics           StringList `db:"topics" json:"topics"`
	ResolutionStatus string     `db:"resolution_status" json:"resolution_status" example:"resolved"`
	Similarity       float64    `db:"similarity" json:"similarity" example:"0.87"`
}

// SimilarCustomer is one nearest-neighbour customer profile
type SimilarCustomer struct {
	CustomerKey         string     `db:"customer_key" json:"customer_key"`
	PrimaryNickname     string     `db:"primary_nickname" json:"primary_nickname"`
	TotalSessions       int        `db:"total_sessions" json:"total_sessions"`
	OverallSatisfaction *float64   `db:"overall_satisfaction" json:"overall_satisfaction,omitempty"`
	CommonIssues        StringList `db:"common_issues" json:"common_issues"`
	BehaviorPattern     string     `db:"behavior_pattern" json:"behavior_pattern"`
	Similarity          float64    `db:"similarity" json:"similarity"`
}

// EmbeddedConversation is a conversation with its summary vector, used for clustering
type EmbeddedConversation struct {
	ID         int64     `json:"id"`
	SessionKey string    `json:"session_key"`
	Summary    string    `json:"summary"`
	Topics     []string  `json:"topics"`
	Vector     []float32 `json:"-"`
}

// ConversationPair is two conversations above the cluster threshold
type ConversationPair struct {
	SessionKey1 string   `json:"session_key_1"`
	SessionKey2 string   `json:"session_key_2"`
	Summary1    string   `json:"summary_1"`
	Summary2    string   `json:"summary_2"`
	Topics1     []string `json:"topics_1"`
	Topics2     []string `json:"topics_2"`
	Similarity  float64  `json:"similarity"`
}

// SemanticSearchRequest is the body of the semantic search endpoint
// @Description Semantic search request
type SemanticSearchRequest struct {
	Query string `json:"query" example:"refund not received"`
	Limit int    `json:"limit" example:"10"`
}

// BackfillRequest is the body of the embedding backfill endpoint
type BackfillRequest struct {
	BatchSize int `json:"batchSize" example:"20"`
}

// BackfillResult summarises one backfill run
type BackfillResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// VectorResponse is the envelope of every vector endpoint
// @Description Vector endpoint response
type VectorResponse struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Total   int         `json:"total" example:"5"`
	Error   string      `json:"error,omitempty" example:""`
}

// EmbeddingCandidate is an enrichment row still missing its vector
type EmbeddingCandidate struct {
	SessionKey string `db:"session_key"`
	Summary    string `db:"summary"`
	Mood       string `db:"mood"`
}
