package models

import "time"

// FrequencyEntry is one row of a frequency table
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// InsightsPeriod is the half-open window a report covers
type InsightsPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// InsightsSummary holds the headline metrics of a work day
type InsightsSummary struct {
	TotalConversations      int      `json:"total_conversations"`
	ResolvedConversations   int      `json:"resolved_conversations"`
	EnrichedConversations   int      `json:"enriched_conversations"`
	WithAttachments         int      `json:"with_attachments"`
	ResolutionRate          float64  `json:"resolution_rate"`
	EnrichmentRate          float64  `json:"enrichment_rate"`
	AttachmentRate          float64  `json:"attachment_rate"`
	AvgFirstResponseMinutes *float64 `json:"avg_first_response_minutes,omitempty"`
}

// CustomerInsights holds what enrichments say about customers
type CustomerInsights struct {
	MainNeeds        []FrequencyEntry `json:"main_needs"`
	PainPoints       []FrequencyEntry `json:"pain_points"`
	TechnicalIssues  []FrequencyEntry `json:"technical_issues"`
	MoodDistribution map[string]int   `json:"mood_distribution"`
	AvgSatisfaction  float64          `json:"avg_satisfaction"`
}

// DailyInsights is the report for one work day
type DailyInsights struct {
	Date             string           `json:"date"`
	WorkDay          string           `json:"work_day"`
	Period           InsightsPeriod   `json:"period"`
	Summary          InsightsSummary  `json:"summary"`
	CustomerInsights CustomerInsights `json:"customer_insights"`
	Recommendations  []string         `json:"recommendations"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// InsightsResponse wraps a daily report
// @Description Daily insights response
type InsightsResponse struct {
	Success bool           `json:"success" example:"true"`
	Data    *DailyInsights `json:"data,omitempty"`
	Error   string         `json:"error,omitempty" example:""`
}
