package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatlens/internal/database"
	"chatlens/internal/models"

	"github.com/rs/zerolog"
)

// ErrDisabled is returned when analytics storage could not be initialised
var ErrDisabled = errors.New("analytics disabled")

// EventType constants for tracking pipeline events
const (
	EventSessionIngested     = "session_ingested"
	EventDuplicateIgnored    = "duplicate_ignored"
	EventPoisonMessage       = "poison_message"
	EventEnrichmentCompleted = "enrichment_completed"
	EventEnrichmentFailed    = "enrichment_failed"
	EventEmbeddingBackfilled = "embedding_backfilled"
	EventCompletionCall      = "completion_call" // billable
	EventEmbeddingCall       = "embedding_call"  // billable
)

// Period constants for analytics queries
const (
	PeriodToday      = "today"
	PeriodYesterday  = "yesterday"
	PeriodLast7Days  = "last_7_days"
	PeriodLast30Days = "last_30_days"
)

// Service handles analytics tracking and retrieval.
// A nil *Service is a valid no-op tracker.
type Service struct {
	writeClient *database.WriteClient
	logger      zerolog.Logger
	mu          sync.Mutex
}

// NewService creates a new analytics service
func NewService(ctx context.Context, writeClient *database.WriteClient, logger zerolog.Logger) (*Service, error) {
	if writeClient == nil {
		return nil, fmt.Errorf("write client is required for analytics service")
	}

	service := &Service{
		writeClient: writeClient,
		logger:      logger.With().Str("component", "analytics").Logger(),
	}

	service.createTables(ctx)

	return service, nil
}

func (s *Service) createTables(ctx context.Context) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id SERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			count INT DEFAULT 1,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_event_type ON analytics_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_created_at ON analytics_events(created_at)`,
		// daily rollup keeps summary queries cheap
		`CREATE TABLE IF NOT EXISTS analytics_daily (
			id SERIAL PRIMARY KEY,
			date DATE NOT NULL,
			event_type VARCHAR(50) NOT NULL,
			total_count INT DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(date, event_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_daily_date ON analytics_daily(date)`,
	}

	for _, query := range queries {
		if _, err := s.writeClient.ExecuteWriteQuery(ctx, query); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to create analytics table")
		}
	}
}

// TrackEvent records an analytics event and bumps the daily rollup
func (s *Service) TrackEvent(ctx context.Context, eventType string, count int, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON *string
	if metadata != nil {
		if jsonBytes, err := json.Marshal(metadata); err == nil {
			str := string(jsonBytes)
			metadataJSON = &str
		}
	}

	query := `INSERT INTO analytics_events (event_type, count, metadata) VALUES ($1, $2, $3)`
	if _, err := s.writeClient.ExecuteWriteQuery(ctx, query, eventType, count, metadataJSON); err != nil {
		return fmt.Errorf("failed to track event: %w", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	aggregateQuery := `
		INSERT INTO analytics_daily (date, event_type, total_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (date, event_type) DO UPDATE SET
			total_count = analytics_daily.total_count + EXCLUDED.total_count,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.writeClient.ExecuteWriteQuery(ctx, aggregateQuery, today, eventType, count); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to update daily aggregate")
	}

	return nil
}

// Track records a single event for a session. Failures are logged, never returned.
func (s *Service) Track(ctx context.Context, eventType, sessionKey string) {
	if s == nil {
		return
	}
	var metadata map[string]interface{}
	if sessionKey != "" {
		metadata = map[string]interface{}{"session_key": sessionKey}
	}
	if err := s.TrackEvent(ctx, eventType, 1, metadata); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("session_key", sessionKey).Msg("Failed to track event")
	}
}

// TrackCount records count occurrences of an event, e.g. rows updated by a backfill
func (s *Service) TrackCount(ctx context.Context, eventType string, count int) {
	if s == nil || count <= 0 {
		return
	}
	if err := s.TrackEvent(ctx, eventType, count, nil); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to track event")
	}
}

// PeriodRange resolves a named period to its UTC range. Unknown periods mean today.
func PeriodRange(period string, now time.Time) (string, time.Time, time.Time) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodYesterday:
		return period, midnight.AddDate(0, 0, -1), midnight.Add(-time.Nanosecond)
	case PeriodLast7Days:
		return period, now.AddDate(0, 0, -7), now
	case PeriodLast30Days:
		return period, now.AddDate(0, 0, -30), now
	default:
		return PeriodToday, midnight, now
	}
}

// GetSummary retrieves pipeline counters for a time period
func (s *Service) GetSummary(ctx context.Context, period string) (*models.AnalyticsSummary, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	period, startDate, endDate := PeriodRange(period, time.Now())

	summary := &models.AnalyticsSummary{
		Period:    period,
		StartDate: startDate,
		EndDate:   endDate,
	}

	query := `
		SELECT event_type, COALESCE(SUM(total_count), 0) AS total
		FROM analytics_daily
		WHERE date >= $1 AND date <= $2
		GROUP BY event_type
	`

	var rows []struct {
		EventType string `db:"event_type"`
		Total     int    `db:"total"`
	}
	if err := database.ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &rows, query,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to get analytics summary: %w", err)
	}

	for _, row := range rows {
		switch row.EventType {
		case EventSessionIngested:
			summary.SessionsIngested = row.Total
		case EventDuplicateIgnored:
			summary.DuplicatesIgnored = row.Total
		case EventPoisonMessage:
			summary.PoisonMessages = row.Total
		case EventEnrichmentCompleted:
			summary.EnrichmentsCompleted = row.Total
		case EventEnrichmentFailed:
			summary.EnrichmentsFailed = row.Total
		case EventEmbeddingBackfilled:
			summary.EmbeddingsBackfilled = row.Total
		case EventCompletionCall:
			summary.CompletionCalls = row.Total
		case EventEmbeddingCall:
			summary.EmbeddingCalls = row.Total
		}
	}

	return summary, nil
}
