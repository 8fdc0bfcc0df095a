// Package insights builds the daily operational report over one work day of conversations.
package insights

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"chatlens/internal/cache"
	"chatlens/internal/models"
	"chatlens/internal/session"
	"chatlens/internal/utils"

	"github.com/rs/zerolog"
)

const (
	dateLayout   = "2006-01-02"
	topEntries   = 10
	topConcerns  = 3
	noDataNotice = "No conversations found for this period"
)

// Recommendation thresholds
const (
	minResolutionRate   = 80.0 // percent
	maxFirstResponseMin = 60.0
	maxAttachmentRate   = 30.0 // percent
	minSatisfaction     = 3.5
	maxNegativeShare    = 0.3
)

// ErrInvalidDate is returned for a date that is not YYYY-MM-DD
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Store loads the sessions whose first message falls in [start, end)
type Store interface {
	ListSessionsInWindow(ctx context.Context, start, end time.Time) ([]models.SessionWithEnrichment, error)
}

// Service generates and caches daily reports
type Service struct {
	store     Store
	cache     *cache.Cache[*models.DailyInsights]
	ttl       time.Duration
	loc       *time.Location
	startHour int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates the insights service. Reports for closed windows are kept for ttl.
func NewService(store Store, ttl time.Duration, loc *time.Location, startHour int, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache.New[*models.DailyInsights](),
		ttl:       ttl,
		loc:       loc,
		startHour: startHour,
		logger:    logger.With().Str("component", "insights").Logger(),
		now:       time.Now,
	}
}

// Today is the report date whose window ends at the most recent work-day start
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// Generate builds the report for date, an empty date meaning today
func (s *Service) Generate(ctx context.Context, date string) (*models.DailyInsights, error) {
	if date == "" {
		date = s.Today()
	}
	if _, err := time.ParseInLocation(dateLayout, date, s.loc); err != nil || len(date) != len(dateLayout) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	start, end, err := session.WorkDayWindow(date, s.loc, s.startHour)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	now := s.now()
	closed := !end.After(now)
	if closed {
		if report, ok := s.cache.Get(date); ok {
			return report, nil
		}
	}

	sessions, err := s.store.ListSessionsInWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions for %s: %w", date, err)
	}

	report := Build(sessions, date, start, end)
	report.GeneratedAt = now

	if closed {
		s.cache.Set(date, report, s.ttl)
	}

	s.logger.Info().
		Str("date", date).
		Int("total", report.Summary.TotalConversations).
		Int("enriched", report.Summary.EnrichedConversations).
		Msg("Generated daily insights")

	return report, nil
}

// Build computes the report over the sessions of one window
func Build(sessions []models.SessionWithEnrichment, date string, start, end time.Time) *models.DailyInsights {
	report := &models.DailyInsights{
		Date:    date,
		WorkDay: start.Format(dateLayout),
		Period:  models.InsightsPeriod{Start: start, End: end},
		CustomerInsights: models.CustomerInsights{
			MainNeeds:        []models.FrequencyEntry{},
			PainPoints:       []models.FrequencyEntry{},
			TechnicalIssues:  []models.FrequencyEntry{},
			MoodDistribution: map[string]int{},
		},
	}

	if len(sessions) == 0 {
		report.Recommendations = []string{noDataNotice}
		return report
	}

	var (
		summary       = &report.Summary
		responseTotal int
		responseCount int
		needs         []string
		painPoints    []string
		issues        []string
		satTotal      int
		negative      int
	)

	summary.TotalConversations = len(sessions)
	for _, row := range sessions {
		s := row.Session
		if s.IsResolved {
			summary.ResolvedConversations++
		}
		if s.HasAttachment {
			summary.WithAttachments++
		}
		if s.FirstResponseMinutes != nil {
			responseTotal += *s.FirstResponseMinutes
			responseCount++
		}

		e := row.Enrichment
		if e == nil {
			continue
		}
		summary.EnrichedConversations++
		needs = append(needs, e.Needs...)
		painPoints = append(painPoints, e.PainPoints...)
		issues = append(issues, e.TechnicalIssues...)
		satTotal += e.SatisfactionLevel

		mood := strings.ToLower(strings.TrimSpace(e.Mood))
		if mood != "" {
			report.CustomerInsights.MoodDistribution[mood]++
		}
		if mood == "angry" || mood == "frustrated" {
			negative++
		}
	}

	total := float64(summary.TotalConversations)
	summary.ResolutionRate = round2(float64(summary.ResolvedConversations) / total * 100)
	summary.EnrichmentRate = round2(float64(summary.EnrichedConversations) / total * 100)
	summary.AttachmentRate = round2(float64(summary.WithAttachments) / total * 100)
	if responseCount > 0 {
		avg := round2(float64(responseTotal) / float64(responseCount))
		summary.AvgFirstResponseMinutes = &avg
	}

	ci := &report.CustomerInsights
	ci.MainNeeds = utils.Frequency(needs, topEntries)
	ci.PainPoints = utils.Frequency(painPoints, topEntries)
	ci.TechnicalIssues = utils.Frequency(issues, topEntries)

	var negativeShare float64
	if summary.EnrichedConversations > 0 {
		ci.AvgSatisfaction = round2(float64(satTotal) / float64(summary.EnrichedConversations))
		negativeShare = float64(negative) / float64(summary.EnrichedConversations)
	}

	report.Recommendations = recommend(summary, ci, negativeShare)
	return report
}

func recommend(summary *models.InsightsSummary, ci *models.CustomerInsights, negativeShare float64) []string {
	var out []string

	if summary.ResolutionRate < minResolutionRate {
		out = append(out, fmt.Sprintf("Resolution rate is low at %.2f%%. Consider reviewing unresolved tickets and providing additional agent training.", summary.ResolutionRate))
	}
	if avg := summary.AvgFirstResponseMinutes; avg != nil && *avg > maxFirstResponseMin {
		out = append(out, fmt.Sprintf("Average first response time is %d minutes. Consider staffing adjustments during peak hours.", int(math.Round(*avg))))
	}
	if summary.AttachmentRate > maxAttachmentRate {
		out = append(out, fmt.Sprintf("%.2f%% of conversations include attachments. Consider improving documentation and self-service guides.", summary.AttachmentRate))
	}
	if summary.EnrichedConversations > 0 && ci.AvgSatisfaction < minSatisfaction {
		out = append(out, fmt.Sprintf("Customer satisfaction is below average (%.2f/5). Review and address top pain points.", ci.AvgSatisfaction))
	}
	if negativeShare > maxNegativeShare {
		out = append(out, fmt.Sprintf("%.0f%% of analyzed customers were frustrated or angry. Consider escalation training for agents.", negativeShare*100))
	}
	if len(ci.PainPoints) > 0 {
		n := min(topConcerns, len(ci.PainPoints))
		concerns := make([]string, n)
		for i := 0; i < n; i++ {
			concerns[i] = ci.PainPoints[i].Value
		}
		out = append(out, fmt.Sprintf("Top customer concerns: %s. Consider creating FAQ or process improvements.", strings.Join(concerns, ", ")))
	}

	if len(out) == 0 {
		out = append(out, "Performance metrics are within acceptable ranges. Continue monitoring trends.")
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
