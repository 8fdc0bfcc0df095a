// Package customers maintains the per-customer rollup of enriched sessions.
package customers

import (
	"context"
	"fmt"
	"strings"

	"chatlens/internal/models"
	"chatlens/internal/utils"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

const (
	commonIssuesLimit    = 5
	atRiskSatisfaction   = 2.5
	frequentSessionCount = 5
)

// Store is the persistence the rollup needs
type Store interface {
	ListCustomerSessions(ctx context.Context, customerKey string) ([]models.SessionWithEnrichment, error)
	UpsertCustomerProfile(ctx context.Context, p *models.CustomerProfile) error
}

// Service recomputes customer profiles
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates the profile rollup service
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "customers").Logger(),
	}
}

// Refresh rebuilds the profile of customerKey from all of its sessions
func (s *Service) Refresh(ctx context.Context, customerKey string) error {
	if strings.TrimSpace(customerKey) == "" {
		return nil
	}

	sessions, err := s.store.ListCustomerSessions(ctx, customerKey)
	if err != nil {
		return fmt.Errorf("failed to load customer sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	profile := BuildProfile(customerKey, sessions)
	if err := s.store.UpsertCustomerProfile(ctx, profile); err != nil {
		return err
	}

	s.logger.Debug().
		Str("customer_key", customerKey).
		Int("sessions", profile.TotalSessions).
		Str("behavior", profile.BehaviorPattern).
		Msg("Customer profile refreshed")
	return nil
}

// BuildProfile folds a customer's sessions into a profile
func BuildProfile(customerKey string, sessions []models.SessionWithEnrichment) *models.CustomerProfile {
	p := &models.CustomerProfile{
		CustomerKey:   customerKey,
		TotalSessions: len(sessions),
		CommonIssues:  models.StringList{},
	}

	var (
		satisfactionSum   int
		satisfactionCount int
		issues            []string
		vectors           [][]float32
	)

	for _, row := range sessions {
		sess := row.Session
		p.TotalMessages += sess.TotalMessages

		if p.PrimaryNickname == "" && sess.CustomerNickname != "" {
			p.PrimaryNickname = sess.CustomerNickname
		}
		if sess.FirstMessageAt != nil && (p.FirstContact == nil || sess.FirstMessageAt.Before(*p.FirstContact)) {
			t := *sess.FirstMessageAt
			p.FirstContact = &t
		}
		if sess.LastMessageAt != nil && (p.LastContact == nil || sess.LastMessageAt.After(*p.LastContact)) {
			t := *sess.LastMessageAt
			p.LastContact = &t
		}

		e := row.Enrichment
		if e == nil {
			continue
		}
		satisfactionSum += e.SatisfactionLevel
		satisfactionCount++
		issues = append(issues, e.PainPoints...)
		issues = append(issues, e.TechnicalIssues...)
		if e.HasEmbedding() {
			vectors = append(vectors, e.Embedding.Slice())
		}
	}

	if satisfactionCount > 0 {
		avg := float64(satisfactionSum) / float64(satisfactionCount)
		p.OverallSatisfaction = &avg
	}

	for _, entry := range utils.Frequency(issues, commonIssuesLimit) {
		p.CommonIssues = append(p.CommonIssues, entry.Value)
	}

	p.BehaviorPattern = behavior(p.TotalSessions, p.OverallSatisfaction)

	if mean := MeanVector(vectors); mean != nil {
		v := pgvector.NewVector(mean)
		p.ProfileEmbedding = &v
	}

	return p
}

func behavior(sessions int, satisfaction *float64) string {
	switch {
	case sessions >= 2 && satisfaction != nil && *satisfaction <= atRiskSatisfaction:
		return models.BehaviorAtRisk
	case sessions >= frequentSessionCount:
		return models.BehaviorFrequent
	case sessions >= 2:
		return models.BehaviorReturning
	default:
		return models.BehaviorNew
	}
}

// MeanVector averages vectors of the first vector's dimension; others are skipped
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil
	}

	sum := make([]float64, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}

	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(n))
	}
	return mean
}
