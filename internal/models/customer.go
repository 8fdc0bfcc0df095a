package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Behavior patterns of a customer profile
const (
	BehaviorNew       = "new"
	BehaviorReturning = "returning"
	BehaviorFrequent  = "frequent"
	BehaviorAtRisk    = "at-risk"
)

// CustomerProfile is the rollup of every session a customer had
type CustomerProfile struct {
	ID                  int64            `db:"id" json:"id"`
	CustomerKey         string           `db:"customer_key" json:"customer_key"`
	PrimaryNickname     string           `db:"primary_nickname" json:"primary_nickname"`
	TotalSessions       int              `db:"total_sessions" json:"total_sessions"`
	TotalMessages       int              `db:"total_messages" json:"total_messages"`
	FirstContact        *time.Time       `db:"first_contact" json:"first_contact,omitempty"`
	LastContact         *time.Time       `db:"last_contact" json:"last_contact,omitempty"`
	OverallSatisfaction *float64         `db:"overall_satisfaction" json:"overall_satisfaction,omitempty"`
	CommonIssues        StringList       `db:"common_issues" json:"common_issues"`
	BehaviorPattern     string           `db:"behavior_pattern" json:"behavior_pattern"`
	ProfileEmbedding    *pgvector.Vector `db:"profile_embedding" json:"-"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}
