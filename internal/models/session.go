package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Direction tells who authored an event
type Direction string

const (
	DirectionCustomer Direction = "customer"
	DirectionAgent    Direction = "agent"
)

// EventKind is the kind of a chat event
type EventKind string

const (
	KindText       EventKind = "text"
	KindFile       EventKind = "file"
	KindNote       EventKind = "note"
	KindStateEvent EventKind = "state-event"
)

// ResolvedNamespace marks a state event that closes a conversation
const ResolvedNamespace = "state:resolved"

// Actor identifies the author of an event
type Actor struct {
	Nickname string `json:"nickname,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// FilePayload is the payload of a file event
type FilePayload struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"`
}

// StatePayload is the payload of a state event
type StatePayload struct {
	Namespace string `json:"namespace"`
}

// RawEvent is a normalized chat event as carried on the queue
type RawEvent struct {
	SessionKey  string          `json:"session_key"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Direction   Direction       `json:"direction"`
	Kind        EventKind       `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Actor       *Actor          `json:"actor,omitempty"`
}

// Envelope is the queue message body
type Envelope struct {
	SessionKey string   `json:"session_key"`
	RawEvent   RawEvent `json:"raw_event"`
}

// Message is one normalized entry in a session's message list
type Message struct {
	Fingerprint string    `json:"fingerprint,omitempty"`
	Kind        EventKind `json:"kind"`
	Direction   Direction `json:"direction"`
	Text        string    `json:"text,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Namespace   string    `json:"namespace,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Actor       *Actor    `json:"actor,omitempty"`
}

// MessageList is stored as a JSONB column
type MessageList []Message

// Value implements driver.Valuer
func (m MessageList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *MessageList) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// StringList is stored as a JSONB array column
type StringList []string

// Value implements driver.Valuer
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported JSON column type")
	}
}

// SessionAggregate is the per-session rollup of every event seen so far
type SessionAggregate struct {
	ID                   int64       `db:"id" json:"id"`
	SessionKey           string      `db:"session_key" json:"session_key"`
	CustomerKey          string      `db:"customer_key" json:"customer_key"`
	Messages             MessageList `db:"messages" json:"messages"`
	ConversationText     string      `db:"conversation_text" json:"conversation_text"`
	LastMessageText      string      `db:"last_message_text" json:"last_message_text"`
	CustomerNickname     string      `db:"customer_nickname" json:"customer_nickname,omitempty"`
	CustomerUserID       string      `db:"customer_user_id" json:"customer_user_id,omitempty"`
	CustomerEmail        string      `db:"customer_email" json:"customer_email,omitempty"`
	AgentNickname        string      `db:"agent_nickname" json:"agent_nickname,omitempty"`
	AgentUserID          string      `db:"agent_user_id" json:"agent_user_id,omitempty"`
	IsResolved           bool        `db:"is_resolved" json:"is_resolved"`
	ResolvedAt           *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	TotalMessages        int         `db:"total_messages" json:"total_messages"`
	FirstMessageAt       *time.Time  `db:"first_message_at" json:"first_message_at,omitempty"`
	LastMessageAt        *time.Time  `db:"last_message_at" json:"last_message_at,omitempty"`
	WorkDay              string      `db:"work_day" json:"work_day"`
	HasAttachment        bool        `db:"has_attachment" json:"has_attachment"`
	FirstResponseMinutes *int        `db:"first_response_minutes" json:"first_response_minutes,omitempty"`
	EnrichmentDone       bool        `db:"enrichment_done" json:"enrichment_done"`
	EnrichmentSummary    *string     `db:"enrichment_summary" json:"enrichment_summary,omitempty"`
	Category             *string     `db:"category" json:"category,omitempty"`
	SentimentScore       *float64    `db:"sentiment_score" json:"sentiment_score,omitempty"`
	UrgencyScore         *int        `db:"urgency_score" json:"urgency_score,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// SessionWithEnrichment joins a session with its enrichment row, if any
type SessionWithEnrichment struct {
	Session    SessionAggregate `json:"session"`
	Enrichment *Enrichment      `json:"enrichment,omitempty"`
}

// SessionListResponse is the paginated session listing
// @Description Paginated list of session aggregates
type SessionListResponse struct {
	Success  bool               `json:"success" example:"true"`
	Sessions []SessionAggregate `json:"sessions"`
	Total    int                `json:"total" example:"42"`
	Limit    int                `json:"limit" example:"20"`
	Offset   int                `json:"offset" example:"0"`
	Error    string             `json:"error,omitempty" example:""`
}

// SessionDetailResponse is a single session with enrichment
// @Description Session aggregate with enrichment
type SessionDetailResponse struct {
	Success bool                   `json:"success" example:"true"`
	Data    *SessionWithEnrichment `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty" example:""`
}
