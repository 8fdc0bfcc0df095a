package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatlens/internal/models"
)

// Topics lists the Crisp events that carry conversation content
var Topics = []string{
	"message:send",
	"message:received",
	"message:updated",
	"session:set_state",
}

var (
	// ErrMissingSession is returned when a delivery has no session_id
	ErrMissingSession = errors.New("missing session_id")
	// ErrUnsupported is returned for content the aggregator does not track
	ErrUnsupported = errors.New("unsupported event content")
)

// Payload is the outer body Crisp posts
type Payload struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type crispUser struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
}

type crispData struct {
	SessionID   string          `json:"session_id"`
	Type        string          `json:"type"`
	From        string          `json:"from"`
	Content     json.RawMessage `json:"content"`
	Fingerprint json.RawMessage `json:"fingerprint"`
	Timestamp   int64           `json:"timestamp"`
	User        *crispUser      `json:"user"`
	State       string          `json:"state"`
}

// Accepted reports whether event is in the topic allow-list
func Accepted(event string) bool {
	for _, t := range Topics {
		if t == event {
			return true
		}
	}
	return false
}

// Normalize converts an accepted delivery to the event carried on the queue
func Normalize(p Payload, now time.Time) (models.RawEvent, error) {
	var d crispData
	if len(p.Data) == 0 {
		return models.RawEvent{}, ErrMissingSession
	}
	if err := json.Unmarshal(p.Data, &d); err != nil {
		return models.RawEvent{}, fmt.Errorf("decode data: %w", err)
	}
	if d.SessionID == "" {
		return models.RawEvent{}, ErrMissingSession
	}

	ev := models.RawEvent{
		SessionKey:  d.SessionID,
		Fingerprint: fingerprint(d.Fingerprint),
		OccurredAt:  occurredAt(d.Timestamp, p.Timestamp, now),
	}
	if d.User != nil {
		ev.Actor = &models.Actor{Nickname: d.User.Nickname, UserID: d.User.UserID, Email: d.User.Email}
	}

	if p.Event == "session:set_state" {
		if d.State == "" {
			return models.RawEvent{}, fmt.Errorf("%w: state change without state", ErrUnsupported)
		}
		ev.Direction = models.DirectionAgent
		ev.Kind = models.KindStateEvent
		ev.Payload, _ = json.Marshal(models.StatePayload{Namespace: "state:" + d.State})
		if ev.Fingerprint == "" {
			ev.Fingerprint = fmt.Sprintf("state:%s:%d", d.State, ev.OccurredAt.UnixMilli())
		}
		return ev, nil
	}

	switch d.From {
	case "user":
		ev.Direction = models.DirectionCustomer
	case "operator":
		ev.Direction = models.DirectionAgent
	default:
		return models.RawEvent{}, fmt.Errorf("%w: from %q", ErrUnsupported, d.From)
	}

	switch d.Type {
	case "text", "note":
		var text string
		if err := json.Unmarshal(d.Content, &text); err != nil {
			return models.RawEvent{}, fmt.Errorf("%w: %s content is not text", ErrUnsupported, d.Type)
		}
		ev.Kind = models.KindText
		if d.Type == "note" {
			ev.Kind = models.KindNote
		}
		ev.Payload, _ = json.Marshal(text)
	case "file":
		var file models.FilePayload
		if err := json.Unmarshal(d.Content, &file); err != nil {
			return models.RawEvent{}, fmt.Errorf("%w: file content", ErrUnsupported)
		}
		ev.Kind = models.KindFile
		ev.Payload, _ = json.Marshal(file)
	case "event":
		var state models.StatePayload
		if err := json.Unmarshal(d.Content, &state); err != nil || state.Namespace == "" {
			return models.RawEvent{}, fmt.Errorf("%w: event content", ErrUnsupported)
		}
		ev.Kind = models.KindStateEvent
		ev.Payload, _ = json.Marshal(state)
	case "":
		return models.RawEvent{}, fmt.Errorf("%w: message without type", ErrUnsupported)
	default:
		// pickers, audio, carousels...: counted on the session, never rendered
		ev.Kind = models.EventKind(d.Type)
		ev.Payload = d.Content
	}

	return ev, nil
}

// fingerprint accepts Crisp's numeric fingerprint or a string one
func fingerprint(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return s
}

func occurredAt(dataMs, outerMs int64, now time.Time) time.Time {
	switch {
	case dataMs > 0:
		return time.UnixMilli(dataMs).UTC()
	case outerMs > 0:
		return time.UnixMilli(outerMs).UTC()
	default:
		return now.UTC()
	}
}
