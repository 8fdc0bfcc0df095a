// Package session folds normalized chat events into a per-session aggregate.
//
// Every derived field is recomputed from the chronologically sorted message
// list, so the aggregate depends only on the set of messages and not on the
// order in which the events were delivered.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"chatlens/internal/models"
)

// ErrInvalidEvent is returned for events that cannot be folded
var ErrInvalidEvent = errors.New("invalid event")

// Aggregator applies raw events to session aggregates
type Aggregator struct {
	location         *time.Location
	workDayStartHour int
	contentHash      bool
}

// NewAggregator creates an aggregator. loc is used for rendering and work-day bucketing.
// When contentHash is set, events without a fingerprint get one derived from their content.
func NewAggregator(loc *time.Location, workDayStartHour int, contentHash bool) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		location:         loc,
		workDayStartHour: workDayStartHour,
		contentHash:      contentHash,
	}
}

// ToMessage converts a raw event to the message stored on the aggregate
func (a *Aggregator) ToMessage(ev models.RawEvent) (models.Message, error) {
	if ev.SessionKey == "" {
		return models.Message{}, fmt.Errorf("%w: missing session key", ErrInvalidEvent)
	}
	if ev.OccurredAt.IsZero() {
		return models.Message{}, fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if ev.Direction != models.DirectionCustomer && ev.Direction != models.DirectionAgent {
		return models.Message{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidEvent, ev.Direction)
	}

	msg := models.Message{
		Fingerprint: ev.Fingerprint,
		Kind:        ev.Kind,
		Direction:   ev.Direction,
		OccurredAt:  ev.OccurredAt.UTC(),
		Actor:       ev.Actor,
	}

	switch ev.Kind {
	case models.KindText, models.KindNote:
		var text string
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &text); err != nil {
				return models.Message{}, fmt.Errorf("%w: text payload: %v", ErrInvalidEvent, err)
			}
		}
		msg.Text = text
	case models.KindFile:
		var file models.FilePayload
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &file); err != nil {
				return models.Message{}, fmt.Errorf("%w: file payload: %v", ErrInvalidEvent, err)
			}
		}
		msg.FileName = file.Name
	case models.KindStateEvent:
		var state models.StatePayload
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &state); err != nil {
				return models.Message{}, fmt.Errorf("%w: state payload: %v", ErrInvalidEvent, err)
			}
		}
		msg.Namespace = state.Namespace
	case "":
		return models.Message{}, fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	default:
		// kept for counting and dedup; renders to nothing
	}

	if msg.Fingerprint == "" && a.contentHash {
		msg.Fingerprint = contentFingerprint(msg)
	}

	return msg, nil
}

// Apply folds ev into current and returns the new aggregate. current may be nil
// for a session that has never been seen. duplicate is true when the event's
// fingerprint is already present; the returned aggregate is then current unchanged.
func (a *Aggregator) Apply(current *models.SessionAggregate, ev models.RawEvent) (next *models.SessionAggregate, duplicate bool, err error) {
	msg, err := a.ToMessage(ev)
	if err != nil {
		return nil, false, err
	}

	if current != nil && ContainsFingerprint(current.Messages, msg.Fingerprint) {
		return current, true, nil
	}

	next = &models.SessionAggregate{SessionKey: ev.SessionKey}
	if current != nil {
		copied := *current
		next = &copied
		next.Messages = append(models.MessageList(nil), current.Messages...)
	}
	next.Messages = append(next.Messages, msg)

	a.Derive(next)
	return next, false, nil
}

// Derive recomputes every derived field of agg from its message list
func (a *Aggregator) Derive(agg *models.SessionAggregate) {
	sort.SliceStable(agg.Messages, func(i, j int) bool {
		return agg.Messages[i].OccurredAt.Before(agg.Messages[j].OccurredAt)
	})

	agg.TotalMessages = len(agg.Messages)
	agg.HasAttachment = false
	agg.CustomerNickname, agg.CustomerUserID, agg.CustomerEmail = "", "", ""
	agg.AgentNickname, agg.AgentUserID = "", ""

	var lines []string
	var firstCustomer, firstAgent, firstResolved *time.Time
	for i := range agg.Messages {
		msg := &agg.Messages[i]

		if line := a.Render(*msg); line != "" {
			lines = append(lines, line)
			agg.LastMessageText = renderBody(*msg)
		}
		if msg.Kind == models.KindFile {
			agg.HasAttachment = true
		}

		at := msg.OccurredAt
		switch msg.Direction {
		case models.DirectionCustomer:
			if firstCustomer == nil {
				firstCustomer = &at
			}
			mergeCustomer(agg, msg.Actor)
		case models.DirectionAgent:
			// state changes and internal notes are not replies
			if firstAgent == nil && (msg.Kind == models.KindText || msg.Kind == models.KindFile) {
				firstAgent = &at
			}
			mergeAgent(agg, msg.Actor)
		}

		if msg.Kind == models.KindStateEvent && msg.Namespace == models.ResolvedNamespace && firstResolved == nil {
			firstResolved = &at
		}
	}
	agg.ConversationText = strings.Join(lines, "\n")

	if n := len(agg.Messages); n > 0 {
		first := agg.Messages[0].OccurredAt
		last := agg.Messages[n-1].OccurredAt
		agg.FirstMessageAt = &first
		agg.LastMessageAt = &last
		agg.WorkDay = WorkDay(first, a.location, a.workDayStartHour)
	}

	if firstResolved != nil {
		agg.IsResolved = true
		if agg.ResolvedAt == nil {
			agg.ResolvedAt = firstResolved
		}
	}

	agg.FirstResponseMinutes = nil
	if firstCustomer != nil && firstAgent != nil && firstAgent.After(*firstCustomer) {
		minutes := int(firstAgent.Sub(*firstCustomer).Minutes())
		agg.FirstResponseMinutes = &minutes
	}

	agg.CustomerKey = CustomerKey(agg)
}

// Render renders one message as a transcript line, or "" when it has nothing to show
func (a *Aggregator) Render(msg models.Message) string {
	body := renderBody(msg)
	if body == "" {
		return ""
	}
	return fmt.Sprintf("[%s] %s: %s", msg.OccurredAt.In(a.location).Format("15:04"), msg.Direction, body)
}

func renderBody(msg models.Message) string {
	switch msg.Kind {
	case models.KindText, models.KindNote:
		return strings.TrimSpace(msg.Text)
	case models.KindFile:
		if msg.FileName == "" {
			return "File uploaded"
		}
		return "File uploaded: " + msg.FileName
	case models.KindStateEvent:
		if msg.Namespace == "" {
			return ""
		}
		return "Event: " + msg.Namespace
	}
	return ""
}

// first non-empty value wins per field
func mergeCustomer(agg *models.SessionAggregate, actor *models.Actor) {
	if actor == nil {
		return
	}
	if agg.CustomerNickname == "" {
		agg.CustomerNickname = actor.Nickname
	}
	if agg.CustomerUserID == "" {
		agg.CustomerUserID = actor.UserID
	}
	if agg.CustomerEmail == "" {
		agg.CustomerEmail = actor.Email
	}
}

func mergeAgent(agg *models.SessionAggregate, actor *models.Actor) {
	if actor == nil {
		return
	}
	if agg.AgentNickname == "" {
		agg.AgentNickname = actor.Nickname
	}
	if agg.AgentUserID == "" {
		agg.AgentUserID = actor.UserID
	}
}

// CustomerKey identifies the customer across sessions: user id, then e-mail, then nickname
func CustomerKey(agg *models.SessionAggregate) string {
	switch {
	case agg.CustomerUserID != "":
		return agg.CustomerUserID
	case agg.CustomerEmail != "":
		return strings.ToLower(agg.CustomerEmail)
	default:
		return agg.CustomerNickname
	}
}

// ContainsFingerprint reports whether a message with fingerprint is already recorded.
// An empty fingerprint never matches.
func ContainsFingerprint(messages []models.Message, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	for _, msg := range messages {
		if msg.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

func contentFingerprint(msg models.Message) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s", msg.Kind, msg.Direction, msg.OccurredAt.UnixMilli(), msg.Text, msg.FileName, msg.Namespace)
	return "content:" + hex.EncodeToString(h.Sum(nil))[:32]
}
