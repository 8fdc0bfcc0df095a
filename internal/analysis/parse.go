package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chatlens/internal/models"
)

// ErrMalformedCompletion is returned when the model output is not the expected JSON object
var ErrMalformedCompletion = errors.New("malformed completion")

const (
	defaultMood             = "neutral"
	defaultSatisfaction     = 3
	defaultResolutionStatus = "pending"
)

// ParseCompletion strips markdown fences from the model output and decodes it
func ParseCompletion(text string) (*models.CompletionResult, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedCompletion)
	}

	var result models.CompletionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}

	normalize(&result)
	return &result, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// normalize coerces out-of-vocabulary values to their defaults
func normalize(r *models.CompletionResult) {
	r.CustomerMood = strings.ToLower(strings.TrimSpace(r.CustomerMood))
	if !contains(models.Moods, r.CustomerMood) {
		r.CustomerMood = defaultMood
	}

	switch {
	case r.SatisfactionLevel == 0:
		r.SatisfactionLevel = defaultSatisfaction
	case r.SatisfactionLevel < 1:
		r.SatisfactionLevel = 1
	case r.SatisfactionLevel > 5:
		r.SatisfactionLevel = 5
	}

	r.ResolutionStatus = strings.ToLower(strings.TrimSpace(r.ResolutionStatus))
	if !contains(models.ResolutionStatuses, r.ResolutionStatus) {
		r.ResolutionStatus = defaultResolutionStatus
	}

	r.ConversationSummary = strings.TrimSpace(r.ConversationSummary)
	r.CustomerNeeds = cleanList(r.CustomerNeeds)
	r.PainPoints = cleanList(r.PainPoints)
	r.MainTopics = cleanList(r.MainTopics)
	r.MentionedProducts = cleanList(r.MentionedProducts)
	r.TechnicalIssues = cleanList(r.TechnicalIssues)
	r.FeatureRequests = cleanList(r.FeatureRequests)
}

// cleanList trims entries and drops blanks and exact repeats
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
