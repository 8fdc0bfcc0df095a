package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("[09:00] customer: hello")

	assert.Contains(t, prompt, "[09:00] customer: hello")
	for _, key := range []string{"customer_needs", "pain_points", "customer_mood", "satisfaction_level",
		"conversation_summary", "main_topics", "resolution_status", "mentioned_products",
		"technical_issues", "feature_requests"} {
		assert.Contains(t, prompt, `"`+key+`"`)
	}
	assert.NotContains(t, prompt, "{{conversation}}")
}

func TestParseCompletion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, mood string, satisfaction int, status string, needs []string)
	}{
		{
			name:  "plain json",
			input: `{"customer_mood":"happy","satisfaction_level":5,"resolution_status":"resolved","customer_needs":["refund"]}`,
			check: func(t *testing.T, mood string, satisfaction int, status string, needs []string) {
				assert.Equal(t, "happy", mood)
				assert.Equal(t, 5, satisfaction)
				assert.Equal(t, "resolved", status)
				assert.Equal(t, []string{"refund"}, needs)
			},
		},
		{
			name:  "fenced json",
			input: "```json\n{\"customer_mood\":\"Frustrated\",\"satisfaction_level\":2}\n```",
			check: func(t *testing.T, mood string, satisfaction int, status string, needs []string) {
				assert.Equal(t, "frustrated", mood)
				assert.Equal(t, 2, satisfaction)
				assert.Equal(t, "pending", status)
			},
		},
		{
			name:  "out of vocabulary values fall back",
			input: `{"customer_mood":"ecstatic","satisfaction_level":9,"resolution_status":"closed","customer_needs":[" a ","","a"]}`,
			check: func(t *testing.T, mood string, satisfaction int, status string, needs []string) {
				assert.Equal(t, "neutral", mood)
				assert.Equal(t, 5, satisfaction)
				assert.Equal(t, "pending", status)
				assert.Equal(t, []string{"a"}, needs)
			},
		},
		{
			name:  "missing satisfaction defaults to 3",
			input: `{"customer_mood":"neutral"}`,
			check: func(t *testing.T, mood string, satisfaction int, status string, needs []string) {
				assert.Equal(t, 3, satisfaction)
				assert.Empty(t, needs)
			},
		},
		{
			name:  "negative satisfaction clamps to 1",
			input: `{"satisfaction_level":-4}`,
			check: func(t *testing.T, mood string, satisfaction int, status string, needs []string) {
				assert.Equal(t, 1, satisfaction)
			},
		},
		{name: "prose", input: "Sure! Here is the analysis.", wantErr: true},
		{name: "empty", input: "```\n```", wantErr: true},
		{name: "truncated", input: `{"customer_mood":"happy"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseCompletion(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedCompletion))
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			tt.check(t, result.CustomerMood, result.SatisfactionLevel, result.ResolutionStatus, result.CustomerNeeds)
		})
	}
}

func TestSentimentScore(t *testing.T) {
	tests := map[string]float64{
		"angry":      -1,
		"frustrated": -0.7,
		"confused":   -0.3,
		"neutral":    0,
		"satisfied":  0.7,
		"happy":      1,
		"Happy":      1,
		"":           0,
		"bored":      0,
	}
	for mood, want := range tests {
		assert.Equal(t, want, SentimentScore(mood), mood)
	}
}

func TestUrgencyScore(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		satisfaction int
		want         int
	}{
		{"neutral baseline", "hello there", 3, 3},
		{"satisfied lowers", "thanks", 5, 2},
		{"unhappy raises", "meh", 1, 4},
		{"urgent keywords add", "this is URGENT, please fix immediately", 3, 5},
		{"vietnamese urgent", "ứng dụng bị lỗi, cần gấp", 3, 5},
		{"low urgency subtracts", "no rush, whenever you can", 4, 1},
		{"balanced lists cancel", "urgent but no rush", 3, 3},
		{"clamped high", "urgent emergency asap critical immediately", 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UrgencyScore(tt.text, tt.satisfaction))
		})
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		name   string
		topics []string
		issues []string
		want   string
	}{
		{"empty", nil, nil, "general"},
		{"technical wins over billing", []string{"payment"}, []string{"checkout error"}, "technical"},
		{"billing", []string{"Invoice question"}, nil, "billing"},
		{"feature", []string{"feature idea"}, nil, "feature"},
		{"support", []string{"need help with setup"}, nil, "support"},
		{"feedback", []string{"suggestion box"}, nil, "feedback"},
		{"account", []string{"password reset"}, nil, "account"},
		{"vietnamese account", []string{"Đăng nhập"}, nil, "account"},
		{"unmatched", []string{"weather"}, nil, "general"},
		{"issues only", nil, []string{"bug in app"}, "technical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.topics, tt.issues))
		})
	}
}

func TestEmbeddingInput(t *testing.T) {
	assert.Equal(t, "summary", EmbeddingInput("  summary ", "conversation"))
	assert.Equal(t, "conversation", EmbeddingInput("", "conversation"))

	long := strings.Repeat("a", embeddingPrefixChars+50)
	assert.Len(t, EmbeddingInput("", long), embeddingPrefixChars)
}
