package analysis

import (
	"strings"

	"chatlens/internal/utils"
)

var sentimentByMood = map[string]float64{
	"angry":      -1,
	"frustrated": -0.7,
	"confused":   -0.3,
	"neutral":    0,
	"satisfied":  0.7,
	"happy":      1,
}

// English and Vietnamese phrases
var (
	urgentKeywords = []string{
		"urgent", "emergency", "asap", "immediately", "critical",
		"không hoạt động", "lỗi", "không thể", "gấp", "khẩn cấp",
	}
	lowUrgencyKeywords = []string{
		"when you have time", "no rush", "whenever", "không gấp", "từ từ",
	}
)

type categoryRule struct {
	name     string
	keywords []string
}

// first match wins
var categoryRules = []categoryRule{
	{"technical", []string{"bug", "error", "issue", "problem", "lỗi", "vấn đề kỹ thuật"}},
	{"billing", []string{"payment", "invoice", "billing", "charge", "thanh toán", "hóa đơn"}},
	{"feature", []string{"feature", "request", "enhancement", "tính năng", "yêu cầu"}},
	{"support", []string{"help", "assistance", "guide", "tutorial", "hỗ trợ", "hướng dẫn"}},
	{"feedback", []string{"feedback", "suggestion", "improvement", "phản hồi", "góp ý"}},
	{"account", []string{"account", "profile", "login", "password", "tài khoản", "đăng nhập"}},
}

const (
	defaultCategory = "general"
	minUrgency      = 1
	maxUrgency      = 5
	baseUrgency     = 3
)

// SentimentScore maps a mood to [-1, 1]. Unknown moods are neutral.
func SentimentScore(mood string) float64 {
	return sentimentByMood[utils.Normalize(mood)]
}

// UrgencyScore starts at 3, moves one step with satisfaction, then by the
// number of urgent or low-urgency phrases found, whichever side has more.
func UrgencyScore(conversationText string, satisfaction int) int {
	score := baseUrgency
	if satisfaction >= 4 {
		score--
	} else if satisfaction <= 2 {
		score++
	}

	urgent := utils.CountMatches(conversationText, urgentKeywords)
	relaxed := utils.CountMatches(conversationText, lowUrgencyKeywords)

	switch {
	case urgent > relaxed:
		score += urgent
	case relaxed > urgent:
		score -= relaxed
	}

	return clamp(score, minUrgency, maxUrgency)
}

// Category matches topics and technical issues against the ordered rules
func Category(topics, technicalIssues []string) string {
	all := append(append([]string{}, topics...), technicalIssues...)
	text := strings.Join(all, " ")
	if strings.TrimSpace(text) == "" {
		return defaultCategory
	}

	for _, rule := range categoryRules {
		if utils.ContainsAny(text, rule.keywords) {
			return rule.name
		}
	}
	return defaultCategory
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
