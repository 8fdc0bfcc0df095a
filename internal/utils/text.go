package utils

import (
	"sort"
	"strings"
	"unicode/utf8"

	"chatlens/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case and composes Unicode so Vietnamese diacritics compare equal
// regardless of how the client encoded them.
func Normalize(text string) string {
	// a Caser is stateful, so each call gets its own
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(text)))
}

// CountMatches returns how many of the keywords occur in text.
// Each keyword counts once no matter how often it appears.
func CountMatches(text string, keywords []string) int {
	haystack := Normalize(text)
	if haystack == "" {
		return 0
	}

	count := 0
	for _, keyword := range keywords {
		if strings.Contains(haystack, Normalize(keyword)) {
			count++
		}
	}
	return count
}

// ContainsAny reports whether any keyword occurs in text.
func ContainsAny(text string, keywords []string) bool {
	return CountMatches(text, keywords) > 0
}

// Truncate cuts text to at most max runes.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// Frequency counts values case-insensitively and returns the top entries,
// most frequent first. Values are reported lower-cased and trimmed; ties keep first-seen order.
func Frequency(values []string, top int) []models.FrequencyEntry {
	type bucket struct {
		display string
		count   int
		order   int
	}

	buckets := make(map[string]*bucket)
	for _, value := range values {
		key := Normalize(value)
		if key == "" {
			continue
		}
		if b, ok := buckets[key]; ok {
			b.count++
			continue
		}
		buckets[key] = &bucket{display: key, count: 1, order: len(buckets)}
	}

	list := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].order < list[j].order
	})

	if top > 0 && len(list) > top {
		list = list[:top]
	}

	result := make([]models.FrequencyEntry, len(list))
	for i, b := range list {
		result[i] = models.FrequencyEntry{Value: b.display, Count: b.count}
	}
	return result
}
