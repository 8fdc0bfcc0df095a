package embeddings

import (
	"math"
	"sort"

	"chatlens/internal/models"
)

// DefaultClusterThreshold and MaxClusterPairs bound the pairwise scan output
const (
	DefaultClusterThreshold = 0.8
	MaxClusterPairs         = 50
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RoundScore rounds a similarity to two decimals for presentation
func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clusters pairs every lower-id row with every higher-id row and keeps pairs
// whose similarity is strictly above threshold, most similar first, at most limit.
// This is quadratic in len(rows).
func Clusters(rows []models.EmbeddedConversation, threshold float64, limit int) []models.ConversationPair {
	sorted := make([]models.EmbeddedConversation, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	pairs := []models.ConversationPair{}
	for i := 0; i < len(sorted); i++ {
		a := sorted[i]
		if len(a.Vector) == 0 {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			b := sorted[j]
			if len(b.Vector) == 0 || a.ID == b.ID {
				continue
			}
			sim := CosineSimilarity(a.Vector, b.Vector)
			if sim <= threshold {
				continue
			}
			pairs = append(pairs, models.ConversationPair{
				SessionKey1: a.SessionKey,
				SessionKey2: b.SessionKey,
				Summary1:    a.Summary,
				Summary2:    b.Summary,
				Topics1:     a.Topics,
				Topics2:     b.Topics,
				Similarity:  sim,
			})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Similarity > pairs[j].Similarity })
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
