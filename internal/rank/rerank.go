// Package rank reorders relevance index matches by combining semantic
// similarity with historical engagement and, optionally, recency.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/replypilot/pkg/models"
)

// Metadata keys read from retrieved matches.
const (
	engagementKey = "reply_engagements"
	timestampKey  = "reply_created_at"
)

// defaultTimestamp stands in for matches indexed before timestamps
// were recorded.
var defaultTimestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Rerank scores each match as similarity*similarityWeight plus
// batch-normalized engagement*engagementWeight and returns the matches
// sorted by that combined score, best first. Engagement is normalized
// by the maximum engagement in the batch; a batch with no engagement
// at all ranks on similarity alone. The weights need not sum to 1.
func Rerank(matches []models.RetrievedMatch, similarityWeight, engagementWeight float64) []models.RetrievedMatch {
	return rerank(matches, similarityWeight, engagementWeight, 0, time.Time{})
}

// RerankWithDecay behaves like Rerank but additionally multiplies each
// combined score by 0.5^(age_days/halfLifeDays), so a match loses half
// its score every halfLifeDays days of age relative to now.
func RerankWithDecay(matches []models.RetrievedMatch, similarityWeight, engagementWeight, halfLifeDays float64, now time.Time) []models.RetrievedMatch {
	return rerank(matches, similarityWeight, engagementWeight, halfLifeDays, now)
}

func rerank(matches []models.RetrievedMatch, similarityWeight, engagementWeight, halfLifeDays float64, now time.Time) []models.RetrievedMatch {
	out := make([]models.RetrievedMatch, len(matches))
	copy(out, matches)

	var maxEngagement float64
	for _, m := range out {
		if e := metadataNumber(m.Metadata, engagementKey); e > maxEngagement {
			maxEngagement = e
		}
	}

	for i := range out {
		normalized := 0.0
		if maxEngagement > 0 {
			normalized = metadataNumber(out[i].Metadata, engagementKey) / maxEngagement
		}

		score := out[i].Score*similarityWeight + normalized*engagementWeight
		if halfLifeDays > 0 {
			ageDays := now.Sub(metadataTime(out[i].Metadata, timestampKey)).Hours() / 24
			score *= math.Pow(0.5, ageDays/halfLifeDays)
		}
		out[i].CombinedScore = score
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return out
}

// metadataNumber reads a numeric metadata value. JSON round-trips turn
// numbers into float64 but locally built metadata may carry int64.
func metadataNumber(metadata map[string]any, key string) float64 {
	switch v := metadata[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func metadataTime(metadata map[string]any, key string) time.Time {
	raw, ok := metadata[key].(string)
	if !ok {
		return defaultTimestamp
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return defaultTimestamp
	}
	return ts
}
