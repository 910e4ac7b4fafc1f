package fusion

import (
	"sort"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

const (
	DefaultMinConfidence  = 0.7
	DefaultMaxSuggestions = 20
	MaxSuggestionsCap     = 100
)

// Rank drops suggestions below minConfidence, sorts the rest by descending
// confidence keeping insertion order on ties, and truncates to
// maxSuggestions. maxSuggestions <= 0 uses the default; values above the
// hard cap are capped. The input slice is not modified.
func Rank(suggestions []models.FusedSuggestion, minConfidence float64, maxSuggestions int) []models.FusedSuggestion {
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	if maxSuggestions > MaxSuggestionsCap {
		maxSuggestions = MaxSuggestionsCap
	}
	minConfidence = clamp01(minConfidence)

	kept := make([]models.FusedSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Confidence < minConfidence {
			continue
		}
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})

	if len(kept) > maxSuggestions {
		kept = kept[:maxSuggestions]
	}
	return kept
}
