package fusion

import (
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// MergeClassifications merges PII classifications produced by successive
// rule iterations, keyed by column name (case-insensitive), in order of first
// appearance. A sensitive verdict beats a non-sensitive one; otherwise the
// higher confidence wins. Evidence patterns are unioned.
func MergeClassifications(iterations ...[]models.ContentClassification) []models.ContentClassification {
	var order []string
	merged := make(map[string]*models.ContentClassification)

	for _, iteration := range iterations {
		for _, c := range iteration {
			key := strings.ToLower(c.ColumnName)
			cur, ok := merged[key]
			if !ok {
				cp := c
				cp.EvidencePatterns = append([]string(nil), c.EvidencePatterns...)
				merged[key] = &cp
				order = append(order, key)
				continue
			}
			patterns := unionPatterns(cur.EvidencePatterns, c.EvidencePatterns)
			if beats(c, *cur) {
				*cur = c
			}
			cur.EvidencePatterns = patterns
		}
	}

	out := make([]models.ContentClassification, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	return out
}

func beats(candidate, current models.ContentClassification) bool {
	if candidate.IsSensitive != current.IsSensitive {
		return candidate.IsSensitive
	}
	return candidate.Confidence > current.Confidence
}

func unionPatterns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
