// Package fusion merges independent relationship and classification signals
// into ranked conclusions.
package fusion

import (
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// DefaultCorroborationBonus is added once to a merged group backed by two or
// more pieces of evidence. It is applied per merge, never per signal, so
// corroboration cannot inflate confidence without bound.
const DefaultCorroborationBonus = 0.10

// ReasonSeparator joins the reasons of merged evidence.
const ReasonSeparator = "; "

// Options tunes fusion.
type Options struct {
	CorroborationBonus float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{CorroborationBonus: DefaultCorroborationBonus}
}

type pairKey struct {
	source, target string
}

type evidenceKey struct {
	sourceColumn, targetColumn string
	signal                     models.SignalType
}

type group struct {
	key      pairKey
	evidence []models.Candidate
	seen     map[evidenceKey]struct{}
}

// Fuse merges candidates sharing (sourceTable, targetTable) into one
// suggestion each, in order of first appearance. Evidence repeating a
// column pair from the same signal is dropped. The confidence is the mean of
// the evidence confidences, plus the corroboration bonus when more than one
// piece of evidence survives, capped at 1.
func Fuse(candidates []models.Candidate, opts Options) []models.FusedSuggestion {
	var groups []*group
	index := make(map[pairKey]*group)

	for _, c := range candidates {
		k := pairKey{source: c.SourceTable, target: c.TargetTable}
		g, ok := index[k]
		if !ok {
			g = &group{key: k, seen: make(map[evidenceKey]struct{})}
			index[k] = g
			groups = append(groups, g)
		}
		ek := evidenceKey{
			sourceColumn: strings.ToLower(c.SourceColumn),
			targetColumn: strings.ToLower(c.TargetColumn),
			signal:       c.SignalType,
		}
		if _, dup := g.seen[ek]; dup {
			continue
		}
		g.seen[ek] = struct{}{}
		c.Confidence = clamp01(c.Confidence)
		c.Similarity = clamp01(c.Similarity)
		g.evidence = append(g.evidence, c)
	}

	out := make([]models.FusedSuggestion, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.fuse(opts))
	}
	return out
}

func (g *group) fuse(opts Options) models.FusedSuggestion {
	var sum float64
	primary := 0
	reasons := make([]string, 0, len(g.evidence))
	for i, e := range g.evidence {
		sum += e.Confidence
		if e.Confidence > g.evidence[primary].Confidence {
			primary = i
		}
		if e.Reason != "" {
			reasons = append(reasons, e.Reason)
		}
	}

	confidence := sum / float64(len(g.evidence))
	if len(g.evidence) > 1 {
		confidence += opts.CorroborationBonus
	}

	best := g.evidence[primary]
	evidence := make([]models.Candidate, len(g.evidence))
	copy(evidence, g.evidence)

	return models.FusedSuggestion{
		SourceTable:   g.key.source,
		SourceColumn:  best.SourceColumn,
		TargetTable:   g.key.target,
		TargetColumn:  best.TargetColumn,
		Confidence:    clamp01(confidence),
		SuggestedJoin: best.SuggestedJoin,
		Evidence:      evidence,
		Reason:        strings.Join(reasons, ReasonSeparator),
	}
}

// AsCandidates reinterprets fused suggestions as single-evidence candidates,
// which lets a caller feed previous results back into Fuse.
func AsCandidates(suggestions []models.FusedSuggestion, signal models.SignalType) []models.Candidate {
	out := make([]models.Candidate, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, models.Candidate{
			SourceTable:   s.SourceTable,
			SourceColumn:  s.SourceColumn,
			TargetTable:   s.TargetTable,
			TargetColumn:  s.TargetColumn,
			SignalType:    signal,
			Similarity:    s.Confidence,
			Confidence:    s.Confidence,
			Reason:        s.Reason,
			SuggestedJoin: s.SuggestedJoin,
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
