package signals

// Tunable defaults for the relationship generators. The cardinality and
// overlap thresholds were calibrated empirically and are not load-bearing.
const (
	DefaultNameSimilarityThreshold = 0.6
	DefaultTypeSimilarityThreshold = 0.7
	DefaultTypeConfidenceFactor    = 0.75
	DefaultSourceUniquenessMax     = 0.9
	DefaultTargetUniquenessMin     = 0.95
	DefaultCardinalityBase         = 0.6
	DefaultCardinalitySpread       = 0.3
	DefaultOverlapThreshold        = 0.5
	DefaultOverlapBase             = 0.40
	DefaultOverlapCap              = 0.95

	// segmentSimilarityPenalty scales the similarity obtained by matching only
	// the trailing segment of a naming base token (created_by_user -> user).
	segmentSimilarityPenalty = 0.9
)

// Options tunes the relationship generators.
type Options struct {
	NameSimilarityThreshold float64
	TypeSimilarityThreshold float64
	TypeConfidenceFactor    float64
	SourceUniquenessMax     float64
	TargetUniquenessMin     float64
	CardinalityBase         float64
	CardinalitySpread       float64
	OverlapThreshold        float64
	OverlapBase             float64
	OverlapCap              float64

	// SkipPrimaryKeySources keeps primary-key columns out of the source side
	// of the type, cardinality and overlap generators.
	SkipPrimaryKeySources bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		NameSimilarityThreshold: DefaultNameSimilarityThreshold,
		TypeSimilarityThreshold: DefaultTypeSimilarityThreshold,
		TypeConfidenceFactor:    DefaultTypeConfidenceFactor,
		SourceUniquenessMax:     DefaultSourceUniquenessMax,
		TargetUniquenessMin:     DefaultTargetUniquenessMin,
		CardinalityBase:         DefaultCardinalityBase,
		CardinalitySpread:       DefaultCardinalitySpread,
		OverlapThreshold:        DefaultOverlapThreshold,
		OverlapBase:             DefaultOverlapBase,
		OverlapCap:              DefaultOverlapCap,
		SkipPrimaryKeySources:   true,
	}
}
