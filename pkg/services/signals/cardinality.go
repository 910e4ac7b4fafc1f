package signals

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// CardinalityGenerator infers many-to-one relationships from data shape:
// a low-uniqueness source column against a near-unique target column,
// declared as a key or not.
type CardinalityGenerator struct {
	opts Options
}

func NewCardinalityGenerator(opts Options) *CardinalityGenerator {
	return &CardinalityGenerator{opts: opts}
}

func (g *CardinalityGenerator) Signal() models.SignalType { return models.SignalCardinality }

func (g *CardinalityGenerator) Generate(source *models.TableDescriptor, tables []models.TableDescriptor) []models.Candidate {
	var out []models.Candidate
	for _, sc := range source.Columns {
		if sc.IsPrimaryKey && g.opts.SkipPrimaryKeySources {
			continue
		}
		if isExcludedJoinType(sc.DeclaredType) {
			continue
		}
		srcU, ok := sc.Uniqueness(source.RowCount)
		if !ok || srcU >= g.opts.SourceUniquenessMax {
			continue
		}
		others(source, tables, func(target *models.TableDescriptor) {
			for _, tc := range target.Columns {
				if isExcludedJoinType(tc.DeclaredType) || !isUniqueTarget(target, tc, g.opts.TargetUniquenessMin) {
					continue
				}
				if !TypesCompatible(sc.DeclaredType, tc.DeclaredType) {
					continue
				}
				tgtU, ok := tc.Uniqueness(target.RowCount)
				if !ok || tgtU <= g.opts.TargetUniquenessMin {
					continue
				}
				// every source value must be able to exist in the target
				if *sc.DistinctCount > *tc.DistinctCount {
					continue
				}
				gap := tgtU - srcU
				out = append(out, models.Candidate{
					SourceTable:  source.QualifiedName,
					SourceColumn: sc.Name,
					TargetTable:  target.QualifiedName,
					TargetColumn: tc.Name,
					SignalType:   models.SignalCardinality,
					Similarity:   clamp01(gap),
					Confidence:   clamp01(g.opts.CardinalityBase + gap*g.opts.CardinalitySpread),
					Reason: fmt.Sprintf("many-to-one shape: %s uniqueness %.2f vs %s.%s uniqueness %.2f",
						sc.Name, srcU, target.TableName(), tc.Name, tgtU),
					SuggestedJoin: joinFor(sc),
				})
			}
		})
	}
	return out
}
