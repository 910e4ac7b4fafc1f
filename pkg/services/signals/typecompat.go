package signals

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/similarity"
)

// TypeCompatibilityGenerator pairs columns with a similarly named primary
// key of a compatible type in another table.
type TypeCompatibilityGenerator struct {
	opts Options
}

func NewTypeCompatibilityGenerator(opts Options) *TypeCompatibilityGenerator {
	return &TypeCompatibilityGenerator{opts: opts}
}

func (g *TypeCompatibilityGenerator) Signal() models.SignalType { return models.SignalTypeCompat }

func (g *TypeCompatibilityGenerator) Generate(source *models.TableDescriptor, tables []models.TableDescriptor) []models.Candidate {
	var out []models.Candidate
	others(source, tables, func(target *models.TableDescriptor) {
		for _, tc := range target.PrimaryKeys() {
			for _, sc := range source.Columns {
				if sc.IsPrimaryKey && g.opts.SkipPrimaryKeySources {
					continue
				}
				if !TypesCompatible(sc.DeclaredType, tc.DeclaredType) {
					continue
				}
				sim := similarity.String(sc.Name, tc.Name)
				if sim <= g.opts.TypeSimilarityThreshold {
					continue
				}
				out = append(out, models.Candidate{
					SourceTable:  source.QualifiedName,
					SourceColumn: sc.Name,
					TargetTable:  target.QualifiedName,
					TargetColumn: tc.Name,
					SignalType:   models.SignalTypeCompat,
					Similarity:   sim,
					Confidence:   clamp01(g.opts.TypeConfidenceFactor * sim),
					Reason: fmt.Sprintf("%s (%s) is type-compatible with key %s.%s (name similarity %.2f)",
						sc.Name, normalizeType(sc.DeclaredType), target.TableName(), tc.Name, sim),
					SuggestedJoin: joinFor(sc),
				})
			}
		}
	})
	return out
}
