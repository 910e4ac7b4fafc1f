package signals

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// ValueOverlapGenerator compares sampled values of a source column with
// those of a unique target column.
type ValueOverlapGenerator struct {
	opts Options
}

func NewValueOverlapGenerator(opts Options) *ValueOverlapGenerator {
	return &ValueOverlapGenerator{opts: opts}
}

func (g *ValueOverlapGenerator) Signal() models.SignalType { return models.SignalValueOverlap }

func (g *ValueOverlapGenerator) Generate(source *models.TableDescriptor, tables []models.TableDescriptor) []models.Candidate {
	var out []models.Candidate
	for _, sc := range source.Columns {
		if sc.IsPrimaryKey && g.opts.SkipPrimaryKeySources {
			continue
		}
		srcSet := valueSet(sc.SampleValues)
		if len(srcSet) == 0 {
			continue
		}
		others(source, tables, func(target *models.TableDescriptor) {
			for _, tc := range target.Columns {
				if !isUniqueTarget(target, tc, g.opts.TargetUniquenessMin) {
					continue
				}
				if !TypesCompatible(sc.DeclaredType, tc.DeclaredType) {
					continue
				}
				tgtSet := valueSet(tc.SampleValues)
				if len(tgtSet) == 0 {
					continue
				}
				shared := 0
				for v := range srcSet {
					if _, ok := tgtSet[v]; ok {
						shared++
					}
				}
				overlap := float64(shared) / float64(len(srcSet))
				if overlap <= g.opts.OverlapThreshold {
					continue
				}
				out = append(out, models.Candidate{
					SourceTable:  source.QualifiedName,
					SourceColumn: sc.Name,
					TargetTable:  target.QualifiedName,
					TargetColumn: tc.Name,
					SignalType:   models.SignalValueOverlap,
					Similarity:   overlap,
					Confidence:   clamp01(min(g.opts.OverlapCap, g.opts.OverlapBase+overlap/2)),
					Reason: fmt.Sprintf("%d/%d sampled %s values found in %s.%s",
						shared, len(srcSet), sc.Name, target.TableName(), tc.Name),
					SuggestedJoin: joinFor(sc),
				})
			}
		})
	}
	return out
}

// valueSet is the set of trimmed, non-empty sample values.
func valueSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
