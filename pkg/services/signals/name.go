package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/similarity"
)

// NamingRule is a foreign-key naming convention. Pattern's first capture
// group is the base token naming the referenced table.
type NamingRule struct {
	Pattern    *regexp.Regexp
	Confidence float64
}

// defaultNamingPatterns are tried in order; the first match wins.
var defaultNamingPatterns = []struct {
	pattern    string
	confidence float64
}{
	{`(?i)^fk_(.+)$`, 0.95},
	{`(?i)^(.+)_id$`, 0.9},
	{`(?i)^(.+)_fk$`, 0.9},
	{`^([a-z][a-zA-Z0-9]*)Id$`, 0.85},
	{`(?i)^(.+)_key$`, 0.8},
	{`(?i)^(.+)_ref$`, 0.8},
}

// DefaultNamingRules returns the built-in foreign-key naming conventions.
func DefaultNamingRules() []NamingRule {
	rules := make([]NamingRule, 0, len(defaultNamingPatterns))
	for _, p := range defaultNamingPatterns {
		rules = append(rules, NamingRule{
			Pattern:    regexp.MustCompile(p.pattern),
			Confidence: p.confidence,
		})
	}
	return rules
}

// NamePatternGenerator matches FK-style column names against the names of
// other tables.
type NamePatternGenerator struct {
	rules     []NamingRule
	threshold float64
}

func NewNamePatternGenerator(opts Options, rules []NamingRule) *NamePatternGenerator {
	if rules == nil {
		rules = DefaultNamingRules()
	}
	return &NamePatternGenerator{rules: rules, threshold: opts.NameSimilarityThreshold}
}

func (g *NamePatternGenerator) Signal() models.SignalType { return models.SignalName }

func (g *NamePatternGenerator) Generate(source *models.TableDescriptor, tables []models.TableDescriptor) []models.Candidate {
	var out []models.Candidate
	for _, col := range source.Columns {
		rule, base, ok := g.match(col.Name)
		if !ok {
			continue
		}
		others(source, tables, func(target *models.TableDescriptor) {
			pks := target.PrimaryKeys()
			if len(pks) == 0 {
				return
			}
			sim := tableNameSimilarity(base, target.TableName())
			if sim <= g.threshold {
				return
			}
			out = append(out, models.Candidate{
				SourceTable:   source.QualifiedName,
				SourceColumn:  col.Name,
				TargetTable:   target.QualifiedName,
				TargetColumn:  pks[0].Name,
				SignalType:    models.SignalName,
				Similarity:    sim,
				Confidence:    clamp01(rule.Confidence * sim),
				Reason:        fmt.Sprintf("column %s names table %s (similarity %.2f)", col.Name, target.TableName(), sim),
				SuggestedJoin: joinFor(col),
			})
		})
	}
	return out
}

// match returns the first rule matching the column and its base token.
func (g *NamePatternGenerator) match(column string) (NamingRule, string, bool) {
	for _, r := range g.rules {
		m := r.Pattern.FindStringSubmatch(column)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		base := strings.ToLower(m[1])
		// fk_customer_id -> customer
		for _, suffix := range []string{"_id", "_key"} {
			if trimmed := strings.TrimSuffix(base, suffix); trimmed != "" {
				base = trimmed
			}
		}
		return r, base, true
	}
	return NamingRule{}, "", false
}

// tableNameSimilarity compares a base token with a table name and its
// singular form. A multi-word base also tries its trailing word at a
// penalty, so created_by_user matches users.
func tableNameSimilarity(base, table string) float64 {
	table = strings.ToLower(table)
	singular := inflection.Singular(table)

	best := max(similarity.String(base, table), similarity.String(base, singular))
	if i := strings.LastIndex(base, "_"); i >= 0 && i < len(base)-1 {
		seg := base[i+1:]
		segSim := max(similarity.String(seg, table), similarity.String(seg, singular)) * segmentSimilarityPenalty
		best = max(best, segSim)
	}
	return best
}
