// Package signals holds the independent relationship signal generators.
// Each generator is a pure function of the table snapshot.
package signals

import (
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// Generator emits relationship candidates whose source is one table.
// Implementations must not retain or mutate their inputs.
type Generator interface {
	Signal() models.SignalType
	Generate(source *models.TableDescriptor, tables []models.TableDescriptor) []models.Candidate
}

// Build returns the generators for a scan in their canonical order. The
// value-overlap generator is only included when samples were loaded.
func Build(opts Options, naming []NamingRule, includeSamples bool) []Generator {
	gens := []Generator{
		NewNamePatternGenerator(opts, naming),
		NewTypeCompatibilityGenerator(opts),
		NewCardinalityGenerator(opts),
	}
	if includeSamples {
		gens = append(gens, NewValueOverlapGenerator(opts))
	}
	return gens
}

// others yields every table except source, in order.
func others(source *models.TableDescriptor, tables []models.TableDescriptor, fn func(*models.TableDescriptor)) {
	for i := range tables {
		if tables[i].QualifiedName == source.QualifiedName {
			continue
		}
		fn(&tables[i])
	}
}

// isUniqueTarget reports whether col can be the referenced side of a
// relationship: a declared primary key, or a column whose measured
// uniqueness exceeds minUniqueness. Undeclared catalogs rely on the second form.
func isUniqueTarget(target *models.TableDescriptor, col models.ColumnDescriptor, minUniqueness float64) bool {
	if col.IsPrimaryKey {
		return true
	}
	u, ok := col.Uniqueness(target.RowCount)
	return ok && u > minUniqueness
}
