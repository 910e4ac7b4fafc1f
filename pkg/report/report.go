// Package report renders scan results for terminals and documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
)

// Format selects how results are written.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists the accepted format names.
var Formats = []string{string(FormatTable), string(FormatMarkdown), string(FormatJSON)}

// ParseFormat maps a flag value to a Format. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", apperrors.NewValidationError("output", "unknown format %q (want one of %s)", s, strings.Join(Formats, ", "))
}

// Renderer writes results in a fixed format.
type Renderer struct {
	w      io.Writer
	format Format
}

func NewRenderer(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Suggestions writes a relationship scan result.
func (r *Renderer) Suggestions(res *services.SuggestionResult) error {
	if r.format == FormatJSON {
		return r.json(res)
	}

	if len(res.Suggestions) == 0 {
		r.printf("No relationships suggested (%d tables scanned).\n", res.TablesScanned)
		if res.Reason != "" {
			r.printf("%s\n", res.Reason)
		}
		return nil
	}

	t := r.table()
	t.SetTitle(fmt.Sprintf("Relationship suggestions (rules %s)", res.RulesVersion))
	t.AppendHeader(table.Row{"#", "Source", "Target", "Confidence", "Join", "Signals"})
	for i, s := range res.Suggestions {
		t.AppendRow(table.Row{
			i + 1,
			s.SourceTable + "." + s.SourceColumn,
			s.TargetTable + "." + s.TargetColumn,
			percent(s.Confidence),
			s.SuggestedJoin,
			signalNames(s.Evidence),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Tables", res.TablesScanned})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, WidthMax: 48},
	})
	r.render(t)

	if res.FailedUnits > 0 || res.MetadataFailures > 0 {
		r.printf("Partial scan: %d signal units and %d metadata calls failed.\n", res.FailedUnits, res.MetadataFailures)
	}
	return nil
}

// Classifications writes column classifications in the order given.
func (r *Renderer) Classifications(results []models.ContentClassification) error {
	if r.format == FormatJSON {
		return r.json(results)
	}
	r.classificationTable("", results)
	return nil
}

// TableClassification groups the classifications of one table.
type TableClassification struct {
	Table   string                         `json:"table"`
	Columns []models.ContentClassification `json:"columns"`
}

// TableClassifications writes one classification table per table.
func (r *Renderer) TableClassifications(tables []TableClassification) error {
	if r.format == FormatJSON {
		return r.json(tables)
	}
	if len(tables) == 0 {
		r.printf("No tables matched.\n")
		return nil
	}
	for _, t := range tables {
		r.classificationTable(t.Table, t.Columns)
	}
	return nil
}

func (r *Renderer) classificationTable(title string, results []models.ContentClassification) {
	t := r.table()
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Column", "Sensitive", "Category", "Confidence", "Samples", "Reason"})
	for _, c := range results {
		t.AppendRow(table.Row{
			c.ColumnName,
			yesNo(c.IsSensitive),
			c.CategoryName(),
			fmt.Sprintf("%.0f", c.Confidence),
			fmt.Sprintf("%d/%d", c.SampleMatches, c.TotalSamples),
			c.Reason,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, WidthMax: 60},
	})
	r.render(t)
}

// Lineage writes parsed lineage as up to four tables: referenced tables,
// selected columns, column lineage and joins.
func (r *Renderer) Lineage(l *models.ParsedLineage) error {
	if r.format == FormatJSON {
		return r.json(l)
	}

	r.printf("Query type: %s (confidence %s)\n", l.QueryType, percent(l.Confidence))

	if len(l.Tables) > 0 {
		t := r.table()
		t.SetTitle("Tables")
		t.AppendHeader(table.Row{"Table", "Alias", "Role"})
		for _, tbl := range l.Tables {
			t.AppendRow(table.Row{tbl.QualifiedName(), tbl.Alias, tbl.Role})
		}
		r.render(t)
	}

	if len(l.Columns) > 0 {
		t := r.table()
		t.SetTitle("Columns")
		t.AppendHeader(table.Row{"Name", "Expression", "Transformation"})
		for _, c := range l.Columns {
			t.AppendRow(table.Row{c.Name, c.Expression, c.TransformationType})
		}
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 60}})
		r.render(t)
	}

	if len(l.ColumnLineage) > 0 {
		t := r.table()
		t.SetTitle("Column lineage")
		t.AppendHeader(table.Row{"Source", "Target", "Transformation", "Confidence"})
		for _, c := range l.ColumnLineage {
			t.AppendRow(table.Row{
				c.SourceTable + "." + c.SourceColumn,
				c.TargetTable + "." + c.TargetColumn,
				c.TransformationType,
				percent(c.Confidence),
			})
		}
		r.render(t)
	}

	if len(l.Joins) > 0 {
		t := r.table()
		t.SetTitle("Joins")
		t.AppendHeader(table.Row{"Left", "Right", "Type", "Condition"})
		for _, j := range l.Joins {
			t.AppendRow(table.Row{j.Left, j.Right, j.Type, j.Condition})
		}
		r.render(t)
	}
	return nil
}

func (r *Renderer) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	return t
}

func (r *Renderer) render(t table.Writer) {
	if r.format == FormatMarkdown {
		t.RenderMarkdown()
		r.printf("\n")
		return
	}
	t.Render()
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func signalNames(evidence []models.Candidate) string {
	names := make([]string, 0, len(evidence))
	for _, c := range evidence {
		names = append(names, string(c.SignalType))
	}
	return strings.Join(names, ", ")
}
