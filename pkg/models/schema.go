package models

import "strings"

// ColumnDescriptor is the typed, immutable view of one column for a scan.
// Providers build it once; the inference engine only reads it.
type ColumnDescriptor struct {
	Name          string   `json:"name" yaml:"name"`
	DeclaredType  string   `json:"declared_type" yaml:"type"`
	Nullable      bool     `json:"nullable" yaml:"nullable"`
	IsPrimaryKey  bool     `json:"is_primary_key" yaml:"primary_key"`
	IsForeignKey  bool     `json:"is_foreign_key" yaml:"foreign_key"`
	DistinctCount *int64   `json:"distinct_count,omitempty" yaml:"distinct_count,omitempty"`
	NullCount     *int64   `json:"null_count,omitempty" yaml:"null_count,omitempty"`
	SampleValues  []string `json:"sample_values,omitempty" yaml:"samples,omitempty"`
}

// TableDescriptor is a table snapshot. QualifiedName is database.schema.table
// with empty leading parts omitted, and is unique within a scan.
type TableDescriptor struct {
	QualifiedName string             `json:"qualified_name" yaml:"name"`
	RowCount      *int64             `json:"row_count,omitempty" yaml:"row_count,omitempty"`
	Columns       []ColumnDescriptor `json:"columns" yaml:"columns"`
}

// QualifyName joins the non-empty parts of a table reference with dots.
func QualifyName(database, schema, table string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{database, schema, table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// TableName returns the last segment of the qualified name.
func (t *TableDescriptor) TableName() string {
	if i := strings.LastIndex(t.QualifiedName, "."); i >= 0 {
		return t.QualifiedName[i+1:]
	}
	return t.QualifiedName
}

// SchemaName returns the segment before the table name, if any.
func (t *TableDescriptor) SchemaName() string {
	parts := strings.Split(t.QualifiedName, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// PrimaryKeys returns the primary-key columns in declaration order.
func (t *TableDescriptor) PrimaryKeys() []ColumnDescriptor {
	var pks []ColumnDescriptor
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// Column looks a column up by name, case-insensitively.
func (t *TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Uniqueness is distinctCount / rowCount. ok is false when either count is
// unknown or the table is empty.
func (c *ColumnDescriptor) Uniqueness(rowCount *int64) (u float64, ok bool) {
	if c.DistinctCount == nil || rowCount == nil || *rowCount <= 0 {
		return 0, false
	}
	u = float64(*c.DistinctCount) / float64(*rowCount)
	if u > 1 {
		u = 1
	}
	return u, true
}
