package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// TableRef identifies a table returned by ListTables. RowCount is the
// catalog estimate when the datasource keeps one.
type TableRef struct {
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Schema   string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name     string `json:"name" yaml:"name"`
	RowCount *int64 `json:"row_count,omitempty" yaml:"row_count,omitempty"`
}

// QualifiedName returns database.schema.table with empty parts omitted.
func (t TableRef) QualifiedName() string {
	return models.QualifyName(t.Database, t.Schema, t.Name)
}

// MetadataProvider reads catalog metadata and samples from one datasource.
// Implementations are safe for concurrent use and own their connection,
// which is released by Close.
type MetadataProvider interface {
	// ListTables returns the user tables of database, or of the connected
	// database when database is empty. System schemas are excluded.
	ListTables(ctx context.Context, database string) ([]TableRef, error)

	// GetColumns returns the columns of a table in declaration order.
	// Distinct and null counts are left unset; callers fill them through
	// ExecuteScalarQuery when they need them.
	GetColumns(ctx context.Context, table TableRef) ([]models.ColumnDescriptor, error)

	// ExecuteScalarQuery runs a query returning one row with one column.
	// Used for row counts and distinct counts; callers must tolerate failure.
	ExecuteScalarQuery(ctx context.Context, query, database string) (any, error)

	// GetSampleValues returns up to limit distinct non-null values of a
	// column, rendered as text.
	GetSampleValues(ctx context.Context, schema, table, column string, limit int) ([]string, error)

	// QuoteIdentifier quotes one identifier part for the provider's dialect.
	QuoteIdentifier(name string) string

	Close() error
}
