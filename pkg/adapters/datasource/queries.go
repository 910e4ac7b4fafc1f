package datasource

import "fmt"

// QualifiedTable quotes schema and table with the provider's dialect.
func QualifiedTable(p MetadataProvider, schema, table string) string {
	if schema == "" {
		return p.QuoteIdentifier(table)
	}
	return p.QuoteIdentifier(schema) + "." + p.QuoteIdentifier(table)
}

// RowCountQuery counts the rows of a table.
func RowCountQuery(p MetadataProvider, ref TableRef) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", QualifiedTable(p, ref.Schema, ref.Name))
}

// DistinctCountQuery counts the distinct non-null values of a column.
func DistinctCountQuery(p MetadataProvider, ref TableRef, column string) string {
	return fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s",
		p.QuoteIdentifier(column), QualifiedTable(p, ref.Schema, ref.Name))
}

// NullCountQuery counts the NULLs of a column.
func NullCountQuery(p MetadataProvider, ref TableRef, column string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL",
		QualifiedTable(p, ref.Schema, ref.Name), p.QuoteIdentifier(column))
}
