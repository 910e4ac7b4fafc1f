package mssql

import (
	"fmt"
	"strings"
)

// quoteName returns the bracket-quoted form QUOTENAME() would produce:
// square brackets with ] escaped as ]].
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds a fully qualified table name: [schema].[table]
func buildFullyQualifiedName(schema, table string) string {
	return fmt.Sprintf("%s.%s", quoteName(schema), quoteName(table))
}

// catalogPrefix returns "[db]." for cross-database catalog views, or ""
// for the connected database.
func catalogPrefix(database string) string {
	if database == "" {
		return ""
	}
	return quoteName(database) + "."
}
