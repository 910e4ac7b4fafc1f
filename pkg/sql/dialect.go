package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
)

// Dialect selects the lexical rules used when scanning statement text.
type Dialect string

const (
	DialectGeneric  Dialect = "generic"
	DialectPostgres Dialect = "postgres"
	DialectMSSQL    Dialect = "mssql"
	DialectMySQL    Dialect = "mysql"
)

var dialectAliases = map[string]Dialect{
	"":           DialectGeneric,
	"generic":    DialectGeneric,
	"ansi":       DialectGeneric,
	"postgres":   DialectPostgres,
	"postgresql": DialectPostgres,
	"pg":         DialectPostgres,
	"mssql":      DialectMSSQL,
	"sqlserver":  DialectMSSQL,
	"tsql":       DialectMSSQL,
	"mysql":      DialectMySQL,
	"mariadb":    DialectMySQL,
}

// ParseDialect maps a user supplied dialect name to a Dialect.
// The empty string selects DialectGeneric.
func ParseDialect(name string) (Dialect, error) {
	d, ok := dialectAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", apperrors.NewValidationError("dialect", "unsupported dialect %q", name)
	}
	return d, nil
}

// doubleQuotedStrings: MySQL treats "..." as a string literal by default.
func (d Dialect) doubleQuotedStrings() bool {
	return d == DialectMySQL
}

// bracketIdentifiers: [name] quoting. PostgreSQL uses brackets for array
// subscripts instead.
func (d Dialect) bracketIdentifiers() bool {
	return d != DialectPostgres
}

func (d Dialect) dollarQuotedStrings() bool {
	return d == DialectPostgres || d == DialectGeneric
}

func (d Dialect) hashComments() bool {
	return d == DialectMySQL
}

func (d Dialect) backslashEscapes() bool {
	return d == DialectMySQL
}
