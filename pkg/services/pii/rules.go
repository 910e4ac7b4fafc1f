package pii

import (
	"regexp"
	"strings"
)

// MetadataRules recognise columns that hold catalog metadata (object names,
// change kinds) rather than personal data.
type MetadataRules struct {
	ColumnPatterns []*regexp.Regexp
	TablePatterns  []*regexp.Regexp
	Keywords       []string
}

// Rules is the classifier's view of one immutable rule snapshot.
type Rules struct {
	Metadata           MetadataRules
	Custom             []Matcher
	CredentialPatterns []*regexp.Regexp
}

var (
	DefaultMetadataColumnPatterns = []string{
		`(?i)^(schema|table|column|database|object|entity|field|index|constraint|trigger|view|relation|sequence)_name$`,
		`(?i)^(change|event|object|operation|statement|action)_type$`,
		`(?i)^(operation|action|op|dml_action)$`,
	}
	DefaultMetadataTablePatterns = []string{
		`(?i)(audit|log|history|metadata|change|event|migration)`,
	}
	DefaultMetadataKeywords = []string{
		"table", "schema", "column", "database", "index", "constraint", "trigger",
		"view", "sequence", "insert", "update", "delete", "select", "create",
		"alter", "drop", "truncate", "pg_", "sys.", "information_schema",
	}
	// DefaultCredentialPatterns flag column names that hold secrets.
	DefaultCredentialPatterns = []string{
		`(?i)(api[_-]?key|apikey)`,
		`(?i)(api[_-]?secret|apisecret)`,
		`(?i)(password|passwd|pwd)`,
		`(?i)(secret[_-]?key|secretkey)`,
		`(?i)(access|auth|bearer|refresh)[_-]?token`,
		`(?i)^token$`,
		`(?i)(private[_-]?key|privatekey)`,
		`(?i)(credential|^creds?$|_creds?$)`,
		`(?i)(client[_-]?secret)`,
	}
)

// DefaultRules returns the built-in rule snapshot with no custom rules.
func DefaultRules() Rules {
	return Rules{
		Metadata: MetadataRules{
			ColumnPatterns: mustCompileAll(DefaultMetadataColumnPatterns),
			TablePatterns:  mustCompileAll(DefaultMetadataTablePatterns),
			Keywords:       append([]string(nil), DefaultMetadataKeywords...),
		},
		CredentialPatterns: mustCompileAll(DefaultCredentialPatterns),
	}
}

func mustCompileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// IsMetadataContext reports whether a column sits where catalog metadata
// lives: a known metadata column name, or a *_name column in an
// audit/log/history style table.
func (r MetadataRules) IsMetadataContext(table, column string) bool {
	if matchesAny(r.ColumnPatterns, column) {
		return true
	}
	return matchesAny(r.TablePatterns, table) && strings.HasSuffix(strings.ToLower(column), "_name")
}

// ContainsKeyword reports whether value contains a metadata keyword.
func (r MetadataRules) ContainsKeyword(value string) bool {
	lower := strings.ToLower(value)
	for _, k := range r.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsCredentialName reports whether a column name looks like a secret.
func (r Rules) IsCredentialName(column string) bool {
	return matchesAny(r.CredentialPatterns, column)
}
