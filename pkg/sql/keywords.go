package sql

// reserved words that can never be a table alias, a column alias or a column
// reference.
var reserved = toSet(
	"ALL", "AND", "ANY", "APPLY", "AS", "ASC", "BETWEEN", "BY", "CASE", "CROSS",
	"CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP", "DEFAULT", "DELETE", "DESC",
	"DISTINCT", "ELSE", "END", "ESCAPE", "EXCEPT", "EXISTS", "FALSE", "FETCH",
	"FOR", "FROM", "FULL", "GROUP", "HAVING", "ILIKE", "IN", "INNER", "INSERT",
	"INTERSECT", "INTERVAL", "INTO", "IS", "JOIN", "LATERAL", "LEFT", "LIKE",
	"LIMIT", "MATCHED", "MERGE", "MINUS", "NATURAL", "NOT", "NULL", "OFFSET",
	"ON", "OR", "ORDER", "OUTER", "OUTPUT", "OVER", "PARTITION", "PIVOT",
	"QUALIFY", "RETURNING", "RIGHT", "SELECT", "SET", "SIMILAR", "SOME",
	"STRAIGHT_JOIN", "TABLESAMPLE", "THEN", "TOP", "TRUE", "UNION", "UNKNOWN",
	"UNPIVOT", "UPDATE", "USING", "VALUES", "WHEN", "WHERE", "WINDOW", "WITH",
)

// clauseEnd words close a FROM list, a JOIN condition or a SET list.
var clauseEnd = toSet(
	"WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET", "FETCH", "UNION",
	"INTERSECT", "EXCEPT", "MINUS", "WINDOW", "QUALIFY", "RETURNING", "OUTPUT",
	"WHEN", "SET", "VALUES", "SELECT", "FOR", "OPTION",
	"JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "NATURAL", "STRAIGHT_JOIN",
	"OUTER", "APPLY",
)

// selectListEnd words close a SELECT list.
var selectListEnd = toSet(
	"FROM", "INTO", "WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET",
	"FETCH", "UNION", "INTERSECT", "EXCEPT", "MINUS", "WINDOW", "QUALIFY", "FOR",
	"OPTION",
)

// joinModifiers may precede JOIN.
var joinModifiers = toSet("INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "NATURAL")

// nonFunctionWords are followed by '(' without being function calls.
var nonFunctionWords = toSet(
	"AND", "OR", "NOT", "IN", "EXISTS", "ANY", "ALL", "SOME", "WHEN", "THEN",
	"ELSE", "CASE", "VALUES", "AS", "ON", "USING", "OVER", "FILTER", "WITHIN",
	"IS", "LIKE", "BETWEEN",
)

// dateParts appear as bare words inside EXTRACT/DATEPART/DATEDIFF.
var dateParts = toSet(
	"YEAR", "QUARTER", "MONTH", "WEEK", "DAY", "DOW", "DOY", "HOUR", "MINUTE",
	"SECOND", "MILLISECOND", "MICROSECOND", "EPOCH", "YY", "YYYY", "MM", "DD",
	"HH", "MI", "SS", "DAYOFYEAR", "WEEKDAY",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
