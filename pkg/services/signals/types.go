package signals

import (
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// typeClasses groups declared types that can hold the same key values.
// Types outside every class are only compatible with an exact match.
var typeClasses = map[string]string{
	"int": "integer", "integer": "integer", "bigint": "integer",
	"smallint": "integer", "tinyint": "integer", "mediumint": "integer",
	"int2": "integer", "int4": "integer", "int8": "integer",
	"serial": "integer", "bigserial": "integer", "smallserial": "integer",

	"varchar": "string", "char": "string", "text": "string",
	"nvarchar": "string", "nchar": "string", "ntext": "string",
	"character varying": "string", "character": "string",
	"bpchar": "string", "citext": "string",
}

// excludedJoinTypes never carry relationships: temporal, boolean, binary,
// structured and spatial values.
var excludedJoinTypes = map[string]bool{
	"timestamp": true, "timestamptz": true, "datetime": true, "datetime2": true,
	"date": true, "time": true, "timetz": true, "interval": true,
	"timestamp with time zone": true, "timestamp without time zone": true,
	"boolean": true, "bool": true, "bit": true,
	"bytea": true, "blob": true, "binary": true, "varbinary": true, "image": true,
	"json": true, "jsonb": true, "xml": true,
	"point": true, "line": true, "polygon": true, "geometry": true, "geography": true,
}

// normalizeType lowercases a declared type and strips length/precision and
// array suffixes: "VARCHAR(255)" -> "varchar", "int4[]" -> "int4".
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if idx := strings.Index(t, "("); idx > 0 {
		t = strings.TrimSpace(t[:idx])
	}
	return strings.TrimSuffix(t, "[]")
}

// TypesCompatible reports whether two declared types can hold the same
// key values.
func TypesCompatible(a, b string) bool {
	na, nb := normalizeType(a), normalizeType(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	ca, okA := typeClasses[na]
	cb, okB := typeClasses[nb]
	return okA && okB && ca == cb
}

func isExcludedJoinType(t string) bool {
	return excludedJoinTypes[normalizeType(t)]
}

// joinFor suggests LEFT when source rows may lack a parent.
func joinFor(source models.ColumnDescriptor) models.JoinType {
	if source.Nullable {
		return models.JoinLeft
	}
	return models.JoinInner
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
