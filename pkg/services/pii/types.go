package pii

import (
	"strconv"
	"strings"
	"time"
)

var integerTypes = map[string]bool{
	"int": true, "integer": true, "bigint": true, "smallint": true, "tinyint": true,
	"mediumint": true, "int2": true, "int4": true, "int8": true,
	"serial": true, "bigserial": true, "smallserial": true,
}

// isIntegerType reports whether a declared type stores whole numbers, e.g.
// "bigint", "INT(11) UNSIGNED" or "int identity".
func isIntegerType(dataType string) bool {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return integerTypes[t]
}

// unixScales maps the digit count of an epoch value to its divisor into
// seconds: seconds, milliseconds, microseconds, nanoseconds.
var unixScales = map[int]int64{10: 1, 13: 1e3, 16: 1e6, 19: 1e9}

const (
	minTimestampYear = 1970
	maxTimestampYear = 2100
)

// isUnixTimestamp reports whether v is an all-digit epoch value landing
// between 1970 and 2100.
func isUnixTimestamp(v string) bool {
	scale, ok := unixScales[len(v)]
	if !ok || digitsOf(v) != v {
		return false
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false
	}
	year := time.Unix(ts/scale, 0).UTC().Year()
	return year >= minTimestampYear && year <= maxTimestampYear
}
