package datasource

import (
	"fmt"
	"math"
	"strconv"
)

// ToInt64 converts a scalar returned by a driver into an int64. Drivers
// disagree on the Go type of COUNT(*): pgx yields int64, go-mssqldb int64
// or int32, and the MySQL driver []byte unless the column is typed.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("value %v is not a count", n)
		}
		return int64(n), nil
	case float32:
		return ToInt64(float64(n))
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	case nil:
		return 0, fmt.Errorf("scalar query returned NULL")
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", v)
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// numeric/decimal columns render with a fractional part
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("parse scalar %q: %w", s, err)
		}
		return ToInt64(f)
	}
	return n, nil
}
