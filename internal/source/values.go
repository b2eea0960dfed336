package source

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
)

// Float coerces a driver value to float64. NULL becomes 0. Decimal types the
// drivers return (pgtype.Numeric, *big.Rat, byte strings) go through their
// numeric accessor, falling back to parsing their string form.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case pgtype.Numeric:
		if !x.Valid {
			return 0, nil
		}
		f, err := x.Float64Value()
		if err != nil {
			return 0, eris.Wrap(err, "source: numeric to float")
		}
		return f.Float64, nil
	case *big.Rat:
		if x == nil {
			return 0, nil
		}
		f, _ := x.Float64()
		return f, nil
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	default:
		return parseFloat(fmt.Sprint(v))
	}
}

// Int coerces a driver value to int64. NULL becomes 0; fractional values are
// rejected.
func Int(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	}

	f, err := Float(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("source: %v is not an integer", v)
	}
	return int64(f), nil
}

// NullableInt is Int that preserves NULL as nil.
func NullableInt(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := Int(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// String renders a driver value as text. NULL becomes "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "source: %q is not numeric", s)
	}
	return f, nil
}
