package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// decimalScale and decimalPrecision match the fixed decimal(38,9) column
// type every "decimal" field resolves to, the same precision/scale pair
// the original system used for every numeric field that needed exact
// arithmetic instead of floating point.
const (
	decimalPrecision = 38
	decimalScale     = 9
)

// CastDecimal coerces a value (string, float64, int64, or an existing
// decimal.Decimal) into a decimal.Decimal rounded to the column's fixed
// scale. nil yields zero; any other type, or a string that doesn't parse
// as a number, returns an error.
func CastDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return t.Round(decimalScale), nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("schema: invalid decimal value %q: %w", t, err)
		}
		return d.Round(decimalScale), nil
	case float64:
		return decimal.NewFromFloat(t).Round(decimalScale), nil
	case int64:
		return decimal.NewFromInt(t).Round(decimalScale), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("schema: value of type %T cannot be cast to decimal(%d,%d)", v, decimalPrecision, decimalScale)
	}
}
