// Package decimal wraps cockroachdb/apd to give the pipeline exact
// arithmetic for money and distance fields. Float64 sums are not
// reproducible across runs; decimal sums are.
package decimal

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

var baseCtx = apd.BaseContext.WithPrecision(34)

// Decimal is an immutable arbitrary-precision decimal value.
type Decimal struct {
	value apd.Decimal
}

// Parse parses a decimal from its string form, preserving scale
// ("5.50" stays "5.50").
func Parse(s string) (Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{value: d}, nil
}

// FromInt64 builds a Decimal from an integer.
func FromInt64(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{value: d}
}

// Zero returns the zero value.
func Zero() Decimal {
	return Decimal{}
}

func (d Decimal) String() string {
	return d.value.String()
}

func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// IsNegative reports whether d is strictly below zero.
func (d Decimal) IsNegative() bool {
	return d.value.Negative && !d.value.IsZero()
}

func (d Decimal) Cmp(other Decimal) int {
	return d.value.Cmp(&other.value)
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	baseCtx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Div returns d / other.
func (d Decimal) Div(other Decimal) Decimal {
	var result apd.Decimal
	baseCtx.Quo(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Round returns d rounded to the given number of fractional digits,
// half-up. Round(2) of "5.5" yields "5.50".
func (d Decimal) Round(places int32) Decimal {
	var result apd.Decimal
	baseCtx.Quantize(&result, &d.value, -places)
	return Decimal{value: result}
}
