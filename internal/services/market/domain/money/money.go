// Package money provides the fixed-point currency representation used for
// listing prices and captured order line amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point currency amount. Decimal arithmetic avoids the
// rounding drift of floats when totals are summed across line items.
type Amount = decimal.Decimal

// Zero returns the zero amount.
func Zero() Amount {
	return decimal.Zero
}

// Parse converts a canonical decimal string into an Amount.
// Negative amounts are rejected; prices and totals are never negative.
func Parse(value string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q is negative", value)
	}
	return d, nil
}

// MustParse converts a canonical decimal string or panics. Test helper.
func MustParse(value string) Amount {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}
