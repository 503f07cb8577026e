// Package money holds the fixed-point helpers used for every monetary value.
// Amounts are decimal.Decimal at currency scale (two places); floats never appear.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for currency amounts.
const Scale = 2

var (
	ErrNotPositive = errors.New("amount must be greater than zero")
	ErrScale       = fmt.Errorf("amount must have at most %d decimal places", Scale)
)

// Round rounds d to currency scale, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Sub returns a-b rounded to currency scale.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Sub(b))
}

// Add returns a+b rounded to currency scale.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// ValidatePositive checks that d is > 0 and carries no digits below currency scale.
func ValidatePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNotPositive
	}

	if !d.Equal(Round(d)) {
		return ErrScale
	}

	return nil
}

// Parse reads an amount such as "150", "150.5" or "150.50".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}

	return d, nil
}

// Format renders d with exactly two decimals, e.g. "700.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
