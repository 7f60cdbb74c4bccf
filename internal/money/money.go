// Package money fixes the rounding policy for everything persisted or
// displayed. Intermediate arithmetic keeps full decimal precision; only the
// edges round, so totals balance to currency precision across any number of
// sales.
package money

import "github.com/shopspring/decimal"

// Rounder rounds monetary figures to a configured currency precision.
type Rounder struct {
	places int32
}

// NewRounder returns a Rounder for the given number of decimal places
// (0 for whole-unit currencies, 2 for cent-based ones).
func NewRounder(places int32) Rounder {
	return Rounder{places: places}
}

func (r Rounder) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(r.places)
}

// Tolerance is the largest difference still treated as equal at this
// precision: half of the smallest representable unit.
func (r Rounder) Tolerance() decimal.Decimal {
	return decimal.New(5, -r.places-1)
}

// WithinTolerance reports whether a and b differ by no more than the
// rounding tolerance.
func (r Rounder) WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(r.Tolerance())
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
