package domain

import (
	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary amount to two decimal places, half away from zero.
// Amounts handled by the point of sale are never negative, so this is
// round-half-up: 5.475 -> 5.48.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Money builds a decimal from a float literal, e.g. a configured rate or a test price
func Money(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}
