package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// money converts a stored amount to a decimal. Non-finite values count as zero.
func money(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// percentOf returns part / whole × 100, or 0 when whole is zero.
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// Round2 rounds an amount to cents.
func Round2(f float64) float64 {
	return money(f).Round(2).InexactFloat64()
}
