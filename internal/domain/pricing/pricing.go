// Package pricing computes rental costs. Every function is pure: no I/O, no
// shared state, and every monetary step is rounded half-up to two places.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinimumRentalDays is charged for zero-length or inverted ranges.
const MinimumRentalDays = 1

var hundred = decimal.NewFromInt(100)

// Round2 rounds a monetary amount to cents, half away from zero.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// DateOf truncates t to its calendar date, as seen in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RentalDays counts whole calendar days between start and end, never less
// than MinimumRentalDays.
func RentalDays(start, end time.Time) int64 {
	days := int64(DateOf(end).Sub(DateOf(start)).Hours() / 24)
	if days < MinimumRentalDays {
		return MinimumRentalDays
	}
	return days
}

// EffectiveRate picks the discounted rate when it is set and positive.
func EffectiveRate(base decimal.Decimal, discounted decimal.NullDecimal) decimal.Decimal {
	if discounted.Valid && discounted.Decimal.IsPositive() {
		return discounted.Decimal
	}
	return base
}

// VehicleCost charges rate per day over the range.
func VehicleCost(rate decimal.Decimal, start, end time.Time) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return Round2(rate.Mul(decimal.NewFromInt(RentalDays(start, end))))
}

// PackageCost charges the flat base price for up to durationDays and prorates
// every extra day at base/durationDays.
func PackageCost(basePrice decimal.Decimal, durationDays int, start, end time.Time) decimal.Decimal {
	if !basePrice.IsPositive() {
		return decimal.Zero
	}
	duration := int64(durationDays)
	if duration < 1 {
		duration = 1
	}

	days := RentalDays(start, end)
	if days <= duration {
		return Round2(basePrice)
	}

	dailyRate := basePrice.DivRound(decimal.NewFromInt(duration), 2)
	overage := Round2(dailyRate.Mul(decimal.NewFromInt(days - duration)))
	return Round2(basePrice.Add(overage))
}

// ApplyDiscount reduces price by percent (clamped to 0..100).
func ApplyDiscount(price, percent decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	if !percent.IsPositive() {
		return Round2(price)
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	factor := decimal.NewFromInt(1).Sub(percent.DivRound(hundred, 4))
	return Round2(price.Mul(factor))
}
