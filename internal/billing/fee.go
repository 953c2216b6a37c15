// Package billing holds the pure money rules of the rental core: late fees,
// usage charges and the points-then-wallet payment split.
package billing

import (
	"time"

	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
)

const minutesPerDay = 1440

var minutesPerHour = decimal.NewFromInt(60)

// LateFee computes the fee for returning overdueMinutes after due_at under cfg.
// The result is never negative, never decreases as overdueMinutes grows and
// is rounded to the currency minor unit.
func LateFee(cfg models.LateFeeConfiguration, ratePerMinute decimal.Decimal, overdueMinutes int64) decimal.Decimal {
	effective := overdueMinutes - cfg.GracePeriodMinutes
	if effective <= 0 {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(effective)

	var fee decimal.Decimal
	switch cfg.FeeType {
	case models.FeeMultiplier:
		fee = multiplierFee(minutes, ratePerMinute, cfg.Multiplier)
	case models.FeeFlatRate:
		fee = flatRateFee(minutes, cfg.FlatRatePerHour)
	case models.FeeCompound:
		fee = multiplierFee(minutes, ratePerMinute, cfg.Multiplier).Add(flatRateFee(minutes, cfg.FlatRatePerHour))
	default:
		return decimal.Zero
	}

	if cfg.MaxDailyRate.Valid {
		days := (effective + minutesPerDay - 1) / minutesPerDay
		limit := nonNegative(cfg.MaxDailyRate.Decimal).Mul(decimal.NewFromInt(days))
		if fee.GreaterThan(limit) {
			fee = limit
		}
	}

	return fee.Round(2)
}

func multiplierFee(minutes, rate, multiplier decimal.Decimal) decimal.Decimal {
	return minutes.Mul(nonNegative(rate)).Mul(nonNegative(multiplier))
}

func flatRateFee(minutes, perHour decimal.Decimal) decimal.Decimal {
	return minutes.Div(minutesPerHour).Mul(nonNegative(perHour))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// OverdueMinutes is the number of whole minutes at is past due.
func OverdueMinutes(dueAt, at time.Time) int64 {
	if !at.After(dueAt) {
		return 0
	}
	return int64(at.Sub(dueAt) / time.Minute)
}

// ElapsedMinutes is the number of started minutes between from and to.
func ElapsedMinutes(from, to time.Time) int64 {
	if !to.After(from) {
		return 0
	}
	d := to.Sub(from)
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// UsageCharge bills elapsed minutes at the package's per-minute rate.
func UsageCharge(pkg models.RentalPackage, elapsedMinutes int64) decimal.Decimal {
	if elapsedMinutes <= 0 {
		return decimal.Zero
	}
	return pkg.RatePerMinute().Mul(decimal.NewFromInt(elapsedMinutes)).Round(2)
}

// ValidateLateFeeConfig reports the first problem with cfg, or nil.
func ValidateLateFeeConfig(cfg models.LateFeeConfiguration) error {
	switch {
	case !cfg.FeeType.Valid():
		return errInvalidConfig("unknown fee type %q", cfg.FeeType)
	case cfg.Multiplier.IsNegative():
		return errInvalidConfig("multiplier cannot be negative")
	case cfg.FlatRatePerHour.IsNegative():
		return errInvalidConfig("flat rate per hour cannot be negative")
	case cfg.GracePeriodMinutes < 0:
		return errInvalidConfig("grace period cannot be negative")
	case cfg.MaxDailyRate.Valid && cfg.MaxDailyRate.Decimal.IsNegative():
		return errInvalidConfig("max daily rate cannot be negative")
	case cfg.FeeType == models.FeeMultiplier && cfg.Multiplier.IsZero():
		return errInvalidConfig("multiplier fee requires a multiplier")
	case cfg.FeeType == models.FeeFlatRate && cfg.FlatRatePerHour.IsZero():
		return errInvalidConfig("flat rate fee requires a flat rate per hour")
	}
	return nil
}
