package billing

import (
	"testing"
	"time"

	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLateFee_Multiplier(t *testing.T) {
	cfg := models.LateFeeConfiguration{
		FeeType:    models.FeeMultiplier,
		Multiplier: dec("2"),
	}

	fee := LateFee(cfg, dec("1"), 30)
	assert.True(t, fee.Equal(dec("60")), "expected 60, got %s", fee)
}

func TestLateFee_CompoundWithGrace(t *testing.T) {
	cfg := models.LateFeeConfiguration{
		FeeType:            models.FeeCompound,
		Multiplier:         dec("1"),
		FlatRatePerHour:    dec("10"),
		GracePeriodMinutes: 10,
	}

	fee := LateFee(cfg, dec("1"), 70)
	assert.True(t, fee.Equal(dec("70")), "expected 70, got %s", fee)
}

func TestLateFee_FlatRate(t *testing.T) {
	cfg := models.LateFeeConfiguration{
		FeeType:         models.FeeFlatRate,
		FlatRatePerHour: dec("12"),
	}

	assert.True(t, LateFee(cfg, dec("5"), 90).Equal(dec("18")))
	assert.True(t, LateFee(cfg, dec("5"), 1).Equal(dec("0.2")))
}

func TestLateFee_WithinGraceIsZero(t *testing.T) {
	cfg := models.LateFeeConfiguration{
		FeeType:            models.FeeMultiplier,
		Multiplier:         dec("3"),
		GracePeriodMinutes: 15,
	}

	for _, minutes := range []int64{-5, 0, 1, 15} {
		assert.True(t, LateFee(cfg, dec("1"), minutes).IsZero(), "overdue=%d", minutes)
	}
	assert.True(t, LateFee(cfg, dec("1"), 16).Equal(dec("3")))
}

func TestLateFee_DailyCap(t *testing.T) {
	cfg := models.LateFeeConfiguration{
		FeeType:      models.FeeMultiplier,
		Multiplier:   dec("1"),
		MaxDailyRate: decimal.NewNullDecimal(dec("100")),
	}

	// 200 minutes at 1/min is 200, capped at one day's worth.
	assert.True(t, LateFee(cfg, dec("1"), 200).Equal(dec("100")))
	// Crossing into the second day doubles the ceiling.
	assert.True(t, LateFee(cfg, dec("1"), 1441).Equal(dec("200")))
}

func TestLateFee_UnknownTypeIsZero(t *testing.T) {
	cfg := models.LateFeeConfiguration{FeeType: "BOGUS", Multiplier: dec("2")}
	assert.True(t, LateFee(cfg, dec("1"), 100).IsZero())
}

func TestLateFee_NonNegativeAndMonotonic(t *testing.T) {
	configs := []models.LateFeeConfiguration{
		{FeeType: models.FeeMultiplier, Multiplier: dec("1.5"), GracePeriodMinutes: 5},
		{FeeType: models.FeeFlatRate, FlatRatePerHour: dec("7.25")},
		{FeeType: models.FeeCompound, Multiplier: dec("0.5"), FlatRatePerHour: dec("3"), GracePeriodMinutes: 30},
		{FeeType: models.FeeCompound, Multiplier: dec("2"), FlatRatePerHour: dec("10"), MaxDailyRate: decimal.NewNullDecimal(dec("45"))},
	}
	rates := []decimal.Decimal{dec("0"), dec("0.33"), dec("1"), dec("2.5")}

	for _, cfg := range configs {
		for _, rate := range rates {
			prev := decimal.Zero
			for minutes := int64(0); minutes <= 3000; minutes += 7 {
				fee := LateFee(cfg, rate, minutes)
				require.False(t, fee.IsNegative(), "%s rate=%s minutes=%d", cfg.FeeType, rate, minutes)
				require.True(t, fee.GreaterThanOrEqual(prev), "%s rate=%s minutes=%d: %s < %s", cfg.FeeType, rate, minutes, fee, prev)

				if cfg.MaxDailyRate.Valid {
					effective := max(minutes-cfg.GracePeriodMinutes, 0)
					days := (effective + 1439) / 1440
					limit := cfg.MaxDailyRate.Decimal.Mul(decimal.NewFromInt(days))
					require.True(t, fee.LessThanOrEqual(limit), "minutes=%d fee=%s limit=%s", minutes, fee, limit)
				}
				prev = fee
			}
		}
	}
}

func TestOverdueAndElapsedMinutes(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), OverdueMinutes(due, due.Add(-time.Hour)))
	assert.Equal(t, int64(0), OverdueMinutes(due, due.Add(59*time.Second)))
	assert.Equal(t, int64(30), OverdueMinutes(due, due.Add(30*time.Minute+20*time.Second)))

	assert.Equal(t, int64(0), ElapsedMinutes(due, due))
	assert.Equal(t, int64(1), ElapsedMinutes(due, due.Add(time.Second)))
	assert.Equal(t, int64(45), ElapsedMinutes(due, due.Add(45*time.Minute)))
}

func TestUsageCharge(t *testing.T) {
	pkg := models.RentalPackage{DurationMinutes: 60, Price: dec("30")}

	assert.True(t, UsageCharge(pkg, 0).IsZero())
	assert.True(t, UsageCharge(pkg, 20).Equal(dec("10")))
	assert.True(t, UsageCharge(pkg, 61).Equal(dec("30.5")))
	assert.True(t, UsageCharge(models.RentalPackage{Price: dec("30")}, 10).IsZero())
}

func TestValidateLateFeeConfig(t *testing.T) {
	valid := models.LateFeeConfiguration{FeeType: models.FeeMultiplier, Multiplier: dec("1")}
	require.NoError(t, ValidateLateFeeConfig(valid))

	tests := []struct {
		name string
		cfg  models.LateFeeConfiguration
	}{
		{"unknown type", models.LateFeeConfiguration{FeeType: "X"}},
		{"negative multiplier", models.LateFeeConfiguration{FeeType: models.FeeCompound, Multiplier: dec("-1")}},
		{"negative grace", models.LateFeeConfiguration{FeeType: models.FeeMultiplier, Multiplier: dec("1"), GracePeriodMinutes: -1}},
		{"negative cap", models.LateFeeConfiguration{FeeType: models.FeeMultiplier, Multiplier: dec("1"), MaxDailyRate: decimal.NewNullDecimal(dec("-5"))}},
		{"flat without rate", models.LateFeeConfiguration{FeeType: models.FeeFlatRate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateLateFeeConfig(tt.cfg))
		})
	}
}
