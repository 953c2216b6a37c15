package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FeeType string

const (
	FeeMultiplier FeeType = "MULTIPLIER"
	FeeFlatRate   FeeType = "FLAT_RATE"
	FeeCompound   FeeType = "COMPOUND"
)

func (t FeeType) Valid() bool {
	return t == FeeMultiplier || t == FeeFlatRate || t == FeeCompound
}

// LateFeeConfiguration is an admin-managed late fee formula. At most one is active.
type LateFeeConfiguration struct {
	Id                 string              `db:"id" json:"id"`
	Name               string              `db:"name" json:"name"`
	FeeType            FeeType             `db:"fee_type" json:"fee_type"`
	Multiplier         decimal.Decimal     `db:"multiplier" json:"multiplier"`
	FlatRatePerHour    decimal.Decimal     `db:"flat_rate_per_hour" json:"flat_rate_per_hour"`
	GracePeriodMinutes int64               `db:"grace_period_minutes" json:"grace_period_minutes"`
	MaxDailyRate       decimal.NullDecimal `db:"max_daily_rate" json:"max_daily_rate"`
	IsActive           bool                `db:"is_active" json:"is_active"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}
