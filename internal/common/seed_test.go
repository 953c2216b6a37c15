package common

import (
	"context"
	"testing"

	"powerbank-rental-go/internal/database/dbtest"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYaml = `
stations:
  - serial_number: ST-100
    name: Central Station
    latitude: 52.37
    longitude: 4.89
    slots:
      - number: 1
        power_bank: PB-100
        battery: 95
      - number: 2
        power_bank: PB-101
        battery: 40
      - number: 3
packages:
  - name: 30 Minutes
    duration_minutes: 30
    price: "50.00"
    payment_model: PREPAID
  - name: Pay As You Go
    duration_minutes: 60
    price: "60.00"
    payment_model: POSTPAID
late_fees:
  - name: Double rate
    fee_type: MULTIPLIER
    multiplier: "2"
    grace_period_minutes: 10
    max_daily_rate: "500"
    active: true
`

func TestParseSeedConfig(t *testing.T) {
	seed, err := ParseSeedConfig([]byte(seedYaml))
	require.NoError(t, err)
	require.Len(t, seed.Stations, 1)
	assert.Len(t, seed.Stations[0].Slots, 3)
	assert.Equal(t, "PB-101", seed.Stations[0].Slots[1].PowerBank)
	assert.Len(t, seed.Packages, 2)
	assert.True(t, seed.LateFees[0].Active)
}

func TestParseSeedConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing serial":  "stations:\n  - name: Nameless\n",
		"bad slot number": "stations:\n  - serial_number: ST-1\n    slots:\n      - number: 0\n",
		"bad price":       "packages:\n  - name: Cheap\n    price: free\n",
		"unnamed fee":     "late_fees:\n  - fee_type: MULTIPLIER\n",
		"not yaml":        "stations: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeedConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplySeed_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	seed, err := ParseSeedConfig([]byte(seedYaml))
	require.NoError(t, err)

	first, err := ApplySeed(ctx, db, seed)
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{Stations: 1, Slots: 3, PowerBanks: 2, Packages: 2, LateFees: 1}, first)

	second, err := ApplySeed(ctx, db, seed)
	require.NoError(t, err)
	assert.Zero(t, second.PowerBanks)
	assert.Zero(t, second.Packages)
	assert.Zero(t, second.LateFees)

	station, err := db.GetStationBySerial(ctx, "ST-100")
	require.NoError(t, err)
	slots, err := db.ListSlots(ctx, station.Id)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, models.SlotOccupied, slots[0].Status)
	assert.Equal(t, models.SlotAvailable, slots[2].Status)

	bank, err := db.GetPowerBankBySerial(ctx, "PB-100")
	require.NoError(t, err)
	assert.Equal(t, slots[0].Id, bank.CurrentSlotId)

	active, err := db.GetActiveLateFeeConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Double rate", active.Name)
	assert.True(t, active.MaxDailyRate.Valid)
	assert.True(t, decimal.NewFromInt(500).Equal(active.MaxDailyRate.Decimal))
}

func TestApplySeed_RollsBackOnInvalidFee(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	seed := &SeedConfig{
		Stations: []StationSeed{{SerialNumber: "ST-200", Slots: []SlotSeed{{Number: 1, PowerBank: "PB-200", Battery: 80}}}},
		LateFees: []LateFeeSeed{{Name: "Broken", FeeType: "TRIPLE"}},
	}

	_, err := ApplySeed(ctx, db, seed)
	require.Error(t, err)

	_, err = db.GetStationBySerial(ctx, "ST-200")
	assert.True(t, store.IsKind(err, store.KindNotFound), "station insert must roll back, got %v", err)
}

func TestValidateNewUser(t *testing.T) {
	tests := []struct {
		name    string
		params  store.CreateUserParams
		wantErr bool
	}{
		{name: "renter", params: store.CreateUserParams{Name: "Ada", Email: "ada@example.com"}},
		{name: "admin", params: store.CreateUserParams{Name: "Ops", Email: "ops@example.com", Role: models.RoleAdmin}},
		{name: "blank name", params: store.CreateUserParams{Name: " ", Email: "ada@example.com"}, wantErr: true},
		{name: "bad email", params: store.CreateUserParams{Name: "Ada", Email: "ada"}, wantErr: true},
		{name: "bad role", params: store.CreateUserParams{Name: "Ada", Email: "ada@example.com", Role: "ROOT"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewUser(tt.params)
			if tt.wantErr {
				assert.True(t, store.IsKind(err, store.KindValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "12.50", Money(decimal.RequireFromString("12.5")))
	assert.Equal(t, "0.00", Money(decimal.Zero))
}

func TestBoxPrefix(t *testing.T) {
	assert.Equal(t, "├  ", BoxPrefix(false))
	assert.Equal(t, "└  ", BoxPrefix(true))
	assert.Equal(t, "│  ", BoxDetailPrefix(false))
	assert.Equal(t, "   ", BoxDetailPrefix(true))
}
