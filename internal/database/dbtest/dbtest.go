// Package dbtest opens throwaway SQLite-backed services and seeds a small
// station inventory for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
)

// New opens a fresh database file under t.TempDir and closes it on cleanup.
func New(t testing.TB) *database.Service {
	t.Helper()
	cfg := models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "rental.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}
	svc, err := database.NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// Fixture is one station with a docked power bank in each slot, an eligible
// renter and the two standard packages.
type Fixture struct {
	User     *models.User
	Admin    *models.User
	Station  *models.Station
	Slots    []*models.Slot
	Banks    []*models.PowerBank
	Prepaid  *models.RentalPackage
	Postpaid *models.RentalPackage
}

// Seed builds a Fixture with slots battery levels taken from batteries.
// Prepaid is 60 minutes for 100.00, postpaid is 60 minutes at 60.00.
func Seed(t testing.TB, svc *database.Service, batteries ...int) *Fixture {
	t.Helper()
	ctx := context.Background()
	if len(batteries) == 0 {
		batteries = []int{90, 60}
	}

	f := &Fixture{}
	var err error
	f.User, err = svc.CreateUser(ctx, store.CreateUserParams{
		Name: "Renter", Email: "renter@example.com", ProfileComplete: true, KycVerified: true,
	})
	must(t, err)
	f.Admin, err = svc.CreateUser(ctx, store.CreateUserParams{
		Name: "Operator", Email: "ops@example.com", Role: models.RoleAdmin, ProfileComplete: true, KycVerified: true,
	})
	must(t, err)

	f.Station, err = svc.UpsertStation(ctx, models.Station{SerialNumber: "ST-001", Name: "Main Hall"})
	must(t, err)

	for i, level := range batteries {
		slot, err := svc.UpsertSlot(ctx, models.Slot{
			StationId: f.Station.Id, SlotNumber: i + 1, Status: models.SlotOccupied, BatteryLevel: level,
		})
		must(t, err)
		bank, err := svc.CreatePowerBank(ctx, models.PowerBank{
			SerialNumber:     fmt.Sprintf("PB-%03d", i+1),
			BatteryLevel:     level,
			CurrentStationId: f.Station.Id,
			CurrentSlotId:    slot.Id,
		})
		must(t, err)
		f.Slots = append(f.Slots, slot)
		f.Banks = append(f.Banks, bank)
	}

	f.Prepaid, err = svc.CreatePackage(ctx, models.RentalPackage{
		Name: "1 Hour", DurationMinutes: 60, Price: decimal.NewFromInt(100), PaymentModel: models.Prepaid, IsActive: true,
	})
	must(t, err)
	f.Postpaid, err = svc.CreatePackage(ctx, models.RentalPackage{
		Name: "1 Hour Postpaid", DurationMinutes: 60, Price: decimal.NewFromInt(60), PaymentModel: models.Postpaid, IsActive: true,
	})
	must(t, err)
	return f
}

// TopUp credits a wallet outside of any rental.
func TopUp(t testing.TB, svc *database.Service, userId string, amount decimal.Decimal, reference string) {
	t.Helper()
	_, err := svc.ProcessWalletTransaction(context.Background(), store.WalletTxParams{
		UserId: userId, Type: models.TxTypeTopUp, Amount: amount, Reference: reference,
	})
	must(t, err)
}

// GivePoints credits loyalty points outside of any rental.
func GivePoints(t testing.TB, svc *database.Service, userId string, points int64, reference string) {
	t.Helper()
	must(t, svc.AwardPoints(context.Background(), userId, points, reference))
}

// ActivateLateFee stores and activates a configuration.
func ActivateLateFee(t testing.TB, svc *database.Service, cfg models.LateFeeConfiguration) *models.LateFeeConfiguration {
	t.Helper()
	ctx := context.Background()
	created, err := svc.CreateLateFeeConfig(ctx, cfg)
	must(t, err)
	must(t, svc.RunInTx(ctx, func(q store.Queries) error {
		return q.SetLateFeeConfigActive(ctx, created.Id, true)
	}))
	created.IsActive = true
	return created
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Fixture setup failed: %v", err)
	}
}
