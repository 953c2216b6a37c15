package database_test

import (
	"context"
	"testing"
	"time"

	"powerbank-rental-go/internal/database/dbtest"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestPickPowerBank_HighestBatteryFirst(t *testing.T) {
	service := dbtest.New(t)
	f := dbtest.Seed(t, service, 40, 95, 70)
	ctx := context.Background()

	slot, bank, err := service.PickPowerBank(ctx, f.Station.Id, 20)
	if err != nil {
		t.Fatalf("PickPowerBank failed: %v", err)
	}
	if slot.SlotNumber != 2 || bank.SerialNumber != "PB-002" {
		t.Errorf("Expected slot 2 with PB-002, got slot %d with %s", slot.SlotNumber, bank.SerialNumber)
	}
}

func TestPickPowerBank_SkipsLowBatteryAndReserved(t *testing.T) {
	service := dbtest.New(t)
	f := dbtest.Seed(t, service, 10, 80)
	ctx := context.Background()

	err := service.UpdateSlot(ctx, store.SlotUpdate{SlotId: f.Slots[1].Id, Status: models.SlotOccupied, RentalId: "r1"})
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}

	_, _, err = service.PickPowerBank(ctx, f.Station.Id, 20)
	if !store.IsKind(err, store.KindResourceUnavailable) {
		t.Errorf("Expected resource_unavailable, got %v", err)
	}
}

func TestUpsertStation_UpdatesInPlace(t *testing.T) {
	service := dbtest.New(t)
	ctx := context.Background()

	first, err := service.UpsertStation(ctx, models.Station{SerialNumber: "ST-9", Name: "Old"})
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}
	second, err := service.UpsertStation(ctx, models.Station{SerialNumber: "ST-9", Name: "New", Status: models.StationMaintenance})
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}
	if first.Id != second.Id {
		t.Errorf("Expected same station id, got %s and %s", first.Id, second.Id)
	}
	if second.Name != "New" || second.Status != models.StationMaintenance {
		t.Errorf("Expected refreshed station, got %+v", second)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := service.TouchStationHeartbeat(ctx, second.Id, now); err != nil {
		t.Fatalf("TouchStationHeartbeat failed: %v", err)
	}
	got, err := service.GetStation(ctx, second.Id)
	if err != nil {
		t.Fatalf("GetStation failed: %v", err)
	}
	if got.LastHeartbeatAt == nil || !got.LastHeartbeatAt.Equal(now) {
		t.Errorf("Expected heartbeat %v, got %v", now, got.LastHeartbeatAt)
	}
}

func TestDetachPowerBank_LocationInvariant(t *testing.T) {
	service := dbtest.New(t)
	f := dbtest.Seed(t, service, 80)
	ctx := context.Background()
	bank := f.Banks[0]

	if err := service.DetachPowerBank(ctx, bank.Id, models.PowerBankAvailable, ""); !store.IsKind(err, store.KindInvalidState) {
		t.Errorf("Expected invalid_state for stationless AVAILABLE bank, got %v", err)
	}
	if err := service.DetachPowerBank(ctx, bank.Id, models.PowerBankRented, f.Station.Id); !store.IsKind(err, store.KindInvalidState) {
		t.Errorf("Expected invalid_state for RENTED bank at station, got %v", err)
	}

	if err := service.DetachPowerBank(ctx, bank.Id, models.PowerBankRented, ""); err != nil {
		t.Fatalf("DetachPowerBank failed: %v", err)
	}
	got, _ := service.GetPowerBank(ctx, bank.Id)
	if got.Status != models.PowerBankRented || got.CurrentStationId != "" || got.CurrentSlotId != "" {
		t.Errorf("Expected rented bank with no location, got %+v", got)
	}

	inSlot, err := service.GetPowerBankInSlot(ctx, f.Slots[0].Id)
	if err != nil || inSlot != nil {
		t.Errorf("Expected empty slot, got %+v, %v", inSlot, err)
	}

	err = service.PlacePowerBank(ctx, store.PlacementParams{
		PowerBankId: bank.Id, StationId: f.Station.Id, SlotId: f.Slots[0].Id, BatteryLevel: 55,
	})
	if err != nil {
		t.Fatalf("PlacePowerBank failed: %v", err)
	}
	got, _ = service.GetPowerBank(ctx, bank.Id)
	if got.Status != models.PowerBankAvailable || got.CurrentSlotId != f.Slots[0].Id || got.BatteryLevel != 55 {
		t.Errorf("Expected docked bank, got %+v", got)
	}
}

func TestUpdatePackage_ReferencedIsFrozen(t *testing.T) {
	service := dbtest.New(t)
	f := dbtest.Seed(t, service, 80)
	ctx := context.Background()

	renamed := *f.Prepaid
	renamed.Name = "Renamed"
	if err := service.UpdatePackage(ctx, renamed); err != nil {
		t.Fatalf("Unreferenced package update failed: %v", err)
	}

	insertRental(t, service, f, "r1", models.RentalActive, time.Now().Add(time.Hour))

	repriced := renamed
	repriced.Price = decimal.NewFromInt(120)
	if err := service.UpdatePackage(ctx, repriced); !store.IsKind(err, store.KindConflict) {
		t.Errorf("Expected conflict for referenced package, got %v", err)
	}

	retired := renamed
	retired.IsActive = false
	if err := service.UpdatePackage(ctx, retired); err != nil {
		t.Errorf("Deactivating a referenced package should succeed, got %v", err)
	}
	active, _ := service.ListPackages(ctx, true)
	for _, p := range active {
		if p.Id == renamed.Id {
			t.Error("Deactivated package still listed as active")
		}
	}
}

func TestLateFeeConfigs_SingleActive(t *testing.T) {
	service := dbtest.New(t)
	ctx := context.Background()

	a := dbtest.ActivateLateFee(t, service, models.LateFeeConfiguration{
		Name: "Standard", FeeType: models.FeeMultiplier, Multiplier: decimal.NewFromInt(2),
	})
	b := dbtest.ActivateLateFee(t, service, models.LateFeeConfiguration{
		Name: "Flat", FeeType: models.FeeFlatRate, FlatRatePerHour: decimal.NewFromInt(60),
		MaxDailyRate: decimal.NewNullDecimal(decimal.NewFromInt(500)),
	})

	active, err := service.GetActiveLateFeeConfig(ctx)
	if err != nil {
		t.Fatalf("GetActiveLateFeeConfig failed: %v", err)
	}
	if active == nil || active.Id != b.Id {
		t.Fatalf("Expected %s active, got %+v", b.Id, active)
	}
	if !active.MaxDailyRate.Valid || !active.MaxDailyRate.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected max daily rate 500, got %+v", active.MaxDailyRate)
	}

	if err := service.DeleteLateFeeConfig(ctx, b.Id); !store.IsKind(err, store.KindConflict) {
		t.Errorf("Expected conflict deleting active config, got %v", err)
	}
	if err := service.DeleteLateFeeConfig(ctx, a.Id); err != nil {
		t.Errorf("Deleting inactive config failed: %v", err)
	}

	configs, _ := service.ListLateFeeConfigs(ctx)
	if len(configs) != 1 {
		t.Errorf("Expected 1 config left, got %d", len(configs))
	}
}

func TestGetAnalytics(t *testing.T) {
	service := dbtest.New(t)
	f := dbtest.Seed(t, service, 80, 70)
	ctx := context.Background()

	insertRental(t, service, f, "r1", models.RentalActive, time.Now().Add(time.Hour))

	analytics, err := service.GetAnalytics(ctx)
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if analytics.RentalsByStatus[models.RentalActive] != 1 {
		t.Errorf("Expected 1 active rental, got %v", analytics.RentalsByStatus)
	}
	if analytics.PowerBanksByStatus[models.PowerBankAvailable] != 2 {
		t.Errorf("Expected 2 available banks, got %v", analytics.PowerBanksByStatus)
	}
	if !analytics.RevenueCollected.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected revenue 100, got %s", analytics.RevenueCollected)
	}
}
