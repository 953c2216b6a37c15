package reconciler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/database/dbtest"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/reconciler"
	"powerbank-rental-go/internal/rental"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rentalCfg = models.RentalConfig{
	CancelWindow:     5 * time.Minute,
	ReminderLead:     15 * time.Minute,
	MinBatteryLevel:  20,
	PointsPerUnit:    10,
	CompletionPoints: 5,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu        sync.Mutex
	templates []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, template string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.templates = append(n.templates, template)
	return nil
}

func (n *recordingNotifier) NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error {
	for _, id := range userIds {
		_ = n.Notify(ctx, id, template, fields)
	}
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.templates...)
}

type harness struct {
	db       *database.Service
	fixture  *dbtest.Fixture
	clock    *fakeClock
	notifier *recordingNotifier
	rentals  *rental.Service
	recon    *reconciler.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.New(t)
	h := &harness{
		db:       db,
		fixture:  dbtest.Seed(t, db),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}
	h.rentals = rental.NewService(db, db, h.notifier, rentalCfg, rental.WithClock(h.clock.Now))
	h.recon = reconciler.NewService(db, h.notifier, db, rentalCfg)
	h.recon.SetClock(h.clock.Now)
	return h
}

func (h *harness) returnEvent(bank *models.PowerBank, slotNumber, battery int) models.ReturnEvent {
	return models.ReturnEvent{
		StationSerial:   h.fixture.Station.SerialNumber,
		PowerBankSerial: bank.SerialNumber,
		SlotNumber:      slotNumber,
		BatteryLevel:    battery,
	}
}

func TestProcessReturn_NoOpenRentalOnlyMovesInventory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fixture.Banks[1]

	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(bank, 2, 55))
	require.NoError(t, err)
	assert.False(t, result.RentalCompleted)
	assert.Empty(t, result.RentalId)

	stored, err := h.db.GetPowerBank(ctx, bank.Id)
	require.NoError(t, err)
	assert.Equal(t, models.PowerBankAvailable, stored.Status)
	assert.Equal(t, 55, stored.BatteryLevel)
	assert.Equal(t, h.fixture.Slots[1].Id, stored.CurrentSlotId)

	rentals, err := h.db.ListRentalsByUser(ctx, h.fixture.User.Id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rentals)
	history, err := h.db.GetWalletHistory(ctx, h.fixture.User.Id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, h.notifier.sent())
}

func TestProcessReturn_PrepaidOnTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(150), "payment:seed")

	r, err := h.rentals.Start(ctx, h.fixture.User.Id, "ST-001", h.fixture.Prepaid.Id)
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(h.fixture.Banks[0], 1, 70))
	require.NoError(t, err)
	assert.True(t, result.RentalCompleted)
	assert.True(t, result.IsReturnedOnTime)
	assert.True(t, result.LateFee.IsZero())
	assert.True(t, result.AmountDue.IsZero())

	stored, err := h.db.GetRental(ctx, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, stored.Status)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.EndedAt)
	require.NotNil(t, stored.IsReturnedOnTime)
	assert.True(t, *stored.IsReturnedOnTime)

	slot, err := h.db.GetSlot(ctx, h.fixture.Slots[0].Id)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOccupied, slot.Status)
	assert.Empty(t, slot.CurrentRentalId)

	points, err := h.db.GetPointsBalance(ctx, h.fixture.User.Id)
	require.NoError(t, err)
	assert.Equal(t, rentalCfg.CompletionPoints, points)
	assert.Contains(t, h.notifier.sent(), store.TemplateRentalCompleted)
}

func TestProcessReturn_PrepaidLateChargesFeeAtOtherSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dbtest.ActivateLateFee(t, h.db, models.LateFeeConfiguration{
		Name: "double", FeeType: models.FeeMultiplier, Multiplier: decimal.NewFromInt(2),
	})
	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(200), "payment:seed")

	r, err := h.rentals.Start(ctx, h.fixture.User.Id, "ST-001", h.fixture.Prepaid.Id)
	require.NoError(t, err)
	bank := h.fixture.Banks[0]

	// Free slot 2 so the unit can come back somewhere else.
	require.NoError(t, h.db.RunInTx(ctx, func(q store.Queries) error {
		if err := q.DetachPowerBank(ctx, h.fixture.Banks[1].Id, models.PowerBankMaintenance, h.fixture.Station.Id); err != nil {
			return err
		}
		return q.UpdateSlot(ctx, store.SlotUpdate{SlotId: h.fixture.Slots[1].Id, Status: models.SlotAvailable})
	}))

	// 60 minute package at 100 is 5/3 per minute; 30 minutes late doubles to 100.
	h.clock.Advance(90 * time.Minute)
	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(bank, 2, 40))
	require.NoError(t, err)
	assert.False(t, result.IsReturnedOnTime)
	assert.Equal(t, int64(30), result.OverdueMinutes)
	assert.True(t, result.LateFee.Equal(decimal.NewFromInt(100)), "late fee %s", result.LateFee)
	assert.True(t, result.AmountCollected.Equal(result.LateFee))

	stored, err := h.db.GetRental(ctx, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.True(t, stored.OverdueAmount.Equal(result.LateFee))
	assert.Equal(t, h.fixture.Slots[1].Id, stored.ReturnSlotId)

	wallet, err := h.db.GetWalletBalance(ctx, h.fixture.User.Id)
	require.NoError(t, err)
	assert.True(t, wallet.IsZero(), "wallet %s", wallet)

	pickup, err := h.db.GetSlot(ctx, h.fixture.Slots[0].Id)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, pickup.Status)
	assert.Empty(t, pickup.CurrentRentalId)
}

func TestProcessReturn_PostpaidInsufficientLeavesAmountDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(10), "payment:seed")

	r, err := h.rentals.Start(ctx, h.fixture.User.Id, "ST-001", h.fixture.Postpaid.Id)
	require.NoError(t, err)

	// 45 started minutes at 1 per minute.
	h.clock.Advance(44*time.Minute + 30*time.Second)
	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(h.fixture.Banks[0], 1, 50))
	require.NoError(t, err)
	assert.True(t, result.UsageCharge.Equal(decimal.NewFromInt(45)), "usage %s", result.UsageCharge)
	assert.True(t, result.AmountCollected.IsZero())
	assert.True(t, result.AmountDue.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, models.PaymentPending, result.PaymentStatus)

	wallet, err := h.db.GetWalletBalance(ctx, h.fixture.User.Id)
	require.NoError(t, err)
	assert.True(t, wallet.Equal(decimal.NewFromInt(10)), "wallet untouched, got %s", wallet)

	stored, err := h.db.GetRental(ctx, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, stored.Status)

	unpaid, err := h.db.HasUnpaidDues(ctx, h.fixture.User.Id)
	require.NoError(t, err)
	assert.True(t, unpaid)
	assert.Contains(t, h.notifier.sent(), store.TemplatePaymentDue)

	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(50), "payment:second")
	paid, _, err := h.rentals.PayDue(ctx, h.fixture.User.Id, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.True(t, paid.AmountDue.IsZero())
}

func TestProcessReturn_ReplayIsHarmless(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(100), "payment:seed")

	_, err := h.rentals.Start(ctx, h.fixture.User.Id, "ST-001", h.fixture.Prepaid.Id)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	event := h.returnEvent(h.fixture.Banks[0], 1, 80)
	first, err := h.recon.ProcessReturn(ctx, event)
	require.NoError(t, err)
	require.True(t, first.RentalCompleted)

	second, err := h.recon.ProcessReturn(ctx, event)
	require.NoError(t, err)
	assert.False(t, second.RentalCompleted)

	points, err := h.db.GetPointsHistory(ctx, h.fixture.User.Id, 10, 0)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestProcessReturn_UnknownIdentifiers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event models.ReturnEvent
		kind  store.Kind
	}{
		{"unknown station", models.ReturnEvent{StationSerial: "NOPE", PowerBankSerial: "PB-001", SlotNumber: 1, BatteryLevel: 50}, store.KindNotFound},
		{"unknown slot", models.ReturnEvent{StationSerial: "ST-001", PowerBankSerial: "PB-001", SlotNumber: 9, BatteryLevel: 50}, store.KindNotFound},
		{"unknown bank", models.ReturnEvent{StationSerial: "ST-001", PowerBankSerial: "PB-999", SlotNumber: 1, BatteryLevel: 50}, store.KindNotFound},
		{"bad battery", models.ReturnEvent{StationSerial: "ST-001", PowerBankSerial: "PB-001", SlotNumber: 1, BatteryLevel: 101}, store.KindValidation},
		{"missing serial", models.ReturnEvent{StationSerial: "ST-001", SlotNumber: 1, BatteryLevel: 50}, store.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.recon.ProcessReturn(ctx, tt.event)
			require.Error(t, err)
			assert.Equal(t, tt.kind, store.KindOf(err))
		})
	}
}

func TestProcessReturn_DisplacedBankGoesToMaintenance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dbtest.TopUp(t, h.db, h.fixture.User.Id, decimal.NewFromInt(100), "payment:seed")

	_, err := h.rentals.Start(ctx, h.fixture.User.Id, "ST-001", h.fixture.Prepaid.Id)
	require.NoError(t, err)

	// The rented unit is reported in slot 2, which still records PB-002.
	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(h.fixture.Banks[0], 2, 90))
	require.NoError(t, err)
	assert.True(t, result.RentalCompleted)

	displaced, err := h.db.GetPowerBank(ctx, h.fixture.Banks[1].Id)
	require.NoError(t, err)
	assert.Equal(t, models.PowerBankMaintenance, displaced.Status)
	assert.Equal(t, h.fixture.Station.Id, displaced.CurrentStationId)
	assert.Empty(t, displaced.CurrentSlotId)
}

func TestProcessReturn_MovedBankFreesPreviousSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// PB-002 is carried by staff from slot 2 into slot 1.
	result, err := h.recon.ProcessReturn(ctx, h.returnEvent(h.fixture.Banks[1], 1, 75))
	require.NoError(t, err)
	assert.False(t, result.RentalCompleted)

	previous, err := h.db.GetSlot(ctx, h.fixture.Slots[1].Id)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, previous.Status)

	reported, err := h.db.GetSlot(ctx, h.fixture.Slots[0].Id)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOccupied, reported.Status)

	moved, err := h.db.GetPowerBank(ctx, h.fixture.Banks[1].Id)
	require.NoError(t, err)
	assert.Equal(t, h.fixture.Slots[0].Id, moved.CurrentSlotId)

	left, err := h.db.GetPowerBankInSlot(ctx, h.fixture.Slots[1].Id)
	require.NoError(t, err)
	assert.Nil(t, left)
}
