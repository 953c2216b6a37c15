package sweeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/database/dbtest"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/rental"
	"powerbank-rental-go/internal/store"
	"powerbank-rental-go/internal/sweeper"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var rentalCfg = models.RentalConfig{
	CancelWindow:       5 * time.Minute,
	ReminderLead:       15 * time.Minute,
	MinBatteryLevel:    20,
	PointsPerUnit:      10,
	AbandonAfter:       24 * time.Hour,
	AbandonmentPenalty: decimal.NewFromInt(1000),
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type notifier struct {
	mu   sync.Mutex
	sent map[string]int
}

func (n *notifier) Notify(_ context.Context, _ string, template string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string]int)
	}
	n.sent[template]++
	return nil
}

func (n *notifier) NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error {
	for _, id := range userIds {
		_ = n.Notify(ctx, id, template, fields)
	}
	return nil
}

func (n *notifier) count(template string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[template]
}

type env struct {
	db       *database.Service
	fixture  *dbtest.Fixture
	clock    *clock
	notifier *notifier
	rental   *models.Rental
}

// startRental opens a prepaid rental at the fixed start time.
func startRental(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	f := dbtest.Seed(t, db)
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	dbtest.TopUp(t, db, f.User.Id, decimal.NewFromInt(100), "payment:seed")

	svc := rental.NewService(db, db, nil, rentalCfg, rental.WithClock(c.Now))
	r, err := svc.Start(context.Background(), f.User.Id, "ST-001", f.Prepaid.Id)
	require.NoError(t, err)
	return &env{db: db, fixture: f, clock: c, notifier: &notifier{}, rental: r}
}

func (e *env) sweeper(intervals models.SweeperConfig) *sweeper.Sweeper {
	s := sweeper.New(e.db, e.notifier, rentalCfg, intervals)
	s.SetClock(e.clock.Now)
	return s
}

func TestRunOverdue(t *testing.T) {
	e := startRental(t)
	ctx := context.Background()
	s := e.sweeper(models.SweeperConfig{})

	e.clock.Set(e.rental.DueAt)
	n, err := s.RunOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "due_at itself is not overdue")

	e.clock.Set(e.rental.DueAt.Add(time.Second))
	n, err = s.RunOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := e.db.GetRental(ctx, e.rental.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RentalOverdue, stored.Status)

	n, err = s.RunOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRunReminders_SentOnce(t *testing.T) {
	e := startRental(t)
	ctx := context.Background()
	s := e.sweeper(models.SweeperConfig{})

	e.clock.Set(e.rental.DueAt.Add(-20 * time.Minute))
	sent, err := s.RunReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	e.clock.Set(e.rental.DueAt.Add(-10 * time.Minute))
	sent, err = s.RunReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = s.RunReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, e.notifier.count(store.TemplateRentalReminder))
}

func TestRunAbandonment_SettlesLostUnit(t *testing.T) {
	e := startRental(t)
	ctx := context.Background()
	s := e.sweeper(models.SweeperConfig{})

	e.clock.Set(e.rental.DueAt.Add(23 * time.Hour))
	_, err := s.RunOverdue(ctx)
	require.NoError(t, err)
	settled, err := s.RunAbandonment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled, "not yet past the threshold")

	e.clock.Set(e.rental.DueAt.Add(25 * time.Hour))
	settled, err = s.RunAbandonment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err := e.db.GetRental(ctx, e.rental.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, stored.Status)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
	assert.True(t, stored.AmountDue.Equal(decimal.NewFromInt(1000)), "amount due %s", stored.AmountDue)
	assert.True(t, stored.OverdueAmount.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, stored.IsReturnedOnTime)
	assert.False(t, *stored.IsReturnedOnTime)

	bank, err := e.db.GetPowerBank(ctx, e.rental.PowerBankId)
	require.NoError(t, err)
	assert.Equal(t, models.PowerBankDamaged, bank.Status)
	assert.Equal(t, e.rental.StationId, bank.CurrentStationId)

	slot, err := e.db.GetSlot(ctx, e.rental.SlotId)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, slot.Status)
	assert.Empty(t, slot.CurrentRentalId)

	assert.Equal(t, 1, e.notifier.count(store.TemplateRentalAbandoned))

	settled, err = s.RunAbandonment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

func TestStartStop_RunsLoopsAndExitsCleanly(t *testing.T) {
	e := startRental(t)
	ctx := context.Background()
	e.clock.Set(e.rental.DueAt.Add(time.Minute))

	s := e.sweeper(models.SweeperConfig{
		OverdueInterval:  10 * time.Millisecond,
		ReminderInterval: 10 * time.Millisecond,
	})
	s.Start(ctx)

	require.Eventually(t, func() bool {
		stored, err := e.db.GetRental(ctx, e.rental.Id)
		return err == nil && stored.Status == models.RentalOverdue
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestStartStop_ContextCancel(t *testing.T) {
	e := startRental(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := e.sweeper(models.SweeperConfig{AbandonmentInterval: time.Hour})
	s.Start(ctx)
	cancel()
	s.Stop()
}
