// Package sweeper runs the periodic rental jobs: marking overdue rentals,
// settling abandoned ones and sending due-soon reminders.
package sweeper

import (
	"context"
	"sync"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"go.uber.org/zap"
)

const defaultBatchSize = 100

// Sweeper owns one ticker loop per job. A zero interval disables that job.
type Sweeper struct {
	store     store.RentalStore
	notifier  store.Notifier
	rental    models.RentalConfig
	intervals models.SweeperConfig
	batchSize int
	now       func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(st store.RentalStore, notifier store.Notifier, rentalCfg models.RentalConfig, intervals models.SweeperConfig) *Sweeper {
	return &Sweeper{
		store:     st,
		notifier:  notifier,
		rental:    rentalCfg,
		intervals: intervals,
		batchSize: defaultBatchSize,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// SetClock replaces time.Now, mainly for tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Sweeper) clock() time.Time {
	return s.now().UTC()
}

// Start launches the job loops and returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting sweepers",
		zap.Duration("overdue_interval", s.intervals.OverdueInterval),
		zap.Duration("abandonment_interval", s.intervals.AbandonmentInterval),
		zap.Duration("reminder_interval", s.intervals.ReminderInterval))

	s.spawn(ctx, "overdue", s.intervals.OverdueInterval, func(ctx context.Context) (int, error) {
		n, err := s.RunOverdue(ctx)
		return int(n), err
	})
	s.spawn(ctx, "abandonment", s.intervals.AbandonmentInterval, s.RunAbandonment)
	s.spawn(ctx, "reminders", s.intervals.ReminderInterval, s.RunReminders)

	go func() {
		s.wg.Wait()
		close(s.doneChan)
	}()
}

// Stop signals every loop and waits for in-flight runs to finish.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping sweepers")
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
	zap.L().Info("Sweepers stopped")
}

func (s *Sweeper) spawn(ctx context.Context, name string, interval time.Duration, job func(context.Context) (int, error)) {
	if interval <= 0 {
		zap.L().Info("Sweeper disabled", zap.String("job", name))
		return
	}
	s.wg.Add(1)
	go s.loop(ctx, name, interval, job)
}

func (s *Sweeper) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) (int, error)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := job(ctx)
			if err != nil {
				zap.L().Error("Sweeper run failed", zap.String("job", name), zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("Sweeper run finished", zap.String("job", name), zap.Int("affected", n))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOverdue flips every ACTIVE rental past due_at to OVERDUE.
func (s *Sweeper) RunOverdue(ctx context.Context) (int64, error) {
	return s.store.MarkOverdue(ctx, s.clock())
}

// RunReminders claims each due reminder and notifies its user. A reminder
// claimed by another run is skipped.
func (s *Sweeper) RunReminders(ctx context.Context) (int, error) {
	due, err := s.store.ListDueReminders(ctx, s.clock(), s.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		claimed, err := s.store.MarkReminderSent(ctx, r.Id)
		if err != nil {
			zap.L().Error("Failed to claim reminder", zap.String("rental_id", r.Id), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		sent++
		if s.notifier == nil {
			continue
		}
		err = s.notifier.Notify(ctx, r.UserId, store.TemplateRentalReminder, map[string]string{
			"rental_code": r.RentalCode,
			"due_at":      r.DueAt.Format(time.RFC3339),
		})
		if err != nil {
			zap.L().Warn("Failed to send reminder", zap.String("rental_id", r.Id), zap.Error(err))
		}
	}
	return sent, nil
}
