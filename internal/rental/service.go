package rental

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"go.uber.org/zap"
)

const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 8
	codeAttempts   = 5
	maxHistorySize = 100
)

// Service runs the rental lifecycle: start, extend, cancel and settle dues.
// Every state change runs in one store transaction; notifications go out
// only after commit.
type Service struct {
	store    store.RentalStore
	checker  store.PrerequisiteChecker
	notifier store.Notifier
	cfg      models.RentalConfig
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.RentalStore, checker store.PrerequisiteChecker, notifier store.Notifier, cfg models.RentalConfig, opts ...Option) *Service {
	s := &Service{
		store:    st,
		checker:  checker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// notify delivers a message after commit. Failures are logged and dropped.
func (s *Service) notify(ctx context.Context, userId, template string, fields map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userId, template, fields); err != nil {
		zap.L().Warn("Failed to send notification",
			zap.String("user_id", userId),
			zap.String("template", template),
			zap.Error(err))
	}
}

// ownedRental loads a rental and hides it from anyone but its owner.
func ownedRental(ctx context.Context, q store.Queries, userId, rentalId string) (*models.Rental, error) {
	r, err := q.GetRental(ctx, rentalId)
	if err != nil {
		return nil, err
	}
	if r.UserId != userId {
		return nil, store.NotFound("rental %s not found", rentalId)
	}
	return r, nil
}

func newRentalCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate rental code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// insertWithCode creates the rental, drawing a fresh code on collision.
func insertWithCode(ctx context.Context, q store.Queries, r *models.Rental) error {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newRentalCode()
		if err != nil {
			return err
		}
		r.RentalCode = code
		err = q.CreateRental(ctx, *r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateTransaction) {
			return err
		}
		zap.L().Debug("Rental code collision, retrying", zap.String("code", code))
	}
	return fmt.Errorf("failed to allocate a unique rental code after %d attempts", codeAttempts)
}

func ref(rentalId, suffix string) string {
	return fmt.Sprintf("rental:%s:%s", rentalId, suffix)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxHistorySize {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
