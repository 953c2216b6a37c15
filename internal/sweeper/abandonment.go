package sweeper

import (
	"context"
	"time"

	"powerbank-rental-go/internal/billing"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/rental"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RunAbandonment settles OVERDUE rentals whose unit has been out longer than
// the abandonment threshold. Each rental is settled in its own transaction.
func (s *Sweeper) RunAbandonment(ctx context.Context) (int, error) {
	now := s.clock()
	cutoff := now.Add(-s.rental.AbandonAfter)

	candidates, err := s.store.ListAbandoned(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, candidate := range candidates {
		r, err := s.settleAbandoned(ctx, candidate.Id, now, cutoff)
		if err != nil {
			zap.L().Error("Failed to settle abandoned rental", zap.String("rental_id", candidate.Id), zap.Error(err))
			continue
		}
		if r == nil {
			continue
		}
		settled++

		zap.L().Warn("Rental settled as abandoned",
			zap.String("rental_id", r.Id),
			zap.String("power_bank_id", r.PowerBankId),
			zap.String("amount_due", r.AmountDue.String()))

		if s.notifier != nil {
			err := s.notifier.Notify(ctx, r.UserId, store.TemplateRentalAbandoned, map[string]string{
				"rental_code": r.RentalCode,
				"amount_due":  r.AmountDue.StringFixed(2),
			})
			if err != nil {
				zap.L().Warn("Failed to send abandonment notification", zap.String("rental_id", r.Id), zap.Error(err))
			}
		}
	}
	return settled, nil
}

// settleAbandoned returns nil when the rental moved on since it was listed.
func (s *Sweeper) settleAbandoned(ctx context.Context, rentalId string, now, cutoff time.Time) (*models.Rental, error) {
	var settled *models.Rental
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.GetRental(ctx, rentalId)
		if err != nil {
			return err
		}
		if r.Status != models.RentalOverdue || !r.DueAt.Before(cutoff) {
			return nil
		}

		pkg, err := q.GetPackage(ctx, r.PackageId)
		if err != nil {
			return err
		}
		lateFee := decimal.Zero
		cfg, err := q.GetActiveLateFeeConfig(ctx)
		if err != nil {
			return err
		}
		if cfg != nil {
			lateFee = billing.LateFee(*cfg, pkg.RatePerMinute(), billing.OverdueMinutes(r.DueAt, now))
		}

		charges := lateFee.Add(s.rental.AbandonmentPenalty)
		if pkg.PaymentModel == models.Postpaid {
			usage := billing.UsageCharge(*pkg, billing.ElapsedMinutes(r.StartedAt, now)).Sub(r.AmountPaid)
			if usage.IsPositive() {
				r.AmountDue = r.AmountDue.Add(usage)
			}
		}

		onTime := false
		r.Status = models.RentalCompleted
		r.EndedAt = &now
		r.IsReturnedOnTime = &onTime
		r.OverdueAmount = r.OverdueAmount.Add(charges)
		r.AmountDue = r.AmountDue.Add(charges)
		if r.AmountDue.IsPositive() {
			r.PaymentStatus = models.PaymentPending
		}

		if err := q.UpdateRental(ctx, r, models.RentalOverdue); err != nil {
			return err
		}
		if err := q.DetachPowerBank(ctx, r.PowerBankId, models.PowerBankDamaged, r.StationId); err != nil {
			return err
		}
		if err := rental.ReleasePickupSlot(ctx, q, r); err != nil {
			return err
		}

		settled = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}
