package rental

import (
	"context"
	"strings"

	"powerbank-rental-go/internal/billing"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PreviewRequest describes a hypothetical late fee. Either ConfigId or Config
// selects the formula; either PackageId or RatePerMinute selects the rate.
type PreviewRequest struct {
	ConfigId       string                       `json:"config_id"`
	Config         *models.LateFeeConfiguration `json:"config"`
	PackageId      string                       `json:"package_id"`
	RatePerMinute  decimal.Decimal              `json:"rate_per_minute"`
	OverdueMinutes int64                        `json:"overdue_minutes"`
}

type PreviewResult struct {
	FeeType          models.FeeType  `json:"fee_type"`
	OverdueMinutes   int64           `json:"overdue_minutes"`
	EffectiveMinutes int64           `json:"effective_minutes"`
	RatePerMinute    decimal.Decimal `json:"rate_per_minute"`
	Fee              decimal.Decimal `json:"fee"`
}

// PreviewLateFee runs the fee formula without touching any rental.
func (s *Service) PreviewLateFee(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	if req.OverdueMinutes < 0 {
		return nil, store.Invalid("overdue minutes cannot be negative")
	}

	var cfg models.LateFeeConfiguration
	switch {
	case req.Config != nil:
		cfg = *req.Config
	case req.ConfigId != "":
		stored, err := s.store.GetLateFeeConfig(ctx, req.ConfigId)
		if err != nil {
			return nil, err
		}
		cfg = *stored
	default:
		active, err := s.store.GetActiveLateFeeConfig(ctx)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, store.NotFound("no active late fee configuration")
		}
		cfg = *active
	}
	if err := billing.ValidateLateFeeConfig(cfg); err != nil {
		return nil, err
	}

	rate := req.RatePerMinute
	if req.PackageId != "" {
		pkg, err := s.store.GetPackage(ctx, req.PackageId)
		if err != nil {
			return nil, err
		}
		rate = pkg.RatePerMinute()
	}

	return &PreviewResult{
		FeeType:          cfg.FeeType,
		OverdueMinutes:   req.OverdueMinutes,
		EffectiveMinutes: max(0, req.OverdueMinutes-cfg.GracePeriodMinutes),
		RatePerMinute:    rate,
		Fee:              billing.LateFee(cfg, rate, req.OverdueMinutes),
	}, nil
}

func (s *Service) ListLateFeeConfigs(ctx context.Context) ([]models.LateFeeConfiguration, error) {
	return s.store.ListLateFeeConfigs(ctx)
}

func (s *Service) CreateLateFeeConfig(ctx context.Context, cfg models.LateFeeConfiguration) (*models.LateFeeConfiguration, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, store.Invalid("configuration name is required")
	}
	if err := billing.ValidateLateFeeConfig(cfg); err != nil {
		return nil, err
	}
	return s.store.CreateLateFeeConfig(ctx, cfg)
}

// ActivateLateFeeConfig makes configId the only active configuration.
func (s *Service) ActivateLateFeeConfig(ctx context.Context, configId string) error {
	actor := models.ActorFromContext(ctx)
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		return q.SetLateFeeConfigActive(ctx, configId, true)
	})
	if err != nil {
		return err
	}
	zap.L().Info("Late fee configuration activated", zap.String("config_id", configId), zap.String("actor", actor.UserId))
	return nil
}

func (s *Service) DeactivateLateFeeConfig(ctx context.Context, configId string) error {
	actor := models.ActorFromContext(ctx)
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		return q.SetLateFeeConfigActive(ctx, configId, false)
	})
	if err != nil {
		return err
	}
	zap.L().Info("Late fee configuration deactivated", zap.String("config_id", configId), zap.String("actor", actor.UserId))
	return nil
}

func (s *Service) DeleteLateFeeConfig(ctx context.Context, configId string) error {
	return s.store.RunInTx(ctx, func(q store.Queries) error {
		return q.DeleteLateFeeConfig(ctx, configId)
	})
}

// ForceRentalStatus lets an operator override a rental's status. Ending an
// open rental puts its power bank back at the pickup station.
func (s *Service) ForceRentalStatus(ctx context.Context, rentalId string, status models.RentalStatus) (*models.Rental, error) {
	if !status.Valid() {
		return nil, store.Invalid("unknown rental status %q", status)
	}
	actor := models.ActorFromContext(ctx)

	var rental *models.Rental
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.GetRental(ctx, rentalId)
		if err != nil {
			return err
		}
		previous := r.Status
		if previous == status {
			rental = r
			return nil
		}
		if !previous.Open() {
			return store.InvalidState("rental %s is already %s", r.RentalCode, previous)
		}

		if status.Ended() {
			if err := releaseForcedRental(ctx, q, r); err != nil {
				return err
			}
			now := s.clock()
			r.EndedAt = &now
		}
		r.Status = status
		if err := q.UpdateRental(ctx, r, previous); err != nil {
			return err
		}
		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Rental status overridden",
		zap.String("rental_id", rental.Id),
		zap.String("status", string(status)),
		zap.String("actor", actor.UserId))
	return rental, nil
}

// releaseForcedRental returns the bank to its pickup slot when that slot is
// free, otherwise parks it for maintenance at the pickup station.
func releaseForcedRental(ctx context.Context, q store.Queries, r *models.Rental) error {
	bank, err := q.GetPowerBank(ctx, r.PowerBankId)
	if err != nil {
		return err
	}
	if bank.Status != models.PowerBankRented {
		return nil
	}

	occupant, err := q.GetPowerBankInSlot(ctx, r.SlotId)
	if err != nil {
		return err
	}
	if occupant == nil {
		return restockAtPickup(ctx, q, r)
	}

	if err := q.DetachPowerBank(ctx, bank.Id, models.PowerBankMaintenance, r.StationId); err != nil {
		return err
	}
	return ReleasePickupSlot(ctx, q, r)
}

// ReleasePickupSlot clears the pickup slot's back-reference if it still
// points at r.
func ReleasePickupSlot(ctx context.Context, q store.Queries, r *models.Rental) error {
	slot, err := q.GetSlot(ctx, r.SlotId)
	if err != nil {
		return err
	}
	if slot.CurrentRentalId != r.Id {
		return nil
	}
	occupant, err := q.GetPowerBankInSlot(ctx, slot.Id)
	if err != nil {
		return err
	}
	status := models.SlotAvailable
	if occupant != nil {
		status = models.SlotOccupied
	}
	return q.UpdateSlot(ctx, store.SlotUpdate{SlotId: slot.Id, Status: status})
}

// ForcePowerBankStatus overrides a power bank's status. RENTED is owned by
// the rental lifecycle and cannot be set or cleared here.
func (s *Service) ForcePowerBankStatus(ctx context.Context, powerBankId string, status models.PowerBankStatus) (*models.PowerBank, error) {
	if !status.Valid() {
		return nil, store.Invalid("unknown power bank status %q", status)
	}
	if status == models.PowerBankRented {
		return nil, store.InvalidState("power banks become RENTED only by starting a rental")
	}

	var bank *models.PowerBank
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		b, err := q.GetPowerBank(ctx, powerBankId)
		if err != nil {
			return err
		}
		if b.Status == models.PowerBankRented {
			return store.Conflict("power bank %s is attached to an open rental", b.SerialNumber)
		}
		if err := q.SetPowerBankStatus(ctx, powerBankId, status); err != nil {
			return err
		}
		b.Status = status
		bank = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Power bank status overridden",
		zap.String("power_bank_id", powerBankId),
		zap.String("status", string(status)),
		zap.String("actor", models.ActorFromContext(ctx).UserId))
	return bank, nil
}

// TopUp credits a confirmed external payment to a user's wallet. The payment
// reference makes repeated confirmations harmless.
func (s *Service) TopUp(ctx context.Context, userId string, amount decimal.Decimal, reference string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, store.Invalid("top-up amount must be positive")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, store.Invalid("payment reference is required")
	}

	var tx *models.WalletTransaction
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		if _, err := q.GetUserById(ctx, userId); err != nil {
			return err
		}
		var err error
		tx, err = q.ApplyWalletTransaction(ctx, store.WalletTxParams{
			UserId:      userId,
			Type:        models.TxTypeTopUp,
			Amount:      amount.Round(2),
			Reference:   "payment:" + reference,
			Description: "Wallet top-up",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) Analytics(ctx context.Context) (*models.Analytics, error) {
	return s.store.GetAnalytics(ctx)
}
