package rental

import (
	"context"
	"time"

	"powerbank-rental-go/internal/billing"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Start rents the best charged power bank at a station to userId. PREPAID
// packages are paid from points then wallet in the same transaction that
// reserves the inventory.
func (s *Service) Start(ctx context.Context, userId, stationSerial, packageId string) (*models.Rental, error) {
	zap.L().Info("Starting rental",
		zap.String("user_id", userId),
		zap.String("station", stationSerial),
		zap.String("package_id", packageId))

	if s.checker != nil {
		if err := s.checker.CheckRentalPrerequisites(ctx, userId); err != nil {
			zap.L().Info("Rental prerequisites not met", zap.String("user_id", userId), zap.Error(err))
			return nil, err
		}
	}

	var rental *models.Rental
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		current, err := q.GetCurrentRentalForUser(ctx, userId)
		if err != nil {
			return err
		}
		if current != nil {
			return store.Conflict("user already has rental %s in progress", current.RentalCode)
		}

		station, err := q.GetStationBySerial(ctx, stationSerial)
		if err != nil {
			return err
		}
		if station.Status != models.StationOnline {
			return store.Unavailable("station %s is %s", stationSerial, station.Status)
		}

		pkg, err := q.GetPackage(ctx, packageId)
		if err != nil {
			return err
		}
		if !pkg.IsActive {
			return store.InvalidState("package %s is not offered", pkg.Name)
		}

		slot, bank, err := q.PickPowerBank(ctx, station.Id, s.cfg.MinBatteryLevel)
		if err != nil {
			return err
		}

		now := s.clock()
		dueAt := now.Add(time.Duration(pkg.DurationMinutes) * time.Minute)
		r := &models.Rental{
			Id:            uuid.New().String(),
			UserId:        userId,
			StationId:     station.Id,
			SlotId:        slot.Id,
			PackageId:     pkg.Id,
			PowerBankId:   bank.Id,
			Status:        models.RentalActive,
			PaymentStatus: models.PaymentPending,
			StartedAt:     now,
			DueAt:         dueAt,
			AmountPaid:    decimal.Zero,
			OverdueAmount: decimal.Zero,
			AmountDue:     decimal.Zero,
			ReminderAt:    dueAt.Add(-s.cfg.ReminderLead),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if pkg.PaymentModel == models.Prepaid {
			_, err := billing.Charge(ctx, q, billing.ChargeParams{
				UserId:        userId,
				RentalId:      r.Id,
				Amount:        pkg.Price,
				PointsPerUnit: s.cfg.PointsPerUnit,
				Reference:     ref(r.Id, "start"),
				Description:   "Rental " + pkg.Name,
			})
			if err != nil {
				return err
			}
			r.AmountPaid = pkg.Price.Round(2)
			r.PaymentStatus = models.PaymentPaid
		}

		if err := insertWithCode(ctx, q, r); err != nil {
			return err
		}
		if err := q.DetachPowerBank(ctx, bank.Id, models.PowerBankRented, ""); err != nil {
			return err
		}
		if err := q.UpdateSlot(ctx, store.SlotUpdate{SlotId: slot.Id, Status: models.SlotOccupied, RentalId: r.Id}); err != nil {
			return err
		}

		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Rental started",
		zap.String("rental_id", rental.Id),
		zap.String("rental_code", rental.RentalCode),
		zap.String("user_id", userId),
		zap.String("power_bank_id", rental.PowerBankId),
		zap.Time("due_at", rental.DueAt))

	s.notify(ctx, userId, store.TemplateRentalStarted, map[string]string{
		"rental_code": rental.RentalCode,
		"due_at":      rental.DueAt.Format(time.RFC3339),
	})
	return rental, nil
}

// Extend buys another package period for an ACTIVE rental.
func (s *Service) Extend(ctx context.Context, userId, rentalId, packageId string) (*models.Rental, *models.RentalExtension, error) {
	var rental *models.Rental
	var extension *models.RentalExtension

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := ownedRental(ctx, q, userId, rentalId)
		if err != nil {
			return err
		}
		if r.Status != models.RentalActive {
			return store.InvalidState("rental %s is %s and cannot be extended", r.RentalCode, r.Status)
		}

		pkg, err := q.GetPackage(ctx, packageId)
		if err != nil {
			return err
		}
		if !pkg.IsActive {
			return store.InvalidState("package %s is not offered", pkg.Name)
		}

		now := s.clock()
		ext := &models.RentalExtension{
			Id:               uuid.New().String(),
			RentalId:         r.Id,
			PackageId:        pkg.Id,
			ExtensionMinutes: pkg.DurationMinutes,
			Price:            pkg.Price.Round(2),
			PreviousDueAt:    r.DueAt,
			NewDueAt:         r.DueAt.Add(time.Duration(pkg.DurationMinutes) * time.Minute),
			CreatedAt:        now,
		}

		alloc, err := billing.Charge(ctx, q, billing.ChargeParams{
			UserId:        userId,
			RentalId:      r.Id,
			Amount:        ext.Price,
			PointsPerUnit: s.cfg.PointsPerUnit,
			Reference:     ref(r.Id, "extend:"+ext.Id),
			Description:   "Extension " + pkg.Name,
		})
		if err != nil {
			return err
		}
		ext.PointsUsed = alloc.PointsToUse
		ext.WalletAmount = alloc.WalletAmount

		r.DueAt = ext.NewDueAt
		r.ReminderAt = ext.NewDueAt.Add(-s.cfg.ReminderLead)
		r.AmountPaid = r.AmountPaid.Add(ext.Price)
		if err := q.UpdateRental(ctx, r, models.RentalActive); err != nil {
			return err
		}
		if err := q.CreateExtension(ctx, *ext); err != nil {
			return err
		}

		rental, extension = r, ext
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Rental extended",
		zap.String("rental_id", rental.Id),
		zap.Int64("minutes", extension.ExtensionMinutes),
		zap.String("price", extension.Price.String()),
		zap.Time("due_at", rental.DueAt))

	s.notify(ctx, userId, store.TemplateRentalExtended, map[string]string{
		"rental_code": rental.RentalCode,
		"due_at":      rental.DueAt.Format(time.RFC3339),
	})
	return rental, extension, nil
}

// Cancel ends a PENDING or ACTIVE rental inside the cancellation window,
// puts the power bank back into its pickup slot and refunds what was paid.
func (s *Service) Cancel(ctx context.Context, userId, rentalId string) (*models.Rental, error) {
	var rental *models.Rental

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := ownedRental(ctx, q, userId, rentalId)
		if err != nil {
			return err
		}
		previous := r.Status
		if previous != models.RentalPending && previous != models.RentalActive {
			return store.InvalidState("rental %s is %s and cannot be cancelled", r.RentalCode, previous)
		}

		now := s.clock()
		if now.Sub(r.StartedAt) > s.cfg.CancelWindow {
			return store.InvalidState("cancellation window of %s has passed", s.cfg.CancelWindow)
		}

		if err := restockAtPickup(ctx, q, r); err != nil {
			return err
		}

		if r.PaymentStatus == models.PaymentPaid {
			wallet, points, err := billing.Refund(ctx, q, userId, r.Id, ref(r.Id, "refund"))
			if err != nil {
				return err
			}
			r.PaymentStatus = models.PaymentRefunded
			zap.L().Info("Rental refunded",
				zap.String("rental_id", r.Id),
				zap.String("wallet_amount", wallet.String()),
				zap.Int64("points", points))
		}

		r.Status = models.RentalCancelled
		r.EndedAt = &now
		if err := q.UpdateRental(ctx, r, previous); err != nil {
			return err
		}

		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Rental cancelled", zap.String("rental_id", rental.Id), zap.String("user_id", userId))
	s.notify(ctx, userId, store.TemplateRentalCancelled, map[string]string{"rental_code": rental.RentalCode})
	return rental, nil
}

// restockAtPickup puts the rental's power bank back into the slot it was
// taken from and frees that slot.
func restockAtPickup(ctx context.Context, q store.Queries, r *models.Rental) error {
	bank, err := q.GetPowerBank(ctx, r.PowerBankId)
	if err != nil {
		return err
	}
	occupant, err := q.GetPowerBankInSlot(ctx, r.SlotId)
	if err != nil {
		return err
	}
	if occupant != nil && occupant.Id != bank.Id {
		return store.Conflict("pickup slot is holding another power bank; return the unit to any station")
	}

	err = q.PlacePowerBank(ctx, store.PlacementParams{
		PowerBankId:  bank.Id,
		StationId:    r.StationId,
		SlotId:       r.SlotId,
		BatteryLevel: bank.BatteryLevel,
	})
	if err != nil {
		return err
	}
	return q.UpdateSlot(ctx, store.SlotUpdate{SlotId: r.SlotId, Status: models.SlotAvailable})
}

// PayDue settles the outstanding amount of an ended rental.
func (s *Service) PayDue(ctx context.Context, userId, rentalId string) (*models.Rental, models.Allocation, error) {
	var rental *models.Rental
	var allocation models.Allocation

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := ownedRental(ctx, q, userId, rentalId)
		if err != nil {
			return err
		}
		if !r.AmountDue.IsPositive() {
			return store.InvalidState("rental %s has nothing due", r.RentalCode)
		}

		alloc, err := billing.Charge(ctx, q, billing.ChargeParams{
			UserId:        userId,
			RentalId:      r.Id,
			Amount:        r.AmountDue,
			PointsPerUnit: s.cfg.PointsPerUnit,
			Reference:     ref(r.Id, "due"),
			Description:   "Outstanding rental balance",
		})
		if err != nil {
			return err
		}

		r.AmountPaid = r.AmountPaid.Add(r.AmountDue)
		r.AmountDue = decimal.Zero
		r.PaymentStatus = models.PaymentPaid
		if err := q.UpdateRental(ctx, r, r.Status); err != nil {
			return err
		}

		rental, allocation = r, alloc
		return nil
	})
	if err != nil {
		return nil, models.Allocation{}, err
	}

	zap.L().Info("Rental dues settled",
		zap.String("rental_id", rental.Id),
		zap.String("amount", allocation.Required.String()))
	return rental, allocation, nil
}
