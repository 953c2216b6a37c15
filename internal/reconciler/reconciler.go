// Package reconciler turns hardware "unit returned" events and station
// inventory snapshots into rental settlements and inventory updates.
package reconciler

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

type Service struct {
	store    store.RentalStore
	notifier store.Notifier
	awarder  store.PointsAwarder
	cfg      models.RentalConfig
	now      func() time.Time
}

func NewService(st store.RentalStore, notifier store.Notifier, awarder store.PointsAwarder, cfg models.RentalConfig) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		awarder:  awarder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces time.Now, mainly for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func validateEvent(ev models.ReturnEvent) error {
	switch {
	case ev.StationSerial == "":
		return store.Invalid("station serial number is required")
	case ev.PowerBankSerial == "":
		return store.Invalid("power bank serial number is required")
	case ev.SlotNumber <= 0:
		return store.Invalid("slot number must be positive")
	case ev.BatteryLevel < 0 || ev.BatteryLevel > 100:
		return store.Invalid("battery level %d out of range", ev.BatteryLevel)
	}
	return nil
}

// ProcessReturn docks the reported power bank and, if it belongs to an open
// rental, completes and bills that rental. Replaying the same event only
// re-confirms the placement.
func (s *Service) ProcessReturn(ctx context.Context, ev models.ReturnEvent) (*models.ReturnResult, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	zap.L().Info("Processing return event",
		zap.String("station", ev.StationSerial),
		zap.String("power_bank", ev.PowerBankSerial),
		zap.Int("slot_number", ev.SlotNumber),
		zap.Int("battery_level", ev.BatteryLevel))

	var result *models.ReturnResult
	var settled *models.Rental

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		station, err := q.GetStationBySerial(ctx, ev.StationSerial)
		if err != nil {
			return err
		}
		slot, err := q.GetSlotByNumber(ctx, station.Id, ev.SlotNumber)
		if err != nil {
			return err
		}
		bank, err := q.GetPowerBankBySerial(ctx, ev.PowerBankSerial)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := q.TouchStationHeartbeat(ctx, station.Id, now); err != nil {
			return err
		}

		res := &models.ReturnResult{
			StationId:       station.Id,
			SlotId:          slot.Id,
			PowerBankId:     bank.Id,
			UsageCharge:     decimal.Zero,
			LateFee:         decimal.Zero,
			AmountCollected: decimal.Zero,
			AmountDue:       decimal.Zero,
		}

		open, err := q.GetOpenRentalForPowerBank(ctx, bank.Id)
		if err != nil {
			return err
		}
		if open != nil {
			if err := s.settle(ctx, q, open, station, slot, now, res); err != nil {
				return err
			}
			settled = open
		}

		if err := dock(ctx, q, bank, station.Id, slot.Id, ev.BatteryLevel); err != nil {
			return err
		}
		if open != nil && open.SlotId != slot.Id {
			if err := rental.ReleasePickupSlot(ctx, q, open); err != nil {
				return err
			}
		}

		result = res
		return nil
	})
	if err != nil {
		zap.L().Warn("Return event rejected",
			zap.String("power_bank", ev.PowerBankSerial),
			zap.String("kind", string(store.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	if settled == nil {
		zap.L().Info("Power bank docked without open rental",
			zap.String("power_bank_id", result.PowerBankId),
			zap.String("slot_id", result.SlotId))
		return result, nil
	}

	zap.L().Info("Rental completed by return",
		zap.String("rental_id", settled.Id),
		zap.Bool("on_time", result.IsReturnedOnTime),
		zap.String("late_fee", result.LateFee.String()),
		zap.String("amount_due", result.AmountDue.String()))

	s.afterSettlement(ctx, settled, result)
	return result, nil
}

// settle completes r and bills it inside the caller's transaction.
func (s *Service) settle(ctx context.Context, q store.Queries, r *models.Rental, station *models.Station, slot *models.Slot, now time.Time, res *models.ReturnResult) error {
	pkg, err := q.GetPackage(ctx, r.PackageId)
	if err != nil {
		return err
	}

	onTime := !now.After(r.DueAt)
	res.RentalId = r.Id
	res.RentalCode = r.RentalCode
	res.RentalCompleted = true
	res.IsReturnedOnTime = onTime
	res.OverdueMinutes = billing.OverdueMinutes(r.DueAt, now)

	if !onTime {
		cfg, err := q.GetActiveLateFeeConfig(ctx)
		if err != nil {
			return err
		}
		if cfg != nil {
			res.LateFee = billing.LateFee(*cfg, pkg.RatePerMinute(), res.OverdueMinutes)
		}
	}

	if pkg.PaymentModel == models.Postpaid {
		usage := billing.UsageCharge(*pkg, billing.ElapsedMinutes(r.StartedAt, now)).Sub(r.AmountPaid)
		if usage.IsPositive() {
			res.UsageCharge = usage
		}
	}

	previous := r.Status
	r.Status = models.RentalCompleted
	r.EndedAt = &now
	r.IsReturnedOnTime = &onTime
	r.ReturnStationId = station.Id
	r.ReturnSlotId = slot.Id
	r.OverdueAmount = r.OverdueAmount.Add(res.LateFee)

	total := res.UsageCharge.Add(res.LateFee)
	if total.IsPositive() {
		_, err := billing.Charge(ctx, q, billing.ChargeParams{
			UserId:        r.UserId,
			RentalId:      r.Id,
			Amount:        total,
			PointsPerUnit: s.cfg.PointsPerUnit,
			Reference:     "rental:" + r.Id + ":return",
			Description:   "Rental return settlement",
		})
		switch {
		case err == nil:
			r.AmountPaid = r.AmountPaid.Add(total)
			res.AmountCollected = total
		case store.IsKind(err, store.KindInsufficientFunds):
			r.AmountDue = r.AmountDue.Add(total)
		default:
			return err
		}
	}

	if r.AmountDue.IsPositive() {
		r.PaymentStatus = models.PaymentPending
	} else {
		r.PaymentStatus = models.PaymentPaid
	}
	res.AmountDue = r.AmountDue
	res.PaymentStatus = r.PaymentStatus

	return q.UpdateRental(ctx, r, previous)
}

// dock places bank into the slot, moving aside any other bank recorded there
// and freeing the slot the bank was last recorded in.
func dock(ctx context.Context, q store.Queries, bank *models.PowerBank, stationId, slotId string, battery int) error {
	if bank.CurrentSlotId != "" && bank.CurrentSlotId != slotId {
		if err := releasePreviousSlot(ctx, q, bank.CurrentSlotId); err != nil {
			return err
		}
	}

	occupant, err := q.GetPowerBankInSlot(ctx, slotId)
	if err != nil {
		return err
	}
	if occupant != nil && occupant.Id != bank.Id {
		zap.L().Warn("Slot held a different power bank, detaching it",
			zap.String("slot_id", slotId),
			zap.String("displaced_power_bank_id", occupant.Id))
		if err := q.DetachPowerBank(ctx, occupant.Id, models.PowerBankMaintenance, stationId); err != nil {
			return err
		}
	}

	err = q.PlacePowerBank(ctx, store.PlacementParams{
		PowerBankId:  bank.Id,
		StationId:    stationId,
		SlotId:       slotId,
		BatteryLevel: battery,
	})
	if err != nil {
		return err
	}
	if err := q.UpdateSlot(ctx, store.SlotUpdate{SlotId: slotId, Status: models.SlotOccupied}); err != nil {
		return err
	}
	return q.UpdateSlotBattery(ctx, slotId, battery)
}

func releasePreviousSlot(ctx context.Context, q store.Queries, slotId string) error {
	prev, err := q.GetSlot(ctx, slotId)
	if err != nil {
		return err
	}
	if prev.CurrentRentalId != "" || prev.Status != models.SlotOccupied {
		return nil
	}
	zap.L().Info("Power bank moved, releasing its previous slot", zap.String("slot_id", slotId))
	return q.UpdateSlot(ctx, store.SlotUpdate{SlotId: slotId, Status: models.SlotAvailable})
}

func (s *Service) afterSettlement(ctx context.Context, r *models.Rental, res *models.ReturnResult) {
	if s.awarder != nil && s.cfg.CompletionPoints > 0 {
		if err := s.awarder.AwardPoints(ctx, r.UserId, s.cfg.CompletionPoints, "rental:"+r.Id+":completion"); err != nil {
			zap.L().Warn("Failed to award completion points", zap.String("rental_id", r.Id), zap.Error(err))
		}
	}
	if s.notifier == nil {
		return
	}

	fields := map[string]string{
		"rental_code": r.RentalCode,
		"late_fee":    res.LateFee.StringFixed(2),
		"amount_due":  res.AmountDue.StringFixed(2),
	}
	if err := s.notifier.Notify(ctx, r.UserId, store.TemplateRentalCompleted, fields); err != nil {
		zap.L().Warn("Failed to send completion notification", zap.String("rental_id", r.Id), zap.Error(err))
	}
	if res.AmountDue.IsPositive() {
		if err := s.notifier.Notify(ctx, r.UserId, store.TemplatePaymentDue, fields); err != nil {
			zap.L().Warn("Failed to send payment due notification", zap.String("rental_id", r.Id), zap.Error(err))
		}
	}
}
