package reconciler

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"go.uber.org/zap"
)

// Resync aligns the stored inventory of one station with a full snapshot
// reported by its hardware. Slots reserved by a rental and banks still out on
// a rental are left alone and reported as skipped.
func (s *Service) Resync(ctx context.Context, snapshot models.StationSnapshot) (*models.ResyncResult, error) {
	if snapshot.Device.SerialNumber == "" {
		return nil, store.Invalid("station serial number is required")
	}
	for _, slot := range snapshot.Slots {
		if slot.SlotNumber <= 0 {
			return nil, store.Invalid("slot number must be positive")
		}
		if slot.BatteryLevel < 0 || slot.BatteryLevel > 100 || slot.PowerBankBattery < 0 || slot.PowerBankBattery > 100 {
			return nil, store.Invalid("battery level out of range in slot %d", slot.SlotNumber)
		}
	}

	var result *models.ResyncResult
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		station, err := q.UpsertStation(ctx, models.Station{
			SerialNumber: snapshot.Device.SerialNumber,
			Name:         snapshot.Device.Name,
			Status:       snapshot.Device.Status,
			Latitude:     snapshot.Device.Latitude,
			Longitude:    snapshot.Device.Longitude,
		})
		if err != nil {
			return err
		}
		if err := q.TouchStationHeartbeat(ctx, station.Id, s.now().UTC()); err != nil {
			return err
		}

		res := &models.ResyncResult{StationId: station.Id}
		for _, reported := range snapshot.Slots {
			if err := s.resyncSlot(ctx, q, station.Id, reported, res); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Station resynced",
		zap.String("station", snapshot.Device.SerialNumber),
		zap.Int("slots", result.SlotsUpserted),
		zap.Int("power_banks", result.PowerBanksPlaced),
		zap.Strings("skipped", result.Skipped))
	return result, nil
}

func (s *Service) resyncSlot(ctx context.Context, q store.Queries, stationId string, reported models.SlotSnapshot, res *models.ResyncResult) error {
	existing, err := q.GetSlotByNumber(ctx, stationId, reported.SlotNumber)
	if err != nil && !store.IsKind(err, store.KindNotFound) {
		return err
	}
	if existing != nil && existing.CurrentRentalId != "" {
		res.Skipped = append(res.Skipped, fmt.Sprintf("slot %d is reserved by rental %s", reported.SlotNumber, existing.CurrentRentalId))
		return nil
	}

	status := reported.Status
	switch {
	case reported.PowerBankSerial != "" && (status == "" || status == models.SlotAvailable):
		status = models.SlotOccupied
	case reported.PowerBankSerial == "" && (status == "" || status == models.SlotOccupied):
		status = models.SlotAvailable
	}

	slot := models.Slot{StationId: stationId, SlotNumber: reported.SlotNumber, Status: status, BatteryLevel: reported.BatteryLevel}
	if existing != nil {
		slot.Id = existing.Id
	}
	stored, err := q.UpsertSlot(ctx, slot)
	if err != nil {
		return err
	}
	res.SlotsUpserted++

	occupant, err := q.GetPowerBankInSlot(ctx, stored.Id)
	if err != nil {
		return err
	}

	if reported.PowerBankSerial == "" {
		if occupant != nil {
			zap.L().Warn("Stored power bank missing from snapshot",
				zap.String("power_bank", occupant.SerialNumber),
				zap.Int("slot_number", reported.SlotNumber))
			return q.DetachPowerBank(ctx, occupant.Id, models.PowerBankMaintenance, stationId)
		}
		return nil
	}

	battery := reported.PowerBankBattery
	if battery == 0 {
		battery = reported.BatteryLevel
	}

	bank, err := q.GetPowerBankBySerial(ctx, reported.PowerBankSerial)
	switch {
	case store.IsKind(err, store.KindNotFound):
		bank = nil
	case err != nil:
		return err
	}
	if bank != nil && bank.Status == models.PowerBankRented {
		res.Skipped = append(res.Skipped, fmt.Sprintf("power bank %s is on an open rental", bank.SerialNumber))
		return nil
	}

	if occupant != nil && (bank == nil || occupant.Id != bank.Id) {
		if err := q.DetachPowerBank(ctx, occupant.Id, models.PowerBankMaintenance, stationId); err != nil {
			return err
		}
	}

	if bank == nil {
		_, err := q.CreatePowerBank(ctx, models.PowerBank{
			SerialNumber:     reported.PowerBankSerial,
			BatteryLevel:     battery,
			CurrentStationId: stationId,
			CurrentSlotId:    stored.Id,
		})
		if err != nil {
			return err
		}
		res.PowerBanksPlaced++
		return nil
	}

	err = q.PlacePowerBank(ctx, store.PlacementParams{
		PowerBankId:  bank.Id,
		StationId:    stationId,
		SlotId:       stored.Id,
		BatteryLevel: battery,
	})
	if err != nil {
		return err
	}
	// Placement marks the bank AVAILABLE; keep an operator hold in place.
	if bank.Status == models.PowerBankMaintenance || bank.Status == models.PowerBankDamaged {
		if err := q.SetPowerBankStatus(ctx, bank.Id, bank.Status); err != nil {
			return err
		}
	}
	res.PowerBanksPlaced++
	return nil
}
