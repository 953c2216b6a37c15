package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (q *Queries) GetStation(ctx context.Context, stationId string) (*models.Station, error) {
	station, err := scanStation(q.db.QueryRowContext(ctx, queryGetStation, stationId))
	if isNoRows(err) {
		return nil, store.NotFound("station %s not found", stationId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return station, nil
}

func (q *Queries) GetStationBySerial(ctx context.Context, serial string) (*models.Station, error) {
	station, err := scanStation(q.db.QueryRowContext(ctx, queryGetStationBySerial, serial))
	if isNoRows(err) {
		return nil, store.NotFound("station with serial %s not found", serial)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station by serial: %w", err)
	}
	return station, nil
}

func (q *Queries) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := q.db.QueryContext(ctx, queryListStations)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer closeRows(rows)

	var stations []models.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, *station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}
	return stations, nil
}

// UpsertStation inserts a station or refreshes the mutable fields of the one
// with the same serial number.
func (q *Queries) UpsertStation(ctx context.Context, station models.Station) (*models.Station, error) {
	if station.SerialNumber == "" {
		return nil, store.Invalid("station serial number is required")
	}
	if station.Id == "" {
		station.Id = uuid.New().String()
	}
	if station.Status == "" {
		station.Status = models.StationOnline
	}
	now := nowUTC()

	_, err := q.db.ExecContext(ctx, queryUpsertStation, station.Id, station.SerialNumber, station.Name,
		string(station.Status), station.Latitude, station.Longitude, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert station: %w", err)
	}
	return q.GetStationBySerial(ctx, station.SerialNumber)
}

func (q *Queries) TouchStationHeartbeat(ctx context.Context, stationId string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, queryTouchStationHeartbeat, at.UTC(), nowUTC(), stationId)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

func (q *Queries) GetSlot(ctx context.Context, slotId string) (*models.Slot, error) {
	slot, err := scanSlot(q.db.QueryRowContext(ctx, queryGetSlot, slotId))
	if isNoRows(err) {
		return nil, store.NotFound("slot %s not found", slotId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func (q *Queries) GetSlotByNumber(ctx context.Context, stationId string, slotNumber int) (*models.Slot, error) {
	slot, err := scanSlot(q.db.QueryRowContext(ctx, queryGetSlotByNumber, stationId, slotNumber))
	if isNoRows(err) {
		return nil, store.NotFound("slot %d not found at station %s", slotNumber, stationId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot by number: %w", err)
	}
	return slot, nil
}

func (q *Queries) ListSlots(ctx context.Context, stationId string) ([]models.Slot, error) {
	rows, err := q.db.QueryContext(ctx, queryListSlots, stationId)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer closeRows(rows)

	var slots []models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot rows: %w", err)
	}
	return slots, nil
}

// UpsertSlot inserts a slot or refreshes status and battery of the slot with
// the same station and number. The rental back-reference is left untouched.
func (q *Queries) UpsertSlot(ctx context.Context, slot models.Slot) (*models.Slot, error) {
	if slot.Id == "" {
		slot.Id = uuid.New().String()
	}
	if slot.Status == "" {
		slot.Status = models.SlotAvailable
	}
	_, err := q.db.ExecContext(ctx, queryUpsertSlot, slot.Id, slot.StationId, slot.SlotNumber,
		string(slot.Status), slot.BatteryLevel, nowUTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert slot: %w", err)
	}
	return q.GetSlotByNumber(ctx, slot.StationId, slot.SlotNumber)
}

func (q *Queries) UpdateSlot(ctx context.Context, update store.SlotUpdate) error {
	result, err := q.db.ExecContext(ctx, queryUpdateSlot, string(update.Status), update.RentalId, nowUTC(), update.SlotId)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	return expectOneRow(result, store.NotFound("slot %s not found", update.SlotId))
}

func (q *Queries) UpdateSlotBattery(ctx context.Context, slotId string, batteryLevel int) error {
	_, err := q.db.ExecContext(ctx, queryUpdateSlotBattery, batteryLevel, nowUTC(), slotId)
	if err != nil {
		return fmt.Errorf("failed to update slot battery: %w", err)
	}
	return nil
}

func (q *Queries) GetPowerBank(ctx context.Context, powerBankId string) (*models.PowerBank, error) {
	bank, err := scanPowerBank(q.db.QueryRowContext(ctx, queryGetPowerBank, powerBankId))
	if isNoRows(err) {
		return nil, store.NotFound("power bank %s not found", powerBankId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get power bank: %w", err)
	}
	return bank, nil
}

func (q *Queries) GetPowerBankBySerial(ctx context.Context, serial string) (*models.PowerBank, error) {
	bank, err := scanPowerBank(q.db.QueryRowContext(ctx, queryGetPowerBankBySerial, serial))
	if isNoRows(err) {
		return nil, store.NotFound("power bank with serial %s not found", serial)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get power bank by serial: %w", err)
	}
	return bank, nil
}

// GetPowerBankInSlot returns the bank docked in a slot, or nil when empty.
func (q *Queries) GetPowerBankInSlot(ctx context.Context, slotId string) (*models.PowerBank, error) {
	bank, err := scanPowerBank(q.db.QueryRowContext(ctx, queryGetPowerBankInSlot, slotId))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get power bank in slot: %w", err)
	}
	return bank, nil
}

func (q *Queries) CreatePowerBank(ctx context.Context, bank models.PowerBank) (*models.PowerBank, error) {
	if bank.SerialNumber == "" {
		return nil, store.Invalid("power bank serial number is required")
	}
	if bank.Id == "" {
		bank.Id = uuid.New().String()
	}
	if bank.Status == "" {
		bank.Status = models.PowerBankAvailable
	}
	bank.UpdatedAt = nowUTC()

	_, err := q.db.ExecContext(ctx, queryInsertPowerBank, bank.Id, bank.SerialNumber, string(bank.Status),
		bank.BatteryLevel, bank.CurrentStationId, bank.CurrentSlotId, bank.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, store.Conflict("power bank %s already exists or slot is taken", bank.SerialNumber)
		}
		return nil, fmt.Errorf("failed to create power bank: %w", err)
	}

	zap.L().Info("Power bank registered", zap.String("id", bank.Id), zap.String("serial", bank.SerialNumber))
	return &bank, nil
}

// PlacePowerBank docks a bank into a slot and marks it AVAILABLE.
func (q *Queries) PlacePowerBank(ctx context.Context, params store.PlacementParams) error {
	result, err := q.db.ExecContext(ctx, queryPlacePowerBank, params.StationId, params.SlotId,
		params.BatteryLevel, nowUTC(), params.PowerBankId)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.Conflict("slot %s already holds a power bank", params.SlotId)
		}
		return fmt.Errorf("failed to place power bank: %w", err)
	}
	return expectOneRow(result, store.NotFound("power bank %s not found", params.PowerBankId))
}

// DetachPowerBank takes a bank out of its slot. An empty stationId also clears
// the station, which is only valid for RENTED.
func (q *Queries) DetachPowerBank(ctx context.Context, powerBankId string, status models.PowerBankStatus, stationId string) error {
	if stationId == "" && status != models.PowerBankRented {
		return store.InvalidState("power bank %s must keep a station unless rented", powerBankId)
	}
	if stationId != "" && status == models.PowerBankRented {
		return store.InvalidState("rented power bank %s cannot be at a station", powerBankId)
	}
	result, err := q.db.ExecContext(ctx, queryDetachPowerBank, string(status), stationId, nowUTC(), powerBankId)
	if err != nil {
		return fmt.Errorf("failed to detach power bank: %w", err)
	}
	return expectOneRow(result, store.NotFound("power bank %s not found", powerBankId))
}

func (q *Queries) SetPowerBankStatus(ctx context.Context, powerBankId string, status models.PowerBankStatus) error {
	if !status.Valid() {
		return store.Invalid("unknown power bank status %q", status)
	}
	result, err := q.db.ExecContext(ctx, querySetPowerBankStatus, string(status), nowUTC(), powerBankId)
	if err != nil {
		return fmt.Errorf("failed to set power bank status: %w", err)
	}
	return expectOneRow(result, store.NotFound("power bank %s not found", powerBankId))
}

// PickPowerBank selects the best rentable bank at a station: an unreserved
// slot holding an AVAILABLE bank at or above minBattery, highest charge first.
func (q *Queries) PickPowerBank(ctx context.Context, stationId string, minBattery int) (*models.Slot, *models.PowerBank, error) {
	var slot models.Slot
	var bank models.PowerBank
	dest := append(slotDest(&slot), powerBankDest(&bank)...)

	err := q.db.QueryRowContext(ctx, queryPickPowerBank, stationId, minBattery).Scan(dest...)
	if isNoRows(err) {
		return nil, nil, store.Unavailable("no power bank available at station %s", stationId)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pick power bank: %w", err)
	}
	return &slot, &bank, nil
}
