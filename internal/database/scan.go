package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"powerbank-rental-go/internal/models"

	"go.uber.org/zap"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.Id, &u.Name, &u.Email, &u.Role, &u.Active, &u.ProfileComplete, &u.KycVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanStation(row rowScanner) (*models.Station, error) {
	var s models.Station
	var heartbeat sql.NullTime
	err := row.Scan(&s.Id, &s.SerialNumber, &s.Name, &s.Status, &s.Latitude, &s.Longitude, &heartbeat, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if heartbeat.Valid {
		s.LastHeartbeatAt = &heartbeat.Time
	}
	return &s, nil
}

func slotDest(s *models.Slot) []any {
	return []any{&s.Id, &s.StationId, &s.SlotNumber, &s.Status, &s.BatteryLevel, &s.CurrentRentalId, &s.UpdatedAt}
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var s models.Slot
	if err := row.Scan(slotDest(&s)...); err != nil {
		return nil, err
	}
	return &s, nil
}

func powerBankDest(p *models.PowerBank) []any {
	return []any{&p.Id, &p.SerialNumber, &p.Status, &p.BatteryLevel, &p.CurrentStationId, &p.CurrentSlotId, &p.UpdatedAt}
}

func scanPowerBank(row rowScanner) (*models.PowerBank, error) {
	var p models.PowerBank
	if err := row.Scan(powerBankDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPackage(row rowScanner) (*models.RentalPackage, error) {
	var p models.RentalPackage
	err := row.Scan(&p.Id, &p.Name, &p.DurationMinutes, &p.Price, &p.PaymentModel, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanRental(row rowScanner) (*models.Rental, error) {
	var r models.Rental
	var endedAt sql.NullTime
	var onTime sql.NullBool
	err := row.Scan(&r.Id, &r.RentalCode, &r.UserId, &r.StationId, &r.SlotId, &r.PackageId, &r.PowerBankId,
		&r.ReturnStationId, &r.ReturnSlotId, &r.Status, &r.PaymentStatus,
		&r.StartedAt, &endedAt, &r.DueAt, &r.AmountPaid, &r.OverdueAmount, &r.AmountDue, &onTime,
		&r.ReminderAt, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		r.EndedAt = &endedAt.Time
	}
	if onTime.Valid {
		r.IsReturnedOnTime = &onTime.Bool
	}
	return &r, nil
}

func scanRentals(rows *sql.Rows) ([]models.Rental, error) {
	var rentals []models.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *r)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during rental row iteration", zap.Error(err))
		return nil, err
	}
	return rentals, nil
}

func scanLateFeeConfig(row rowScanner) (*models.LateFeeConfiguration, error) {
	var c models.LateFeeConfiguration
	err := row.Scan(&c.Id, &c.Name, &c.FeeType, &c.Multiplier, &c.FlatRatePerHour, &c.GracePeriodMinutes,
		&c.MaxDailyRate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// expectOneRow returns missing when an update matched nothing.
func expectOneRow(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
