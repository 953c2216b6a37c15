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

// CreateRental inserts a new rental. The partial unique indexes reject a
// second PENDING or ACTIVE rental for the user and a second open rental for
// the power bank.
func (q *Queries) CreateRental(ctx context.Context, rental models.Rental) error {
	_, err := q.db.ExecContext(ctx, queryInsertRental,
		rental.Id, rental.RentalCode, rental.UserId, rental.StationId, rental.SlotId, rental.PackageId, rental.PowerBankId,
		string(rental.Status), string(rental.PaymentStatus), rental.StartedAt.UTC(), rental.DueAt.UTC(),
		rental.AmountPaid.String(), rental.OverdueAmount.String(), rental.AmountDue.String(),
		rental.ReminderAt.UTC(), rental.CreatedAt.UTC(), rental.UpdatedAt.UTC())
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "rentals.rental_code"):
			return fmt.Errorf("rental code %s already used: %w", rental.RentalCode, store.ErrDuplicateTransaction)
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return store.Conflict("user or power bank already has a rental in progress")
		}
		zap.L().Error("Failed to create rental", zap.String("rental_id", rental.Id), zap.Error(err))
		return fmt.Errorf("failed to create rental: %w", err)
	}
	return nil
}

func (q *Queries) GetRental(ctx context.Context, rentalId string) (*models.Rental, error) {
	rental, err := scanRental(q.db.QueryRowContext(ctx, queryGetRental, rentalId))
	if isNoRows(err) {
		return nil, store.NotFound("rental %s not found", rentalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental: %w", err)
	}
	return rental, nil
}

func (q *Queries) GetRentalByCode(ctx context.Context, code string) (*models.Rental, error) {
	rental, err := scanRental(q.db.QueryRowContext(ctx, queryGetRentalByCode, code))
	if isNoRows(err) {
		return nil, store.NotFound("rental %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental by code: %w", err)
	}
	return rental, nil
}

// GetOpenRentalForUser returns the user's most recently started PENDING,
// ACTIVE or OVERDUE rental, or nil.
func (q *Queries) GetOpenRentalForUser(ctx context.Context, userId string) (*models.Rental, error) {
	rental, err := scanRental(q.db.QueryRowContext(ctx, queryGetOpenRentalForUser, userId))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open rental for user: %w", err)
	}
	return rental, nil
}

// GetCurrentRentalForUser returns the user's PENDING or ACTIVE rental, or
// nil. An OVERDUE rental does not block a new one.
func (q *Queries) GetCurrentRentalForUser(ctx context.Context, userId string) (*models.Rental, error) {
	rental, err := scanRental(q.db.QueryRowContext(ctx, queryGetCurrentRentalForUser, userId))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current rental for user: %w", err)
	}
	return rental, nil
}

// GetOpenRentalForPowerBank returns the ACTIVE or OVERDUE rental holding the
// bank, or nil.
func (q *Queries) GetOpenRentalForPowerBank(ctx context.Context, powerBankId string) (*models.Rental, error) {
	rental, err := scanRental(q.db.QueryRowContext(ctx, queryGetOpenRentalForPowerBank, powerBankId))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open rental for power bank: %w", err)
	}
	return rental, nil
}

func (q *Queries) ListRentalsByUser(ctx context.Context, userId string, limit, offset int) ([]models.Rental, error) {
	rows, err := q.db.QueryContext(ctx, queryListRentalsByUser, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	defer closeRows(rows)

	rentals, err := scanRentals(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rentals: %w", err)
	}
	return rentals, nil
}

// UpdateRental writes every mutable column of rental, provided the stored
// status still equals expected. A lost race is reported as a conflict.
func (q *Queries) UpdateRental(ctx context.Context, rental *models.Rental, expected models.RentalStatus) error {
	if rental.Status.Ended() != (rental.EndedAt != nil) {
		return store.InvalidState("rental %s: ended_at must be set exactly when status is %s", rental.Id, rental.Status)
	}
	rental.UpdatedAt = nowUTC()

	result, err := q.db.ExecContext(ctx, queryUpdateRental,
		rental.ReturnStationId, rental.ReturnSlotId, string(rental.Status), string(rental.PaymentStatus),
		nullTime(rental.EndedAt), rental.DueAt.UTC(),
		rental.AmountPaid.String(), rental.OverdueAmount.String(), rental.AmountDue.String(),
		nullBool(rental.IsReturnedOnTime), rental.ReminderAt.UTC(), rental.ReminderSent, rental.UpdatedAt,
		rental.Id, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update rental: %w", err)
	}

	return expectOneRow(result, store.Conflict("rental %s is no longer %s", rental.Id, expected))
}

func (q *Queries) CreateExtension(ctx context.Context, ext models.RentalExtension) error {
	if ext.Id == "" {
		ext.Id = uuid.New().String()
	}
	_, err := q.db.ExecContext(ctx, queryInsertExtension, ext.Id, ext.RentalId, ext.PackageId, ext.ExtensionMinutes,
		ext.Price.String(), ext.PointsUsed, ext.WalletAmount.String(),
		ext.PreviousDueAt.UTC(), ext.NewDueAt.UTC(), ext.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create rental extension: %w", err)
	}
	return nil
}

func (q *Queries) ListExtensions(ctx context.Context, rentalId string) ([]models.RentalExtension, error) {
	rows, err := q.db.QueryContext(ctx, queryListExtensions, rentalId)
	if err != nil {
		return nil, fmt.Errorf("failed to list rental extensions: %w", err)
	}
	defer closeRows(rows)

	var extensions []models.RentalExtension
	for rows.Next() {
		var ext models.RentalExtension
		err := rows.Scan(&ext.Id, &ext.RentalId, &ext.PackageId, &ext.ExtensionMinutes, &ext.Price,
			&ext.PointsUsed, &ext.WalletAmount, &ext.PreviousDueAt, &ext.NewDueAt, &ext.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental extension: %w", err)
		}
		extensions = append(extensions, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extension rows: %w", err)
	}
	return extensions, nil
}

// MarkOverdue flips every ACTIVE rental past its due time to OVERDUE.
func (q *Queries) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, queryMarkOverdue, nowUTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue rentals: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

func (q *Queries) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Rental, error) {
	rows, err := q.db.QueryContext(ctx, queryListAbandoned, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list abandoned rentals: %w", err)
	}
	defer closeRows(rows)
	return scanRentals(rows)
}

func (q *Queries) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Rental, error) {
	rows, err := q.db.QueryContext(ctx, queryListDueReminders, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer closeRows(rows)
	return scanRentals(rows)
}

// MarkReminderSent claims the reminder for one rental. It reports false when
// another sweep already claimed it or the rental left ACTIVE.
func (q *Queries) MarkReminderSent(ctx context.Context, rentalId string) (bool, error) {
	result, err := q.db.ExecContext(ctx, queryMarkReminderSent, nowUTC(), rentalId)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) CreateIssue(ctx context.Context, issue models.RentalIssue) error {
	if issue.Id == "" {
		issue.Id = uuid.New().String()
	}
	_, err := q.db.ExecContext(ctx, queryInsertIssue, issue.Id, issue.RentalId, issue.UserId,
		issue.IssueType, issue.Description, issue.Status, issue.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create rental issue: %w", err)
	}
	return nil
}

func (q *Queries) CreateLocation(ctx context.Context, loc models.RentalLocation) error {
	if loc.Id == "" {
		loc.Id = uuid.New().String()
	}
	_, err := q.db.ExecContext(ctx, queryInsertLocation, loc.Id, loc.RentalId, loc.Latitude, loc.Longitude,
		loc.Accuracy, loc.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record rental location: %w", err)
	}
	return nil
}

func (q *Queries) ListLocations(ctx context.Context, rentalId string) ([]models.RentalLocation, error) {
	rows, err := q.db.QueryContext(ctx, queryListLocations, rentalId)
	if err != nil {
		return nil, fmt.Errorf("failed to list rental locations: %w", err)
	}
	defer closeRows(rows)

	var locations []models.RentalLocation
	for rows.Next() {
		var loc models.RentalLocation
		if err := rows.Scan(&loc.Id, &loc.RentalId, &loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location rows: %w", err)
	}
	return locations, nil
}
