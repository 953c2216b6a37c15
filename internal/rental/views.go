package rental

import (
	"context"
	"strings"

	"powerbank-rental-go/internal/billing"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var issueTypes = map[string]bool{
	"DAMAGED_UNIT": true,
	"NOT_CHARGING": true,
	"SLOT_JAMMED":  true,
	"LOST":         true,
	"BILLING":      true,
	"OTHER":        true,
}

// GetActive returns the user's open rental with its live overdue projection.
func (s *Service) GetActive(ctx context.Context, userId string) (*models.ActiveRentalView, error) {
	r, err := s.store.GetOpenRentalForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, store.NotFound("no active rental")
	}

	view := &models.ActiveRentalView{Rental: *r}
	projection, err := s.LiveOverdue(ctx, r)
	if err != nil {
		return nil, err
	}
	view.Overdue = projection
	return view, nil
}

// LiveOverdue projects the late fee the rental would be charged if it were
// returned now. It returns nil before due_at and never writes anything.
func (s *Service) LiveOverdue(ctx context.Context, r *models.Rental) (*models.OverdueProjection, error) {
	now := s.clock()
	if !now.After(r.DueAt) {
		return nil, nil
	}

	minutes := billing.OverdueMinutes(r.DueAt, now)
	projection := &models.OverdueProjection{
		RentalId:       r.Id,
		OverdueMinutes: minutes,
		ProjectedFee:   decimal.Zero,
	}

	cfg, err := s.store.GetActiveLateFeeConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return projection, nil
	}
	pkg, err := s.store.GetPackage(ctx, r.PackageId)
	if err != nil {
		return nil, err
	}
	projection.ProjectedFee = billing.LateFee(*cfg, pkg.RatePerMinute(), minutes)
	return projection, nil
}

// History returns the user's rentals, newest first.
func (s *Service) History(ctx context.Context, userId string, limit, offset int) ([]models.Rental, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListRentalsByUser(ctx, userId, limit, offset)
}

func (s *Service) ReportIssue(ctx context.Context, userId, rentalId, issueType, description string) (*models.RentalIssue, error) {
	issueType = strings.ToUpper(strings.TrimSpace(issueType))
	if !issueTypes[issueType] {
		return nil, store.Invalid("unknown issue type %q", issueType)
	}

	r, err := ownedRental(ctx, s.store, userId, rentalId)
	if err != nil {
		return nil, err
	}

	issue := models.RentalIssue{
		Id:          uuid.New().String(),
		RentalId:    r.Id,
		UserId:      userId,
		IssueType:   issueType,
		Description: strings.TrimSpace(description),
		Status:      "OPEN",
		CreatedAt:   s.clock(),
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// RecordLocation stores a GPS breadcrumb for an open rental.
func (s *Service) RecordLocation(ctx context.Context, userId, rentalId string, latitude, longitude, accuracy float64) (*models.RentalLocation, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, store.Invalid("coordinates out of range")
	}

	r, err := ownedRental(ctx, s.store, userId, rentalId)
	if err != nil {
		return nil, err
	}
	if !r.Status.Open() {
		return nil, store.InvalidState("rental %s is %s", r.RentalCode, r.Status)
	}

	loc := models.RentalLocation{
		Id:         uuid.New().String(),
		RentalId:   r.Id,
		Latitude:   latitude,
		Longitude:  longitude,
		Accuracy:   accuracy,
		RecordedAt: s.clock(),
	}
	if err := s.store.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return &loc, nil
}
