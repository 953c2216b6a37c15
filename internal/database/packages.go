package database

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func validatePackage(pkg models.RentalPackage) error {
	if pkg.Name == "" {
		return store.Invalid("package name is required")
	}
	if pkg.DurationMinutes <= 0 {
		return store.Invalid("package duration must be positive, got %d", pkg.DurationMinutes)
	}
	if pkg.Price.IsNegative() {
		return store.Invalid("package price cannot be negative")
	}
	if pkg.PaymentModel != models.Prepaid && pkg.PaymentModel != models.Postpaid {
		return store.Invalid("unknown payment model %q", pkg.PaymentModel)
	}
	return nil
}

func (q *Queries) CreatePackage(ctx context.Context, pkg models.RentalPackage) (*models.RentalPackage, error) {
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	if pkg.Id == "" {
		pkg.Id = uuid.New().String()
	}
	pkg.Price = pkg.Price.Round(2)
	pkg.CreatedAt = nowUTC()

	_, err := q.db.ExecContext(ctx, queryInsertPackage, pkg.Id, pkg.Name, pkg.DurationMinutes,
		pkg.Price.String(), string(pkg.PaymentModel), pkg.IsActive, pkg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}

	zap.L().Info("Rental package created",
		zap.String("id", pkg.Id),
		zap.String("name", pkg.Name),
		zap.Int64("duration_minutes", pkg.DurationMinutes),
		zap.String("price", pkg.Price.String()))
	return &pkg, nil
}

func (q *Queries) GetPackage(ctx context.Context, packageId string) (*models.RentalPackage, error) {
	pkg, err := scanPackage(q.db.QueryRowContext(ctx, queryGetPackage, packageId))
	if isNoRows(err) {
		return nil, store.NotFound("package %s not found", packageId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

func (q *Queries) ListPackages(ctx context.Context, activeOnly bool) ([]models.RentalPackage, error) {
	rows, err := q.db.QueryContext(ctx, queryListPackages, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer closeRows(rows)

	var packages []models.RentalPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating package rows: %w", err)
	}
	return packages, nil
}

// UpdatePackage rewrites a package. Once any rental or extension references
// it only the active flag may change, so historical charges stay explainable.
func (q *Queries) UpdatePackage(ctx context.Context, pkg models.RentalPackage) error {
	if err := validatePackage(pkg); err != nil {
		return err
	}
	current, err := q.GetPackage(ctx, pkg.Id)
	if err != nil {
		return err
	}

	var referenced bool
	if err := q.db.QueryRowContext(ctx, queryPackageReferenced, pkg.Id, pkg.Id).Scan(&referenced); err != nil {
		return fmt.Errorf("failed to check package references: %w", err)
	}

	if referenced {
		if current.Name != pkg.Name || current.DurationMinutes != pkg.DurationMinutes ||
			!current.Price.Equal(pkg.Price) || current.PaymentModel != pkg.PaymentModel {
			return store.Conflict("package %s is referenced by rentals and cannot be modified", pkg.Id)
		}
		if _, err := q.db.ExecContext(ctx, queryUpdatePackageActive, pkg.IsActive, pkg.Id); err != nil {
			return fmt.Errorf("failed to update package: %w", err)
		}
		return nil
	}

	_, err = q.db.ExecContext(ctx, queryUpdatePackage, pkg.Name, pkg.DurationMinutes, pkg.Price.Round(2).String(),
		string(pkg.PaymentModel), pkg.IsActive, pkg.Id)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	return nil
}
