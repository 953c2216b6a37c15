package database

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
)

func countByStatus[K ~string](ctx context.Context, q *Queries, query string) (map[K]int, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	counts := make(map[K]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[K(status)] = count
	}
	return counts, rows.Err()
}

// GetAnalytics aggregates inventory and revenue for the admin dashboard.
// Revenue excludes refunded rentals.
func (q *Queries) GetAnalytics(ctx context.Context) (*models.Analytics, error) {
	rentals, err := countByStatus[models.RentalStatus](ctx, q, queryCountRentalsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count rentals: %w", err)
	}
	banks, err := countByStatus[models.PowerBankStatus](ctx, q, queryCountPowerBanksByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count power banks: %w", err)
	}
	stations, err := countByStatus[models.StationStatus](ctx, q, queryCountStationsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count stations: %w", err)
	}

	analytics := &models.Analytics{
		RentalsByStatus:    rentals,
		PowerBanksByStatus: banks,
		StationsByStatus:   stations,
		RevenueCollected:   decimal.Zero,
		OutstandingDues:    decimal.Zero,
		LateFeesBilled:     decimal.Zero,
	}

	rows, err := q.db.QueryContext(ctx, queryRentalAmounts)
	if err != nil {
		return nil, fmt.Errorf("failed to sum rental amounts: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var paid, due, overdue decimal.Decimal
		var status models.PaymentStatus
		if err := rows.Scan(&paid, &due, &overdue, &status); err != nil {
			return nil, fmt.Errorf("failed to scan rental amounts: %w", err)
		}
		if status != models.PaymentRefunded {
			analytics.RevenueCollected = analytics.RevenueCollected.Add(paid)
		}
		analytics.OutstandingDues = analytics.OutstandingDues.Add(due)
		analytics.LateFeesBilled = analytics.LateFeesBilled.Add(overdue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rental amounts: %w", err)
	}
	return analytics, nil
}
