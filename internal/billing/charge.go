package billing

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChargeParams describes an amount to collect for a rental.
type ChargeParams struct {
	UserId        string
	RentalId      string
	Amount        decimal.Decimal
	PointsPerUnit int64
	Reference     string
	Description   string
}

// Charge collects p.Amount from points then wallet using q, which must be
// bound to the caller's write transaction. Nothing is written when the
// balances are insufficient.
func Charge(ctx context.Context, q store.Queries, p ChargeParams) (models.Allocation, error) {
	points, err := q.GetPointsBalance(ctx, p.UserId)
	if err != nil {
		return models.Allocation{}, fmt.Errorf("failed to read points balance: %w", err)
	}
	wallet, err := q.GetWalletBalance(ctx, p.UserId)
	if err != nil {
		return models.Allocation{}, fmt.Errorf("failed to read wallet balance: %w", err)
	}

	alloc := Allocate(p.Amount, points, wallet, p.PointsPerUnit)
	if !alloc.Sufficient {
		return alloc, InsufficientFunds(alloc)
	}

	if alloc.PointsToUse > 0 {
		_, err := q.ApplyPointsTransaction(ctx, store.PointsTxParams{
			UserId:      p.UserId,
			RentalId:    p.RentalId,
			Type:        models.TxTypeRentalPayment,
			Points:      -alloc.PointsToUse,
			Reference:   p.Reference,
			Description: p.Description,
		})
		if err != nil {
			return alloc, fmt.Errorf("failed to debit points: %w", err)
		}
	}
	if alloc.WalletAmount.IsPositive() {
		_, err := q.ApplyWalletTransaction(ctx, store.WalletTxParams{
			UserId:      p.UserId,
			RentalId:    p.RentalId,
			Type:        models.TxTypeRentalPayment,
			Amount:      alloc.WalletAmount.Neg(),
			Reference:   p.Reference,
			Description: p.Description,
		})
		if err != nil {
			return alloc, fmt.Errorf("failed to debit wallet: %w", err)
		}
	}

	zap.L().Info("Rental charge collected",
		zap.String("user_id", p.UserId),
		zap.String("rental_id", p.RentalId),
		zap.String("amount", alloc.Required.String()),
		zap.Int64("points_used", alloc.PointsToUse),
		zap.String("wallet_amount", alloc.WalletAmount.String()),
		zap.String("reference", p.Reference))

	return alloc, nil
}

// Refund returns everything debited for a rental to the ledger it came from.
func Refund(ctx context.Context, q store.Queries, userId, rentalId, reference string) (decimal.Decimal, int64, error) {
	wallet, points, err := q.SumRentalDebits(ctx, rentalId)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to total rental debits: %w", err)
	}

	if points > 0 {
		_, err := q.ApplyPointsTransaction(ctx, store.PointsTxParams{
			UserId:      userId,
			RentalId:    rentalId,
			Type:        models.TxTypeRefund,
			Points:      points,
			Reference:   reference,
			Description: "rental cancelled",
		})
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to refund points: %w", err)
		}
	}
	if wallet.IsPositive() {
		_, err := q.ApplyWalletTransaction(ctx, store.WalletTxParams{
			UserId:      userId,
			RentalId:    rentalId,
			Type:        models.TxTypeRefund,
			Amount:      wallet,
			Reference:   reference,
			Description: "rental cancelled",
		})
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to refund wallet: %w", err)
		}
	}

	return wallet, points, nil
}

// InsufficientFunds converts an insufficient allocation into a categorized error.
func InsufficientFunds(alloc models.Allocation) *store.Error {
	return store.Errorf(store.KindInsufficientFunds, "balance short by %s", alloc.Shortfall.StringFixed(2)).
		WithDetail("required", alloc.Required.StringFixed(2)).
		WithDetail("shortfall", alloc.Shortfall.StringFixed(2)).
		WithDetail("suggested_top_up", alloc.SuggestedTopUp.StringFixed(2))
}

func errInvalidConfig(format string, args ...any) error {
	return store.Invalid(format, args...)
}
