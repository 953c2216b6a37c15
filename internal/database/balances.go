package database

import (
	"context"
	"errors"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func errorsIsDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicateTransaction)
}

// GetWalletBalance returns the current wallet balance (O(1) lookup)
func (q *Queries) GetWalletBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	zap.L().Debug("Getting wallet balance", zap.String("user_id", userId))

	var balance decimal.Decimal
	err := q.db.QueryRowContext(ctx, queryGetWalletBalance, userId).Scan(&balance)
	if isNoRows(err) {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get wallet balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return balance, nil
}

func (q *Queries) GetPointsBalance(ctx context.Context, userId string) (int64, error) {
	var points int64
	err := q.db.QueryRowContext(ctx, queryGetPointsBalance, userId).Scan(&points)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get points balance", zap.String("user_id", userId), zap.Error(err))
		return 0, fmt.Errorf("failed to get points balance: %w", err)
	}
	return points, nil
}

// GetWalletBalanceDetail returns the full rollup row, or a zero row for a
// user who never transacted.
func (s *Service) GetWalletBalanceDetail(ctx context.Context, userId string) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	err := s.db.QueryRowContext(ctx, queryGetWalletBalanceDetail, userId).Scan(&balance.Id, &balance.UserId,
		&balance.Balance, &balance.LastTransactionId, &balance.Version, &balance.UpdatedAt)
	if isNoRows(err) {
		return &models.WalletBalance{UserId: userId, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance detail: %w", err)
	}
	return &balance, nil
}

// ReconcileWallet verifies that the wallet rollup matches the sum of its log
func (s *Service) ReconcileWallet(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling wallet", zap.String("user_id", userId))

	currentBalance, err := s.GetWalletBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryWalletAmountsForUser, userId)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}
	defer closeRows(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return fmt.Errorf("failed to scan wallet amount: %w", err)
		}
		calculatedBalance = calculatedBalance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating wallet amounts: %w", err)
	}

	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Wallet reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("wallet mismatch: current=%s, calculated=%s", currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", currentBalance.String()))
	return nil
}

// ReconcilePoints verifies that the points rollup matches the sum of its log
func (s *Service) ReconcilePoints(ctx context.Context, userId string) error {
	current, err := s.GetPointsBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current points: %w", err)
	}

	var calculated int64
	if err := s.db.QueryRowContext(ctx, queryReconcilePoints, userId).Scan(&calculated); err != nil {
		return fmt.Errorf("failed to calculate points from transactions: %w", err)
	}

	if current != calculated {
		zap.L().Error("Points reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("current_points", current),
			zap.Int64("calculated_points", calculated))
		return fmt.Errorf("points mismatch: current=%d, calculated=%d", current, calculated)
	}

	zap.L().Info("Points reconciliation successful", zap.String("user_id", userId), zap.Int64("points", current))
	return nil
}
