package database

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// ApplyWalletTransaction appends one signed wallet movement and moves the
// balance rollup with it. The rollup update is guarded by its version so a
// concurrent writer surfaces as store.ErrConcurrentModification.
func (q *Queries) ApplyWalletTransaction(ctx context.Context, params store.WalletTxParams) (*models.WalletTransaction, error) {
	if params.Reference == "" {
		return nil, store.Invalid("wallet transaction reference is required")
	}
	if params.Amount.IsZero() {
		return nil, store.Invalid("wallet transaction amount must be non-zero")
	}

	zap.L().Info("Processing wallet transaction",
		zap.String("user_id", params.UserId),
		zap.String("type", params.Type),
		zap.String("amount", params.Amount.String()),
		zap.String("reference", params.Reference))

	var existingTxId string
	err := q.db.QueryRowContext(ctx, queryCheckDuplicateWalletReference, params.Reference).Scan(&existingTxId)
	if err == nil {
		zap.L().Warn("Duplicate wallet reference detected, skipping",
			zap.String("reference", params.Reference),
			zap.String("existing_tx_id", existingTxId))
		return nil, fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, params.Reference)
	} else if !isNoRows(err) {
		return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}

	now := nowUTC()

	var accountId string
	var currentBalance decimal.Decimal
	var version int64
	err = q.db.QueryRowContext(ctx, queryGetWalletBalanceRow, params.UserId).Scan(&accountId, &currentBalance, &version)
	if isNoRows(err) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1
		if _, err := q.db.ExecContext(ctx, queryInsertWalletBalance, accountId, params.UserId, now); err != nil {
			return nil, fmt.Errorf("failed to create wallet balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current wallet balance: %w", err)
	}

	newBalance := currentBalance.Add(params.Amount)
	if newBalance.IsNegative() {
		return nil, store.Errorf(store.KindInsufficientFunds, "wallet balance %s cannot cover %s",
			currentBalance.StringFixed(2), params.Amount.Neg().StringFixed(2))
	}

	transaction := &models.WalletTransaction{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		RentalId:      params.RentalId,
		Type:          params.Type,
		Amount:        params.Amount,
		BalanceBefore: currentBalance,
		BalanceAfter:  newBalance,
		Reference:     params.Reference,
		Description:   params.Description,
		CreatedAt:     now,
	}

	_, err = q.db.ExecContext(ctx, queryInsertWalletTransaction,
		transaction.Id, transaction.UserId, transaction.RentalId, transaction.Type,
		transaction.Amount.String(), transaction.BalanceBefore.String(), transaction.BalanceAfter.String(),
		transaction.Reference, transaction.Description, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}

	result, err := q.db.ExecContext(ctx, queryUpdateWalletBalance, newBalance.String(), transaction.Id, now, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("wallet balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := q.addJournalEntries(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Info("Wallet transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", params.UserId),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

// addJournalEntries books the wallet movement against the matching system
// account. Credits to the wallet raise what is owed to the user; debits move
// money into rental revenue.
func (q *Queries) addJournalEntries(ctx context.Context, transaction *models.WalletTransaction) error {
	userAccount := fmt.Sprintf("wallet_%s", transaction.UserId)
	amount := transaction.Amount.Abs()

	var counterpart string
	switch transaction.Type {
	case models.TxTypeTopUp:
		counterpart = "user_funds"
	case models.TxTypeRentalPayment, models.TxTypeRefund:
		counterpart = "rental_revenue"
	default:
		counterpart = "adjustments"
	}

	var entries []journalEntry
	if transaction.Amount.IsPositive() {
		entries = []journalEntry{
			{"user_wallet", userAccount, amount, decimal.Zero},
			{"system_liability", counterpart, decimal.Zero, amount},
		}
	} else {
		entries = []journalEntry{
			{"user_wallet", userAccount, decimal.Zero, amount},
			{"system_liability", counterpart, amount, decimal.Zero},
		}
	}

	for _, entry := range entries {
		_, err := q.db.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String(), transaction.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyPointsTransaction is the points counterpart of ApplyWalletTransaction.
func (q *Queries) ApplyPointsTransaction(ctx context.Context, params store.PointsTxParams) (*models.PointsTransaction, error) {
	if params.Reference == "" {
		return nil, store.Invalid("points transaction reference is required")
	}
	if params.Points == 0 {
		return nil, store.Invalid("points transaction must be non-zero")
	}

	var existingTxId string
	err := q.db.QueryRowContext(ctx, queryCheckDuplicatePointsReference, params.Reference).Scan(&existingTxId)
	if err == nil {
		zap.L().Warn("Duplicate points reference detected, skipping",
			zap.String("reference", params.Reference),
			zap.String("existing_tx_id", existingTxId))
		return nil, fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, params.Reference)
	} else if !isNoRows(err) {
		return nil, fmt.Errorf("failed to check for duplicate points transaction: %w", err)
	}

	now := nowUTC()

	var accountId string
	var current, version int64
	err = q.db.QueryRowContext(ctx, queryGetPointsBalanceRow, params.UserId).Scan(&accountId, &current, &version)
	if isNoRows(err) {
		accountId = uuid.New().String()
		current = 0
		version = 1
		if _, err := q.db.ExecContext(ctx, queryInsertPointsBalance, accountId, params.UserId, now); err != nil {
			return nil, fmt.Errorf("failed to create points balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current points balance: %w", err)
	}

	updated := current + params.Points
	if updated < 0 {
		return nil, store.Errorf(store.KindInsufficientFunds, "points balance %d cannot cover %d", current, -params.Points)
	}

	transaction := &models.PointsTransaction{
		Id:           uuid.New().String(),
		UserId:       params.UserId,
		RentalId:     params.RentalId,
		Type:         params.Type,
		Points:       params.Points,
		PointsBefore: current,
		PointsAfter:  updated,
		Reference:    params.Reference,
		Description:  params.Description,
		CreatedAt:    now,
	}

	_, err = q.db.ExecContext(ctx, queryInsertPointsTransaction,
		transaction.Id, transaction.UserId, transaction.RentalId, transaction.Type,
		transaction.Points, transaction.PointsBefore, transaction.PointsAfter,
		transaction.Reference, transaction.Description, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert points transaction: %w", err)
	}

	result, err := q.db.ExecContext(ctx, queryUpdatePointsBalance, updated, transaction.Id, now, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update points balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("points balance update failed - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Points transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", params.UserId),
		zap.Int64("old_points", current),
		zap.Int64("new_points", updated))

	return transaction, nil
}

// ProcessWalletTransaction applies a single wallet movement in its own
// transaction. Used for top-ups and manual adjustments.
func (s *Service) ProcessWalletTransaction(ctx context.Context, params store.WalletTxParams) (*models.WalletTransaction, error) {
	var transaction *models.WalletTransaction
	err := s.RunInTx(ctx, func(q store.Queries) error {
		var err error
		transaction, err = q.ApplyWalletTransaction(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// AwardPoints credits loyalty points once per reason. A repeated reason is a
// no-op.
func (s *Service) AwardPoints(ctx context.Context, userId string, points int64, reason string) error {
	if points <= 0 {
		return nil
	}
	err := s.RunInTx(ctx, func(q store.Queries) error {
		_, err := q.ApplyPointsTransaction(ctx, store.PointsTxParams{
			UserId:      userId,
			Type:        models.TxTypeReward,
			Points:      points,
			Reference:   reason,
			Description: "Loyalty reward",
		})
		return err
	})
	if errorsIsDuplicate(err) {
		zap.L().Debug("Points already awarded", zap.String("user_id", userId), zap.String("reason", reason))
		return nil
	}
	return err
}

// GetWalletHistory returns paginated wallet history for a user, newest first
func (q *Queries) GetWalletHistory(ctx context.Context, userId string, limit, offset int) ([]models.WalletTransaction, error) {
	zap.L().Debug("Getting wallet history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := q.db.QueryContext(ctx, queryGetWalletHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.WalletTransaction
	for rows.Next() {
		var tx models.WalletTransaction
		err := rows.Scan(&tx.Id, &tx.UserId, &tx.RentalId, &tx.Type,
			&tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter,
			&tx.Reference, &tx.Description, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during wallet transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating wallet transaction rows: %w", err)
	}

	return transactions, nil
}

// GetPointsHistory returns paginated points history for a user, newest first
func (q *Queries) GetPointsHistory(ctx context.Context, userId string, limit, offset int) ([]models.PointsTransaction, error) {
	rows, err := q.db.QueryContext(ctx, queryGetPointsHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get points history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.PointsTransaction
	for rows.Next() {
		var tx models.PointsTransaction
		err := rows.Scan(&tx.Id, &tx.UserId, &tx.RentalId, &tx.Type,
			&tx.Points, &tx.PointsBefore, &tx.PointsAfter,
			&tx.Reference, &tx.Description, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan points transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during points transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating points transaction rows: %w", err)
	}

	return transactions, nil
}

// SumRentalDebits totals what a rental has taken from each ledger, as
// positive numbers.
func (q *Queries) SumRentalDebits(ctx context.Context, rentalId string) (decimal.Decimal, int64, error) {
	rows, err := q.db.QueryContext(ctx, queryWalletDebitsForRental, rentalId)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum wallet debits: %w", err)
	}
	defer closeRows(rows)

	wallet := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to scan wallet debit: %w", err)
		}
		wallet = wallet.Sub(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, 0, fmt.Errorf("error iterating wallet debits: %w", err)
	}

	var points int64
	if err := q.db.QueryRowContext(ctx, queryPointsDebitsForRental, rentalId).Scan(&points); err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum points debits: %w", err)
	}

	return wallet, points, nil
}
