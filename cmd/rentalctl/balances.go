/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/common"
	"powerbank-rental-go/internal/database"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers      int
	usersWithFunds  int
	totalWallet     decimal.Decimal
	totalPoints     int64
	reconcileErrors int
}

var (
	balancesEmail  string
	reconcileEmail string
	topUpEmail     string
	topUpAmount    string
	topUpReference string
)

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printUserBalances(ctx context.Context, user common.UserInfo, db *database.Service, stats *balanceStats) error {
	wallet, err := db.GetWalletBalanceDetail(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}
	points, err := db.GetPointsBalance(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get points: %w", err)
	}

	fmt.Printf("\n┌─ User: %s (%s) [%s]\n", user.Name, user.Email, user.Role)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("%s Wallet: %12s (v%d, last_tx: %s, updated: %s)\n",
		common.BoxPrefix(false),
		common.Money(wallet.Balance),
		wallet.Version,
		formatTransactionId(wallet.LastTransactionId),
		wallet.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s Points: %12d\n", common.BoxPrefix(true), points)

	stats.totalWallet = stats.totalWallet.Add(wallet.Balance)
	stats.totalPoints += points
	if wallet.Balance.IsPositive() || points > 0 {
		stats.usersWithFunds++
	}
	return nil
}

// balancesCmd prints wallet and points rollups per user
var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print wallet and points balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := common.InitializeUsers(ctx, db, balancesEmail, logger)
		if err != nil {
			return err
		}

		common.PrintHeader("USER BALANCE REPORT")
		stats := balanceStats{totalWallet: decimal.Zero}
		for _, user := range users {
			stats.totalUsers++
			if err := printUserBalances(ctx, user, db, &stats); err != nil {
				logger.Error("Failed to process user",
					zap.String("user_id", user.Id),
					zap.String("user_name", user.Name),
					zap.Error(err))
			}
		}

		summary := fmt.Sprintf("SUMMARY: %d of %d users hold funds (wallets %s, points %d)",
			stats.usersWithFunds, stats.totalUsers, common.Money(stats.totalWallet), stats.totalPoints)
		common.PrintFooter(summary)
		return nil
	},
}

// reconcileCmd checks every rollup against the sum of its ledger
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Verify wallet and points rollups against their ledgers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := common.InitializeUsers(ctx, db, reconcileEmail, logger)
		if err != nil {
			return err
		}

		common.PrintHeader("LEDGER RECONCILIATION")
		stats := balanceStats{}
		for i, user := range users {
			last := i == len(users)-1
			walletErr := db.ReconcileWallet(ctx, user.Id)
			pointsErr := db.ReconcilePoints(ctx, user.Id)
			if walletErr == nil && pointsErr == nil {
				fmt.Printf("%s✓ %s\n", common.BoxPrefix(last), user.Email)
				continue
			}
			stats.reconcileErrors++
			fmt.Printf("%s✗ %s\n", common.BoxPrefix(last), user.Email)
			for _, err := range []error{walletErr, pointsErr} {
				if err != nil {
					fmt.Printf("%s  %v\n", common.BoxDetailPrefix(last), err)
				}
			}
		}

		common.PrintFooter(fmt.Sprintf("%d users checked, %d mismatched", len(users), stats.reconcileErrors))
		if stats.reconcileErrors > 0 {
			return fmt.Errorf("%d ledgers do not match their rollups", stats.reconcileErrors)
		}
		return nil
	},
}

// topUpCmd records a settled payment into a user's wallet
var topUpCmd = &cobra.Command{
	Use:   "topup",
	Short: "Credit a confirmed payment to a user's wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		amount, err := decimal.NewFromString(topUpAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", topUpAmount, err)
		}

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := lookupUser(ctx, db, topUpEmail)
		if err != nil {
			return err
		}

		tx, err := newRentalService(db).TopUp(ctx, user.Id, amount, topUpReference)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Credited %s to %s (balance %s, reference %s)\n",
			common.Money(tx.Amount), user.Email, common.Money(tx.BalanceAfter), tx.Reference)
		return nil
	},
}

func init() {
	balancesCmd.Flags().StringVar(&balancesEmail, "email", "", "Filter by specific user email (optional)")
	reconcileCmd.Flags().StringVar(&reconcileEmail, "email", "", "Filter by specific user email (optional)")

	topUpCmd.Flags().StringVar(&topUpEmail, "email", "", "Email of the user to credit")
	topUpCmd.Flags().StringVar(&topUpAmount, "amount", "", "Amount to credit")
	topUpCmd.Flags().StringVar(&topUpReference, "reference", "", "Payment reference, e.g. payment:<provider id>")
	_ = topUpCmd.MarkFlagRequired("email")
	_ = topUpCmd.MarkFlagRequired("amount")
	_ = topUpCmd.MarkFlagRequired("reference")
}
