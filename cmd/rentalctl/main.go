package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"powerbank-rental-go/internal/common"
	"powerbank-rental-go/internal/config"
	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/notify"
	"powerbank-rental-go/internal/rental"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg           *models.Config
	logger        *zap.Logger
	loggerCleanup = func() {}
)

// rootCmd is the operator CLI for the rental database
var rootCmd = &cobra.Command{
	Use:   "rentalctl",
	Short: "Operate the power bank rental database",
	Long: `rentalctl seeds inventory, registers users, credits wallets and inspects
ledgers directly against the rental database configured in the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, loggerCleanup = common.InitializeLogger()

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		loggerCleanup()
	},
}

func openDatabase(ctx context.Context) (*database.Service, error) {
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	return common.InitializeDatabaseOnly(ctx, cfg)
}

// newRentalService builds the rental core with log-only notifications.
func newRentalService(db *database.Service) *rental.Service {
	return rental.NewService(db, db, notify.NewLogNotifier(logger), cfg.Rental)
}

func lookupUser(ctx context.Context, db *database.Service, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("--email is required")
	}
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user %s not found: %w", email, err)
	}
	return user, nil
}

func main() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(topUpCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(feePreviewCmd)
	rootCmd.AddCommand(reconcileCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
