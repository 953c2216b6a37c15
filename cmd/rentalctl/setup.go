package main

import (
	"fmt"

	"powerbank-rental-go/internal/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedFile string

// setupCmd creates the schema and applies the inventory seed file
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the database and load seed inventory",
	Long: `Creates the schema if needed and applies the YAML seed file: stations,
slots, power banks, rental packages and late fee configurations. Running it
again only adds what is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seed, err := common.LoadSeedConfig(seedFile)
		if err != nil {
			return err
		}
		logger.Info("Seed file loaded",
			zap.String("file", seedFile),
			zap.Int("stations", len(seed.Stations)),
			zap.Int("packages", len(seed.Packages)),
			zap.Int("late_fees", len(seed.LateFees)))

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := common.ApplySeed(ctx, db, seed)
		if err != nil {
			return fmt.Errorf("failed to apply seed: %w", err)
		}

		common.PrintHeader("SETUP COMPLETE")
		fmt.Printf("Stations refreshed:   %d\n", result.Stations)
		fmt.Printf("Slots refreshed:      %d\n", result.Slots)
		fmt.Printf("Power banks created:  %d\n", result.PowerBanks)
		fmt.Printf("Packages created:     %d\n", result.Packages)
		fmt.Printf("Late fees created:    %d\n", result.LateFees)
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&seedFile, "file", "seed.yaml", "Path to the seed file")
}
