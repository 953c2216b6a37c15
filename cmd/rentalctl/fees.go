package main

import (
	"fmt"

	"powerbank-rental-go/internal/common"
	"powerbank-rental-go/internal/rental"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	previewConfigId  string
	previewPackageId string
	previewRate      string
	previewMinutes   int64
)

// feePreviewCmd prints the late fee a hypothetical overdue rental would pay
var feePreviewCmd = &cobra.Command{
	Use:   "fee-preview",
	Short: "Preview the late fee for a number of overdue minutes",
	Long: `Runs the late fee formula without touching any rental. The formula comes
from --config, or from the active configuration when omitted. The per-minute
rate comes from --package or --rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		req := rental.PreviewRequest{
			ConfigId:       previewConfigId,
			PackageId:      previewPackageId,
			OverdueMinutes: previewMinutes,
		}
		if previewRate != "" {
			rate, err := decimal.NewFromString(previewRate)
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", previewRate, err)
			}
			req.RatePerMinute = rate
		}

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		preview, err := newRentalService(db).PreviewLateFee(ctx, req)
		if err != nil {
			return err
		}

		common.PrintHeader("LATE FEE PREVIEW")
		fmt.Printf("Fee type:          %s\n", preview.FeeType)
		fmt.Printf("Overdue minutes:   %d\n", preview.OverdueMinutes)
		fmt.Printf("Billable minutes:  %d\n", preview.EffectiveMinutes)
		fmt.Printf("Rate per minute:   %s\n", preview.RatePerMinute.StringFixed(4))
		fmt.Printf("Fee:               %s\n", common.Money(preview.Fee))
		return nil
	},
}

func init() {
	feePreviewCmd.Flags().StringVar(&previewConfigId, "config", "", "Late fee configuration id (default: active)")
	feePreviewCmd.Flags().StringVar(&previewPackageId, "package", "", "Package whose rate applies")
	feePreviewCmd.Flags().StringVar(&previewRate, "rate", "", "Explicit rate per minute")
	feePreviewCmd.Flags().Int64Var(&previewMinutes, "overdue-minutes", 0, "Minutes past due")
	_ = feePreviewCmd.MarkFlagRequired("overdue-minutes")
}
