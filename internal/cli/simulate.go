package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var (
	simulateSKU     string
	simulateName    string
	simulateCurrent float64
	simulateRegular float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-deal",
	Short: "Run one cycle against a synthetic product to exercise notification channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCurrent <= 0 || simulateRegular <= 0 {
			return errors.New("--current and --regular must be greater than zero")
		}

		opts := app.SimulateOptions{
			SKU:          simulateSKU,
			Name:         simulateName,
			CurrentPrice: decimal.NewFromFloat(simulateCurrent),
			RegularPrice: decimal.NewFromFloat(simulateRegular),
		}

		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSKU, "sku", "0000000", "Synthetic product SKU")
	simulateCmd.Flags().StringVar(&simulateName, "name", "Synthetic Test Product", "Synthetic product name")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Current sale price")
	simulateCmd.Flags().Float64Var(&simulateRegular, "regular", 0, "Regular list price")
}
