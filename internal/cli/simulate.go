package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"fx-rate-alerts/internal/app"
)

var (
	simulateSymbol string
	simulatePrice  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次报价并触发告警流程",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSymbol == "" {
			return errors.New("--symbol 必须提供")
		}
		if simulatePrice <= 0 {
			return errors.New("--price 必须大于 0")
		}

		opts := app.SimulateOptions{
			Symbol: simulateSymbol,
			Price:  simulatePrice,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "目标币种, 如 USD 或 JPY(100)")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "注入的 KRW 报价")
}
