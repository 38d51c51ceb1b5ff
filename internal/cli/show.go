package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fx-rate-alerts/internal/app"
)

var (
	showAlerts bool
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display per-symbol watcher status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Alerts: showAlerts,
			Limit:  showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show recent alerts instead of series status")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display with --alerts")
}
