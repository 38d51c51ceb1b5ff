package cli

import (
	"github.com/spf13/cobra"

	"fx-rate-alerts/internal/app"
)

var (
	bootstrapDays   int
	bootstrapForce  bool
	bootstrapDryRun bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed series from daily history so signals work immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BootstrapOptions{
			Days:   bootstrapDays,
			Force:  bootstrapForce,
			DryRun: bootstrapDryRun,
		}
		return getApp().Bootstrap(cmd.Context(), opts)
	},
}

func init() {
	bootstrapCmd.Flags().IntVar(&bootstrapDays, "days", 0, "Days of history to fetch (defaults to the long window)")
	bootstrapCmd.Flags().BoolVar(&bootstrapForce, "force", false, "Overwrite series that are already at capacity")
	bootstrapCmd.Flags().BoolVar(&bootstrapDryRun, "dry-run", false, "Fetch and report without writing to storage")
}
