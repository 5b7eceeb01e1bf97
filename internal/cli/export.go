package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var (
	exportHistory   historyFlags
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a product's price history and forecast as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportHistory.product == "" {
			return fmt.Errorf("--product must be provided")
		}

		opts := app.ExportOptions{
			History:   exportHistory.options(),
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportHistory.register(exportCmd, true)
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
