package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var (
	analyzeHistory historyFlags
	analyzeTarget  float64
	analyzeHorizon int
	analyzeDegree  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Forecast a product's price and the chance of reaching a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeHistory.product == "" {
			return fmt.Errorf("--product must be provided")
		}

		opts := app.AnalyzeOptions{
			History:     analyzeHistory.options(),
			HorizonDays: analyzeHorizon,
			Degree:      analyzeDegree,
		}
		if cmd.Flags().Changed("target") {
			if err := checkTarget(analyzeTarget); err != nil {
				return err
			}
			opts.Target = &analyzeTarget
		}

		return getApp().Analyze(cmd.Context(), opts)
	},
}

func checkTarget(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("--target must be a finite price greater than zero, got %v", v)
	}
	return nil
}

func init() {
	analyzeHistory.register(analyzeCmd, true)
	analyzeCmd.Flags().Float64Var(&analyzeTarget, "target", 0, "Target promo price for the drop probability")
	analyzeCmd.Flags().IntVar(&analyzeHorizon, "horizon", 0, "Forecast horizon in days (defaults to config)")
	analyzeCmd.Flags().IntVar(&analyzeDegree, "degree", 0, "Polynomial degree (defaults to config)")
}
