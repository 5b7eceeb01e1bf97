package cli

import (
	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var seasonalHistory historyFlags

var seasonalCmd = &cobra.Command{
	Use:   "seasonal",
	Short: "Aggregate deals, discounts and prices per calendar week and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Seasonal(cmd.Context(), app.SeasonalOptions{History: seasonalHistory.options()})
	},
}

func init() {
	seasonalHistory.register(seasonalCmd, false)
}
