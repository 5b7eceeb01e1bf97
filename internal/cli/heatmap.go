package cli

import (
	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var (
	heatmapHistory historyFlags
	heatmapDrops   bool
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show when good deals and price drops appear by weekday and hour",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.HeatmapOptions{
			History: heatmapHistory.options(),
			Drops:   heatmapDrops,
		}
		return getApp().Heatmap(cmd.Context(), opts)
	},
}

func init() {
	heatmapHistory.register(heatmapCmd, true)
	heatmapCmd.Flags().BoolVar(&heatmapDrops, "drops", true, "Include sequential price-drop surfaces")
}
