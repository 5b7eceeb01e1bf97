package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/app"
)

var (
	topHistory historyFlags
	topLimit   int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank products by how often they were a good deal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if topLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		opts := app.TopOptions{
			History: topHistory.options(),
			Limit:   topLimit,
		}
		return getApp().Top(cmd.Context(), opts)
	},
}

func init() {
	topHistory.register(topCmd, false)
	topCmd.Flags().IntVar(&topLimit, "limit", analysis.DefaultTopProducts, "Number of products to display")
}
