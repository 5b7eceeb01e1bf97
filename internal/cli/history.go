package cli

import (
	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

// historyFlags are shared by the analysis commands.
type historyFlags struct {
	product   string
	sizes     []string
	gender    string
	tiers     []string
	days      int
	snapshots string
}

func (h *historyFlags) register(cmd *cobra.Command, withProduct bool) {
	if withProduct {
		cmd.Flags().StringVar(&h.product, "product", "", "Product ID")
	}
	cmd.Flags().StringSliceVar(&h.sizes, "size", nil, "Restrict to sizes (repeatable)")
	cmd.Flags().StringVar(&h.gender, "gender", "", "Restrict to gender (women, men, kids, baby)")
	cmd.Flags().StringSliceVar(&h.tiers, "tier", nil, "Restrict to deal tiers (repeatable)")
	cmd.Flags().IntVar(&h.days, "days", 0, "Only use the trailing N days of history")
	cmd.Flags().StringVar(&h.snapshots, "snapshots", "", "Glob of CSV snapshots to analyse instead of the database")
}

func (h *historyFlags) options() app.HistoryOptions {
	return app.HistoryOptions{
		ProductID: h.product,
		Sizes:     h.sizes,
		Gender:    h.gender,
		Tiers:     h.tiers,
		Days:      h.days,
		Snapshots: h.snapshots,
	}
}
