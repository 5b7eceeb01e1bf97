package cli

import (
	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
)

var (
	ingestDryRun bool
	ingestNotify bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [snapshot.csv ...]",
	Short: "Ingest snapshot files once (defaults to snapshot.path)",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.IngestOptions{
			Paths:  args,
			DryRun: ingestDryRun,
			Notify: ingestNotify,
		}
		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Classify and summarise without writing to storage")
	ingestCmd.Flags().BoolVar(&ingestNotify, "notify", false, "Send the digest after ingesting")
}
