package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openobserve/swisspipe-engine/pkg/queue"
)

var resubmitJobID string

// resubmitCmd clears a dead-lettered (or otherwise stuck) job back to
// pending so the Distributor picks it up again (spec.md §7: dead letter
// is terminal for automatic retry, but an operator can still resubmit).
var resubmitCmd = &cobra.Command{
	Use:   "resubmit",
	Short: "Reset a job to pending, e.g. to retry one cleared from dead_letter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		return queue.New(st).ResetJob(ctx, resubmitJobID)
	},
}

func init() {
	resubmitCmd.Flags().StringVar(&resubmitJobID, "job-id", "", "job to reset to pending (required)")
	_ = resubmitCmd.MarkFlagRequired("job-id")
	rootCmd.AddCommand(resubmitCmd)
}
