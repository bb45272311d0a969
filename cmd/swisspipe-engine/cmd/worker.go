package cmd

import (
	"github.com/spf13/cobra"
)

// workerCmd runs only the Distributor and Worker Pool, for horizontal
// scaling of execution throughput alongside a single `serve` process that
// owns the schedulers (spec.md §1 Non-goals).
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the distributor and worker pool only, for horizontal pool scaling",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd.Context(), false)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
