// Package cmd implements the swisspipe-engine CLI: serve, worker,
// migrate, enqueue, and resubmit subcommands sharing one set of
// --store-driver/--store-dsn and tuning flags (spec.md §10.3). Grounded
// on 88lin-divinesense/cmd/divinesense/main.go's cobra+viper wiring,
// generalized from one monolithic Run func into one cobra.Command per
// subcommand named in spec.md §10.3.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openobserve/swisspipe-engine/pkg/config"
)

// cfg is resolved once in PersistentPreRunE and read by every subcommand.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "swisspipe-engine",
	Short: "Durable workflow automation execution engine",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg = config.Load()
		return nil
	},
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
}

// Execute runs the root command under ctx, which carries the process's
// shutdown signal for serve/worker to select on.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
