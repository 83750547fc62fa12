package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type SyncOptions struct {
	SchemaDir string
	BatchSize int
	Once      bool
	DryRun    bool
}

func NewSyncCmd(global *GlobalOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Poll the catalog and upsert changed documents",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaDir, "schema-dir", "", "Directory with collection schema overrides")
	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Rows per stream per iteration (overrides config)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Sync until nothing is left, then exit")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Extract and transform one iteration without writing")

	return cmd
}
