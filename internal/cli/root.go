package cli

import (
	"github.com/spf13/cobra"
)

// GlobalOptions are shared by every sub-command.
type GlobalOptions struct {
	ConfigFile string
}

func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "cinesync",
		Short: "cinesync - incremental sync of the film catalog into MongoDB",
		Long: `cinesync keeps the search collections in MongoDB in step with the
relational film catalog. Films, genres and people are polled by modification
time and upserted as denormalized documents.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to a TOML config file")

	rootCmd.AddCommand(NewSyncCmd(opts), NewStatusCmd(opts), NewResetCmd(opts))

	return rootCmd
}
