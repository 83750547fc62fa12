package cli

import (
	"github.com/spf13/cobra"
)

type ResetOptions struct {
	Stream string
	To     string
}

func NewResetCmd(global *GlobalOptions) *cobra.Command {
	opts := &ResetOptions{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Move a stream's watermark back so it is indexed again",
		Long: `reset rewrites the committed watermark of one stream, or of all of them
with --stream all. Without --to the stream starts over from the beginning.`,
		RunE: func(c *cobra.Command, args []string) error {
			return runReset(c.Context(), c.OutOrStdout(), global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Stream, "stream", "s", "", "films, genres, people or all")
	cmd.Flags().StringVar(&opts.To, "to", "", "New watermark (RFC3339); rows changed after it are synced again")
	cmd.MarkFlagRequired("stream")

	return cmd
}
