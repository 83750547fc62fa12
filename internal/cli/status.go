package cli

import (
	"github.com/spf13/cobra"
)

func NewStatusCmd(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the committed watermark of every stream",
		RunE: func(c *cobra.Command, args []string) error {
			return runStatus(c.Context(), c.OutOrStdout(), global)
		},
	}
}
