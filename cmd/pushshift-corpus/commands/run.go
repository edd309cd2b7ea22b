package commands

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetches, then extracts the comment text from the fresh CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.fetch(cmd.Context())
			if err != nil {
				return err
			}
			return a.extract(sum.CSVPath, a.cfg.TextPath())
		},
	}
}
