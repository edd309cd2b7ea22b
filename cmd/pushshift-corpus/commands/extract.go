package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/pushshift-corpus/engine/corpus"
)

func newExtractCmd(a *app) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "extract [--in <long.csv>] [--out <comments.txt>]",
		Short: "Writes the comment_body column of the long CSV to a text file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				in = a.cfg.CSVPath()
			}
			if out == "" {
				out = a.cfg.TextPath()
			}
			return a.extract(in, out)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "long CSV to read (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "text file to write (default from config)")
	return cmd
}

func (a *app) extract(in, out string) error {
	n, err := corpus.Extract(in, out)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	a.logger.Info("extract complete", "comments", n, "in", in, "out", out)
	return nil
}
