package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBarrierCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "barrier <entry|exit> <open|close>",
		Short:     "Open or close a barrier by hand",
		Example:   "  gatectl barrier entry open",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"entry", "exit"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Barrier(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s barrier: %s staged\n", resp.Gate, resp.Action)
			return nil
		},
	}
}
