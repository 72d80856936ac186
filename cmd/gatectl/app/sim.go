package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSimCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Drive the simulated hardware of an agent started with --gate.hal=sim",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "distance <entry|exit> <cm>",
		Short:   "Set the range sensor reading of a gate",
		Example: "  gatectl sim distance entry 10\n  gatectl sim distance entry 999",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid distance %q: %w", args[1], err)
			}
			if err := opts.client().SetDistance(cmd.Context(), args[0], dist); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sensor: %d\n", args[0], dist)
			return nil
		},
	})
	return cmd
}
