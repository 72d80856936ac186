package app

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
)

func newBridgeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Inspect the authorization bridge",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Stream bridge connectivity changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			return opts.client().WatchBridge(ctx, func(st bridge.Status) {
				if opts.json {
					_ = printJSON(w, st)
					return
				}
				state := "offline"
				if st.Online {
					state = "online"
				}
				fmt.Fprintf(w, "%s  %s\n", time.Unix(st.Timestamp, 0).Format(time.TimeOnly), state)
			})
		},
	})
	return cmd
}
