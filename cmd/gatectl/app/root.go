// Package app implements gatectl, the operator CLI of the gate agent.
package app

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	server  string
	timeout time.Duration
	json    bool
}

func defaultServer() string {
	if s := os.Getenv("GATECTL_SERVER"); s != "" {
		return s
	}
	return "http://127.0.0.1:8080"
}

func (o *rootOptions) client() *Client {
	return NewClient(o.server, o.timeout)
}

// NewCommand returns the gatectl root command.
func NewCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gatectl <command>",
		Short:         "Operate a parking gate agent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "Base URL of the gate agent operator API.")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Timeout of each API request.")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON instead of tables.")

	cmd.AddCommand(
		newStatusCommand(opts),
		newBarrierCommand(opts),
		newSimCommand(opts),
		newBridgeCommand(opts),
		newVehicleCommand(opts),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
