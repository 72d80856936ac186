package app

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/autogate/internal/gateagent/protocol"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
)

type vehicleOptions struct {
	linkPath string
	wait     time.Duration

	id          string
	tag         uint8
	electric    bool
	accessible  bool
	preferred   string
	destination uint8
	mac         string
}

func parseSpot(s string) (vehicle.Spot, error) {
	for _, spot := range []vehicle.Spot{vehicle.SpotNormal, vehicle.SpotDisabled, vehicle.SpotElectric} {
		if spot.String() == s {
			return spot, nil
		}
	}
	return vehicle.SpotNormal, fmt.Errorf("unknown spot %q", s)
}

func (o *vehicleOptions) entryRecord() (vehicle.Record, error) {
	r := vehicle.Record{
		ID:          o.id,
		Tag:         o.tag,
		Accessible:  o.accessible,
		Destination: o.destination,
	}
	if o.electric {
		r.Class = vehicle.ClassElectric
	}

	spot, err := parseSpot(o.preferred)
	if err != nil {
		return r, err
	}
	r.Preferred = spot

	if o.mac != "" {
		if r.PeerAddr, err = net.ParseMAC(o.mac); err != nil {
			return r, err
		}
	}
	return r, nil
}

// newVehicleCommand simulates a vehicle driving up to the gate. The agent
// only accepts the link while something is within approach range, so with
// the simulated HAL set the sensor first.
func newVehicleCommand(opts *rootOptions) *cobra.Command {
	vo := &vehicleOptions{}

	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Act as a vehicle on the gate link",
	}
	cmd.PersistentFlags().StringVar(&vo.linkPath, "link-path", "/link", "Path of the link endpoint on the agent.")
	cmd.PersistentFlags().DurationVar(&vo.wait, "wait", 3*time.Second, "How long to wait for the gate's info request.")
	cmd.PersistentFlags().StringVar(&vo.id, "id", "AB12", "Vehicle identifier.")
	cmd.PersistentFlags().Uint8Var(&vo.tag, "tag", 1, "Access tag number.")

	entry := &cobra.Command{
		Use:     "entry",
		Short:   "Request entry",
		Example: "  gatectl sim distance entry 10 && gatectl vehicle entry --id AB12 --tag 7 --electric --preferred elec",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := vo.entryRecord()
			if err != nil {
				return err
			}
			payload := vehicle.EncodeEntry(r)
			if err := opts.client().Present(cmd.Context(), vo.linkPath, protocol.CmdEntryInfo, payload, vo.wait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry info sent for %s\n", r.ID)
			return nil
		},
	}
	entry.Flags().BoolVar(&vo.electric, "electric", false, "The vehicle is electric.")
	entry.Flags().BoolVar(&vo.accessible, "accessible", false, "The driver needs an accessible spot.")
	entry.Flags().StringVar(&vo.preferred, "preferred", "normal", "Preferred spot: normal, disabled or elec.")
	entry.Flags().Uint8Var(&vo.destination, "destination", 0, "Destination code, 0 to 2.")
	entry.Flags().StringVar(&vo.mac, "mac", "", "Vehicle hardware address.")

	exit := &cobra.Command{
		Use:   "exit",
		Short: "Request exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := vehicle.Record{ID: vo.id, Tag: vo.tag}
			if err := opts.client().Present(cmd.Context(), vo.linkPath, protocol.CmdExitInfo, vehicle.EncodeExit(r), vo.wait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exit info sent for %s\n", r.ID)
			return nil
		},
	}

	cmd.AddCommand(entry, exit)
	return cmd
}
