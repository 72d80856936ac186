package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the gate state, the connected vehicle and both barriers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st controller.Status) {
	summary := uitable.New()
	summary.AddRow("STATE:", st.State)
	summary.AddRow("CONTEXT:", st.Context)
	summary.AddRow("SESSION:", sessionLabel(st))
	summary.AddRow("BRIDGE:", bridgeLabel(st))
	if v := st.Vehicle; v != nil {
		summary.AddRow("VEHICLE:", fmt.Sprintf("%s (tag %d, %s, prefers %s)", v.ID, v.Tag, v.Class, v.Preferred))
	}
	fmt.Fprintln(w, summary)
	fmt.Fprintln(w)

	gates := uitable.New()
	gates.AddRow("GATE", "PHASE", "TARGET", "ANGLE", "OPEN", "PASSAGE", "DISTANCE", "LAST OPENED")
	for _, g := range st.Gates {
		gates.AddRow(g.Gate, g.Phase, g.TargetAngle, g.CurrentAngle, g.Open, g.PassageConfirmed,
			distanceLabel(g.Distance), lastOpenedLabel(g.LastOpened))
	}
	fmt.Fprintln(w, gates)
}

func sessionLabel(st controller.Status) string {
	if st.SessionID == 0 {
		return st.Session
	}
	return fmt.Sprintf("%s #%d %s", st.Session, st.SessionID, st.Peer)
}

func bridgeLabel(st controller.Status) string {
	switch {
	case !st.BridgeEnabled:
		return "disabled"
	case st.BridgeOnline:
		return "online"
	default:
		return "offline"
	}
}

func distanceLabel(d int) string {
	if d == core.NoObject {
		return "-"
	}
	return strconv.Itoa(d)
}

func lastOpenedLabel(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.TimeOnly)
}
