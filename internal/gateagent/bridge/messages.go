package bridge

import (
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
)

// AuthRequest asks the policy service whether a vehicle may enter.
type AuthRequest struct {
	VehicleID   string `json:"vehicle_id"`
	TagID       uint8  `json:"tag_id"`
	Elec        bool   `json:"elec"`
	Disabled    bool   `json:"disabled"`
	Preferred   string `json:"preferred"`
	Destination uint8  `json:"destination"`
}

func newAuthRequest(r vehicle.Record) AuthRequest {
	return AuthRequest{
		VehicleID:   r.ID,
		TagID:       r.Tag,
		Elec:        r.Class == vehicle.ClassElectric,
		Disabled:    r.Accessible,
		Preferred:   r.Preferred.String(),
		Destination: r.Destination,
	}
}

// ExitRequest announces a leaving vehicle.
type ExitRequest struct {
	TagID uint8 `json:"tag_id"`
}

// BarrierEvent reports a barrier movement, currently only closure after passage.
type BarrierEvent struct {
	Gate  string `json:"gate"`
	State string `json:"state"`
}

// BarrierCommand is received from the policy service.
type BarrierCommand struct {
	Gate   string `json:"gate"`
	Action string `json:"action"`
}

func (c BarrierCommand) parse() (core.Gate, core.Action, error) {
	g, err := core.ParseGate(c.Gate)
	if err != nil {
		return 0, core.ActionNone, err
	}
	a, err := core.ParseAction(c.Action)
	if err != nil {
		return 0, core.ActionNone, err
	}
	return g, a, nil
}

// Status is the retained liveness record of this gate.
type Status struct {
	Online    bool  `json:"online"`
	Timestamp int64 `json:"timestamp"`
}
