package controller

import (
	"time"

	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
)

// State is the supervisory state reported to operators.
type State string

const (
	StateBooting           State = "BOOTING"
	StateInitializing      State = "INITIALIZING"
	StateIdle              State = "IDLE"
	StateAdvertising       State = "ADVERTISING"
	StateVehicleConnected  State = "VEHICLE_CONNECTED"
	StateReadyReceived     State = "READY_RECEIVED"
	StateEntryInfoReceived State = "ENTRY_INFO_RECEIVED"
	StateExitInfoReceived  State = "EXIT_INFO_RECEIVED"
	StateEntryCompleted    State = "ENTRY_COMPLETED"
	StateExitCompleted     State = "EXIT_COMPLETED"
)

// GateStatus is the view of one barrier.
type GateStatus struct {
	Gate             string     `json:"gate"`
	Phase            string     `json:"phase"`
	TargetAngle      int        `json:"targetAngle"`
	CurrentAngle     int        `json:"currentAngle"`
	Open             bool       `json:"open"`
	PassageConfirmed bool       `json:"passageConfirmed"`
	LastOpened       *time.Time `json:"lastOpened,omitempty"`
	Distance         int        `json:"distance"`
}

// Status is a point-in-time copy of the controller, safe to hand to other
// goroutines.
type Status struct {
	State         State           `json:"state"`
	Context       string          `json:"context"`
	Session       string          `json:"session"`
	SessionID     uint64          `json:"sessionId,omitempty"`
	Peer          string          `json:"peer,omitempty"`
	Vehicle       *vehicle.Record `json:"vehicle,omitempty"`
	BridgeEnabled bool            `json:"bridgeEnabled"`
	BridgeOnline  bool            `json:"bridgeOnline"`
	Gates         []GateStatus    `json:"gates"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
