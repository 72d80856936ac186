package paths

// Topic segments for the parking barrier protocol.
// Every topic is {root}/{segment}/{gateID}; these constants are the contract
// between the gate agent and the authorization service.

// Upstream: Gate -> Policy service
const (
	// AuthRequest carries an entry authorization request.
	// Payload: { "vehicle_id": "...", "tag_id": 7, "elec": true, "disabled": false, "preferred": "elec", "destination": 1 }
	AuthRequest = "auth-request"

	// ExitRequest carries an exit authorization request.
	// Payload: { "tag_id": 7 }
	ExitRequest = "exit-request"

	// BarrierEvent reports physical barrier transitions.
	// Payload: { "gate": "entry", "state": "closed" }
	BarrierEvent = "barrier-event"

	// Status is the retained liveness export of the gate agent.
	// Payload: { "online": true, "timestamp": ... }
	Status = "status"

	// Ping is the liveness probe topic. Only the broker acknowledgement matters.
	Ping = "ping"
)

// Downstream: Policy service -> Gate
const (
	// BarrierCommand carries an authorization decision.
	// Payload: { "gate": "entry", "action": "open" }
	BarrierCommand = "barrier-command"
)
