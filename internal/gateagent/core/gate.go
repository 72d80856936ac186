package core

import "fmt"

// Gate identifies one of the two barriers.
type Gate uint8

const (
	GateEntry Gate = iota
	GateExit
)

// Gates lists every barrier in index order.
var Gates = [...]Gate{GateEntry, GateExit}

func (g Gate) String() string {
	switch g {
	case GateEntry:
		return "entry"
	case GateExit:
		return "exit"
	default:
		return fmt.Sprintf("gate(%d)", uint8(g))
	}
}

// ParseGate accepts the names used on the bridge and the operator API.
func ParseGate(s string) (Gate, error) {
	switch s {
	case "entry":
		return GateEntry, nil
	case "exit":
		return GateExit, nil
	}
	return 0, fmt.Errorf("unknown gate %q", s)
}

// Action is a barrier command.
type Action uint8

const (
	ActionNone Action = iota
	ActionOpen
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return "none"
	}
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "open":
		return ActionOpen, nil
	case "close":
		return ActionClose, nil
	}
	return ActionNone, fmt.Errorf("unknown action %q", s)
}

// Source tells where a barrier command came from.
type Source uint8

const (
	SourceBridge Source = iota + 1
	SourceOperator
	SourceVehicle
	SourcePassage
)

func (s Source) String() string {
	switch s {
	case SourceBridge:
		return "bridge"
	case SourceOperator:
		return "operator"
	case SourceVehicle:
		return "vehicle"
	case SourcePassage:
		return "passage"
	default:
		return "unknown"
	}
}

// GateContext records which kind of transaction the connected vehicle started.
type GateContext uint8

const (
	ContextNone GateContext = iota
	ContextEntry
	ContextExit
)

func (c GateContext) String() string {
	switch c {
	case ContextEntry:
		return "entry"
	case ContextExit:
		return "exit"
	default:
		return "none"
	}
}

// Gate returns the barrier the context operates, and false for ContextNone.
func (c GateContext) Gate() (Gate, bool) {
	switch c {
	case ContextEntry:
		return GateEntry, true
	case ContextExit:
		return GateExit, true
	}
	return 0, false
}
