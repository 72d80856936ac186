// Package session tracks the vehicle link: when to advertise, and which
// single connection is currently allowed to talk to the gate.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	fsmutil "github.com/autopeer-io/autogate/internal/pkg/util/fsm"
	"github.com/autopeer-io/autogate/pkg/log"
)

type State string

const (
	StateIdle        State = "idle"
	StateAdvertising State = "advertising"
	StateConnected   State = "connected"
)

const (
	eventAdvertise  = "advertise"
	eventQuiet      = "quiet"
	eventConnect    = "connect"
	eventDisconnect = "disconnect"
)

// Transport is the part of the peer link the manager drives.
type Transport interface {
	Advertise(on bool)
	Disconnect(id core.SessionID) error
}

// Manager owns the link session lifecycle:
//
//	idle -> advertising -> connected -> idle
//
// It is not safe for concurrent use; the control loop is its only caller.
type Manager struct {
	fsm       *fsm.FSM
	transport Transport
	grace     time.Duration

	lastProximity time.Time
	id            core.SessionID
	peer          string

	onChange func(from, to State)
	logger   log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithStateHook registers fn to run after every state change.
func WithStateHook(fn func(from, to State)) Option {
	return func(m *Manager) {
		m.onChange = fn
	}
}

// NewManager returns an idle manager. Advertising stops only after proximity
// has been absent for longer than grace.
func NewManager(t Transport, grace time.Duration, opts ...Option) *Manager {
	m := &Manager{
		transport: t,
		grace:     grace,
		logger:    log.WithName("session"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.fsm = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventAdvertise, Src: []string{string(StateIdle)}, Dst: string(StateAdvertising)},
			{Name: eventQuiet, Src: []string{string(StateAdvertising)}, Dst: string(StateIdle)},
			{Name: eventConnect, Src: []string{string(StateIdle), string(StateAdvertising)}, Dst: string(StateConnected)},
			{Name: eventDisconnect, Src: []string{string(StateConnected)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"before_" + eventConnect: fsmutil.WrapEvent(m.beforeConnect),
			"enter_" + string(StateAdvertising): func(_ context.Context, _ *fsm.Event) {
				m.transport.Advertise(true)
			},
			"leave_" + string(StateAdvertising): func(_ context.Context, _ *fsm.Event) {
				m.transport.Advertise(false)
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Info("Session state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
				if m.onChange != nil {
					m.onChange(State(e.Src), State(e.Dst))
				}
			},
		},
	)

	return m
}

func (m *Manager) beforeConnect(_ context.Context, e *fsm.Event) error {
	if len(e.Args) != 2 {
		return fmt.Errorf("connect needs a session id and peer")
	}
	m.id = e.Args[0].(core.SessionID)
	m.peer = e.Args[1].(string)
	return nil
}

func (m *Manager) State() State { return State(m.fsm.Current()) }

// Connected reports whether a vehicle session is live.
func (m *Manager) Connected() bool { return m.fsm.Is(string(StateConnected)) }

// Current returns the live session id and whether there is one.
func (m *Manager) Current() (core.SessionID, bool) {
	if !m.Connected() {
		return 0, false
	}
	return m.id, true
}

// Peer returns the remote address of the live session.
func (m *Manager) Peer() string {
	if !m.Connected() {
		return ""
	}
	return m.peer
}

// Observe applies one proximity sample taken at now.
func (m *Manager) Observe(ctx context.Context, proximity bool, now time.Time) {
	switch m.State() {
	case StateIdle:
		if proximity {
			m.lastProximity = now
			m.fire(ctx, eventAdvertise)
		}
	case StateAdvertising:
		if proximity {
			m.lastProximity = now
			return
		}
		if now.Sub(m.lastProximity) > m.grace {
			m.fire(ctx, eventQuiet)
		}
	}
}

// Connect accepts a new session. A second concurrent session is refused.
func (m *Manager) Connect(ctx context.Context, id core.SessionID, peer string) error {
	if m.Connected() {
		return fmt.Errorf("session %d already active, refusing %d", m.id, id)
	}
	return m.fsm.Event(ctx, eventConnect, id, peer)
}

// Disconnect ends the session id and reports whether it was the live one.
// Proximity history is dropped so a new approach starts a fresh grace window.
func (m *Manager) Disconnect(ctx context.Context, id core.SessionID) bool {
	if cur, ok := m.Current(); !ok || cur != id {
		return false
	}
	m.fire(ctx, eventDisconnect)
	m.id, m.peer = 0, ""
	m.lastProximity = time.Time{}
	return true
}

// RequestTeardown asks the transport to drop the live session. Without one the
// request is dropped.
func (m *Manager) RequestTeardown() {
	id, ok := m.Current()
	if !ok {
		m.logger.Debug("Teardown requested without a session, ignoring")
		return
	}
	if err := m.transport.Disconnect(id); err != nil {
		m.logger.Error(err, "Failed to tear down session", "session", id)
	}
}

func (m *Manager) fire(ctx context.Context, event string) {
	if err := fsmutil.Fire(ctx, m.fsm, event); err != nil {
		m.logger.Error(err, "Session transition failed", "event", event, "state", m.fsm.Current())
	}
}
