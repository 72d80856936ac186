package hal

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
)

var ErrNotAdvertising = errors.New("gate is not advertising")

// Loopback is an in-process peer link. A simulated vehicle connects with
// Dial and exchanges frames through the returned Vehicle.
type Loopback struct {
	handler     core.LinkHandler
	advertising atomic.Bool
	lastID      atomic.Uint64

	mu   sync.Mutex
	peer *Vehicle
}

var _ core.PeerLink = (*Loopback)(nil)

func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) SetHandler(h core.LinkHandler) { l.handler = h }

func (l *Loopback) Advertise(on bool) { l.advertising.Store(on) }

func (l *Loopback) Advertising() bool { return l.advertising.Load() }

// Vehicle is the far end of a loopback session.
type Vehicle struct {
	ID     core.SessionID
	Frames chan []byte
	link   *Loopback
	closed atomic.Bool
}

// Dial connects a vehicle while the gate advertises.
func (l *Loopback) Dial(peer string) (*Vehicle, error) {
	if !l.advertising.Load() {
		return nil, ErrNotAdvertising
	}
	l.mu.Lock()
	if l.peer != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("another vehicle is connected")
	}
	v := &Vehicle{
		ID:     core.SessionID(l.lastID.Add(1)),
		Frames: make(chan []byte, 8),
		link:   l,
	}
	l.peer = v
	l.mu.Unlock()

	l.handler.OnConnect(v.ID, peer)
	return v, nil
}

// Write delivers one frame to the gate.
func (v *Vehicle) Write(frame []byte) error {
	if v.closed.Load() {
		return errors.New("vehicle disconnected")
	}
	v.link.handler.OnFrame(v.ID, bytes.Clone(frame))
	return nil
}

// Close leaves from the vehicle side.
func (v *Vehicle) Close() {
	v.link.drop(v)
}

// Closed reports whether either side ended the session.
func (v *Vehicle) Closed() bool { return v.closed.Load() }

func (l *Loopback) drop(v *Vehicle) {
	if !v.closed.CompareAndSwap(false, true) {
		return
	}
	l.mu.Lock()
	if l.peer == v {
		l.peer = nil
	}
	l.mu.Unlock()
	l.handler.OnDisconnect(v.ID)
}

func (l *Loopback) current(id core.SessionID) (*Vehicle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer == nil || l.peer.ID != id {
		return nil, fmt.Errorf("unknown session %d", id)
	}
	return l.peer, nil
}

func (l *Loopback) Send(id core.SessionID, frame []byte) error {
	v, err := l.current(id)
	if err != nil {
		return err
	}
	select {
	case v.Frames <- bytes.Clone(frame):
		return nil
	default:
		return fmt.Errorf("session %d receive buffer full", id)
	}
}

func (l *Loopback) Disconnect(id core.SessionID) error {
	v, err := l.current(id)
	if err != nil {
		return err
	}
	l.drop(v)
	return nil
}
