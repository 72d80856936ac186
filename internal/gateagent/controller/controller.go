// Package controller implements the gate state machine. A single control loop
// owns the vehicle session, the transaction with the connected vehicle and
// the barrier phases. Transport callbacks and remote commands only stage work
// for that loop.
package controller

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/protocol"
	"github.com/autopeer-io/autogate/internal/gateagent/session"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
	"github.com/autopeer-io/autogate/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/autogate/internal/pkg/util/fsm"
	"github.com/autopeer-io/autogate/pkg/log"
)

// Authorizer forwards vehicle requests to the policy service.
type Authorizer interface {
	RequestEntry(ctx context.Context, r vehicle.Record) error
	RequestExit(ctx context.Context, r vehicle.Record) error
	ReportClosed(ctx context.Context, g core.Gate) error
	Online() bool
}

// ProximitySource exposes the latest range reading of a gate.
type ProximitySource interface {
	LastDistance() int
}

type Config struct {
	ClosedAngle       int
	OpenAngle         int
	ApproachThreshold int
	AdvertiseGrace    time.Duration
	TickInterval      time.Duration
	IndicatorHold     time.Duration
	// InboxSize caps the frames waiting for the next tick. Connect and
	// disconnect events are always kept.
	InboxSize int
}

type eventKind uint8

const (
	linkConnect eventKind = iota
	linkFrame
	linkDisconnect
)

type linkEvent struct {
	kind eventKind
	id   core.SessionID
	peer string
	data []byte
}

type Controller struct {
	cfg       Config
	barriers  [len(core.Gates)]*core.BarrierState
	proximity [len(core.Gates)]ProximitySource
	link      core.PeerLink
	indicator core.Indicator
	auth      Authorizer

	session *session.Manager
	inbox   inbox
	pending [len(core.Gates)]atomic.Uint32

	txn     *fsm.FSM
	record  *vehicle.Record
	gateCtx core.GateContext
	phases  [len(core.Gates)]*fsm.FSM

	state          State
	indicatorUntil time.Time
	status         atomic.Pointer[Status]

	logger log.Logger
}

var (
	_ core.LinkHandler = (*Controller)(nil)
	_ core.CommandSink = (*Controller)(nil)
)

// New wires a controller. barriers and proximity are indexed by core.Gate.
func New(cfg Config, link core.PeerLink, barriers [2]*core.BarrierState, proximity [2]ProximitySource, indicator core.Indicator) *Controller {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}

	c := &Controller{
		cfg:       cfg,
		barriers:  barriers,
		proximity: proximity,
		link:      link,
		indicator: indicator,
		inbox:     inbox{maxFrames: cfg.InboxSize},
		txn:       newTransactionFSM(),
		state:     StateBooting,
		logger:    log.WithName("controller"),
	}
	c.session = session.NewManager(link, cfg.AdvertiseGrace, session.WithStateHook(c.onSessionChange))
	for _, g := range core.Gates {
		c.phases[g] = newPhaseFSM(g, c.logger)
	}
	c.publishStatus(time.Now())

	return c
}

// SetAuthorizer routes vehicle requests through a. Without one, accepted
// vehicles are let through directly. Call it before Run.
func (c *Controller) SetAuthorizer(a Authorizer) {
	c.auth = a
}

// OnConnect, OnFrame and OnDisconnect run on transport goroutines.

func (c *Controller) OnConnect(id core.SessionID, peer string) {
	c.enqueue(linkEvent{kind: linkConnect, id: id, peer: peer})
}

func (c *Controller) OnFrame(id core.SessionID, data []byte) {
	c.enqueue(linkEvent{kind: linkFrame, id: id, data: bytes.Clone(data)})
}

func (c *Controller) OnDisconnect(id core.SessionID) {
	c.enqueue(linkEvent{kind: linkDisconnect, id: id})
}

func (c *Controller) enqueue(ev linkEvent) {
	if !c.inbox.push(ev) {
		c.logger.Warn("Control loop inbox full, dropping frame", "session", ev.id)
	}
}

// inbox queues link events in arrival order for the control loop. Only
// frames are shed under load: a lost disconnect would pin the session.
type inbox struct {
	mu        sync.Mutex
	events    []linkEvent
	frames    int
	maxFrames int
}

func (q *inbox) push(ev linkEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ev.kind == linkFrame {
		if q.frames >= q.maxFrames {
			return false
		}
		q.frames++
	}
	q.events = append(q.events, ev)
	return true
}

// take hands over everything queued so far.
func (q *inbox) take() []linkEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	evs := q.events
	q.events, q.frames = nil, 0
	return evs
}

// Stage records a barrier command for the next tick. The latest command per
// gate wins. Safe for concurrent use.
func (c *Controller) Stage(g core.Gate, a core.Action, src core.Source) {
	if int(g) >= len(c.pending) || a == core.ActionNone {
		return
	}
	c.pending[g].Store(uint32(a) | uint32(src)<<8)
}

// Run drives Tick on the configured period until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.setState(StateInitializing)
	for _, g := range core.Gates {
		c.barriers[g].SetTarget(c.cfg.ClosedAngle)
		c.barriers[g].SetOpen(false)
	}
	c.setState(StateIdle)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.session.RequestTeardown()
			return nil
		case now := <-ticker.C:
			c.Tick(ctx, now)
		}
	}
}

// Tick runs one control step at now.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	c.drainInbox(ctx, now)
	c.session.Observe(ctx, c.vehicleNearby(), now)
	c.consumePassages(ctx, now)
	c.applyStaged(ctx, now)
	c.settlePhases(ctx)
	c.updateIndicator(now)
	c.publishStatus(now)
}

func (c *Controller) drainInbox(ctx context.Context, now time.Time) {
	for _, ev := range c.inbox.take() {
		switch ev.kind {
		case linkConnect:
			c.handleConnect(ctx, ev)
		case linkFrame:
			c.handleFrame(ctx, ev, now)
		case linkDisconnect:
			c.handleDisconnect(ctx, ev)
		}
	}
}

func (c *Controller) vehicleNearby() bool {
	for _, p := range c.proximity {
		if p != nil && p.LastDistance() < c.cfg.ApproachThreshold {
			return true
		}
	}
	return false
}

func (c *Controller) handleConnect(ctx context.Context, ev linkEvent) {
	if err := c.session.Connect(ctx, ev.id, ev.peer); err != nil {
		c.logger.Warn("Refusing vehicle connection", "session", ev.id, "peer", ev.peer, "error", err)
		if err := c.link.Disconnect(ev.id); err != nil {
			c.logger.Error(err, "Failed to drop refused connection", "session", ev.id)
		}
		return
	}
	c.logger.Info("Vehicle connected", "session", ev.id, "peer", ev.peer)
}

func (c *Controller) handleDisconnect(ctx context.Context, ev linkEvent) {
	if cur, ok := c.session.Current(); !ok || cur != ev.id {
		c.logger.Debug("Ignoring disconnect of unknown session", "session", ev.id)
		return
	}
	c.resetTransaction(ctx)
	c.session.Disconnect(ctx, ev.id)
	c.logger.Info("Vehicle disconnected", "session", ev.id)
}

func (c *Controller) resetTransaction(ctx context.Context) {
	if err := fsmutil.Fire(ctx, c.txn, txnReset); err != nil {
		c.logger.Error(err, "Failed to reset transaction")
	}
	c.record = nil
	c.gateCtx = core.ContextNone
}

func (c *Controller) handleFrame(ctx context.Context, ev linkEvent, now time.Time) {
	if cur, ok := c.session.Current(); !ok || cur != ev.id {
		metrics.FramesReceivedTotal.WithLabelValues("unknown", "stale").Inc()
		c.logger.Debug("Dropping frame from stale session", "session", ev.id)
		return
	}
	c.logger.Debug("Frame received", "session", ev.id, "frame", log.Hex(ev.data))

	f, err := protocol.Decode(ev.data)
	if err != nil {
		metrics.FramesReceivedTotal.WithLabelValues("unknown", "frame_error").Inc()
		c.logger.Warn("Dropping invalid frame", "session", ev.id, "error", err)
		return
	}

	switch f.Command {
	case protocol.CmdReady:
		c.handleReady(ctx, ev.id)
	case protocol.CmdEntryInfo:
		c.handleInfo(ctx, f, core.ContextEntry, now)
	case protocol.CmdExitInfo:
		c.handleInfo(ctx, f, core.ContextExit, now)
	case protocol.CmdInfoRequest:
		metrics.FramesReceivedTotal.WithLabelValues(f.Command.String(), "rejected").Inc()
		c.logger.Warn("Vehicle sent a gate-only command, ignoring", "command", f.Command.String())
	}
}

func (c *Controller) handleReady(ctx context.Context, id core.SessionID) {
	if err := c.txn.Event(ctx, txnReady); err != nil {
		metrics.FramesReceivedTotal.WithLabelValues(protocol.CmdReady.String(), "rejected").Inc()
		c.logger.Warn("Ignoring ready signal", "transaction", c.txn.Current(), "error", err)
		return
	}
	metrics.FramesReceivedTotal.WithLabelValues(protocol.CmdReady.String(), "ok").Inc()

	c.gateCtx = core.ContextEntry
	c.setState(StateReadyReceived)

	frame, err := protocol.Encode(protocol.CmdInfoRequest, nil)
	if err != nil {
		c.logger.Error(err, "Failed to encode info request")
		return
	}
	if err := c.link.Send(id, frame); err != nil {
		c.logger.Error(err, "Failed to request vehicle info", "session", id)
		return
	}
	c.logger.Debug("Frame sent", "session", id, "frame", log.Hex(frame))
}

func (c *Controller) handleInfo(ctx context.Context, f protocol.Frame, kind core.GateContext, now time.Time) {
	event, parse, state := txnEntryInfo, vehicle.ParseEntry, StateEntryInfoReceived
	if kind == core.ContextExit {
		event, parse, state = txnExitInfo, vehicle.ParseExit, StateExitInfoReceived
	}

	cmd := f.Command.String()
	if !c.txn.Can(event) {
		metrics.FramesReceivedTotal.WithLabelValues(cmd, "rejected").Inc()
		c.logger.Warn("Vehicle info already received in this session, ignoring", "command", cmd, "transaction", c.txn.Current())
		return
	}

	rec, err := parse(f.Payload)
	if err != nil {
		metrics.FramesReceivedTotal.WithLabelValues(cmd, "malformed").Inc()
		c.logger.Warn("Dropping malformed vehicle info", "command", cmd, "error", err)
		return
	}
	if err := c.txn.Event(ctx, event); err != nil {
		metrics.FramesReceivedTotal.WithLabelValues(cmd, "rejected").Inc()
		c.logger.Error(err, "Transaction rejected vehicle info", "command", cmd)
		return
	}
	metrics.FramesReceivedTotal.WithLabelValues(cmd, "ok").Inc()

	c.record = &rec
	c.gateCtx = kind
	c.setState(state)
	c.logger.Info("Vehicle info parsed", "vehicle", rec.ID, "tag", rec.Tag, "destination", rec.Destination)

	c.authorize(ctx, rec, kind, now)
	c.session.RequestTeardown()
}

func (c *Controller) authorize(ctx context.Context, rec vehicle.Record, kind core.GateContext, now time.Time) {
	g, _ := kind.Gate()
	if c.auth == nil {
		c.logger.Info("No authorization bridge configured, opening barrier", "target", g.String())
		c.apply(ctx, g, core.ActionOpen, core.SourceVehicle, now)
		return
	}

	var err error
	if kind == core.ContextEntry {
		err = c.auth.RequestEntry(ctx, rec)
	} else {
		err = c.auth.RequestExit(ctx, rec)
	}
	switch {
	case errors.Is(err, bridge.ErrBridgeUnavailable):
		c.logger.Warn("Authorization bridge down, vehicle not admitted", "vehicle", rec.ID, "target", g.String())
	case err != nil:
		c.logger.Error(err, "Authorization request failed", "vehicle", rec.ID, "target", g.String())
	}
}

func (c *Controller) consumePassages(ctx context.Context, now time.Time) {
	for _, g := range core.Gates {
		b := c.barriers[g]
		if !b.PassageConfirmed() {
			continue
		}

		c.apply(ctx, g, core.ActionClose, core.SourcePassage, now)
		b.ClearPassage()

		if g == core.GateEntry {
			c.setState(StateEntryCompleted)
		} else {
			c.setState(StateExitCompleted)
		}

		if c.auth != nil {
			if err := c.auth.ReportClosed(ctx, g); err != nil {
				c.logger.Error(err, "Failed to report barrier closure", "target", g.String())
			}
		}
	}
}

func (c *Controller) applyStaged(ctx context.Context, now time.Time) {
	for _, g := range core.Gates {
		v := c.pending[g].Swap(0)
		if v == 0 {
			continue
		}
		c.apply(ctx, g, core.Action(v&0xff), core.Source(v>>8), now)
	}
}

// apply moves the barrier target and keeps the shared flags consistent with
// it. Opening clears any stale passage before the detector can see the new
// open flag.
func (c *Controller) apply(ctx context.Context, g core.Gate, a core.Action, src core.Source, now time.Time) {
	b := c.barriers[g]
	switch a {
	case core.ActionOpen:
		b.SetTarget(c.cfg.OpenAngle)
		b.ClearPassage()
		b.StampOpened(now)
		b.SetOpen(true)
		c.firePhase(ctx, g, phaseOpen)
	case core.ActionClose:
		b.SetTarget(c.cfg.ClosedAngle)
		b.SetOpen(false)
		c.firePhase(ctx, g, phaseClose)
	default:
		return
	}

	metrics.BarrierOperationsTotal.WithLabelValues(g.String(), a.String(), src.String()).Inc()
	c.logger.Info("Barrier command applied", "target", g.String(), "action", a.String(), "source", src.String())

	if src == core.SourceBridge && c.indicator != nil {
		c.indicator.Set(true)
		c.indicatorUntil = now.Add(c.cfg.IndicatorHold)
	}
}

func (c *Controller) settlePhases(ctx context.Context) {
	for _, g := range core.Gates {
		if !c.barriers[g].AtTarget() {
			continue
		}
		switch phase(c.phases[g].Current()) {
		case phaseOpening:
			c.firePhase(ctx, g, phaseOpened)
		case phaseClosing:
			c.firePhase(ctx, g, phaseClosed)
		}
	}
}

func (c *Controller) firePhase(ctx context.Context, g core.Gate, event string) {
	err := fsmutil.Fire(ctx, c.phases[g], event)
	if err != nil && !fsmutil.IsRejected(err) {
		c.logger.Error(err, "Barrier phase transition failed", "target", g.String(), "event", event)
	}
}

func (c *Controller) updateIndicator(now time.Time) {
	if c.indicatorUntil.IsZero() || now.Before(c.indicatorUntil) {
		return
	}
	c.indicator.Set(false)
	c.indicatorUntil = time.Time{}
}

func (c *Controller) onSessionChange(_, to session.State) {
	switch to {
	case session.StateAdvertising:
		c.setState(StateAdvertising)
	case session.StateConnected:
		c.setState(StateVehicleConnected)
	case session.StateIdle:
		c.setState(StateIdle)
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.logger.Info("Gate state changed", "state", string(s), "context", c.gateCtx.String())
}

func (c *Controller) publishStatus(now time.Time) {
	st := &Status{
		State:         c.state,
		Context:       c.gateCtx.String(),
		Session:       string(c.session.State()),
		Peer:          c.session.Peer(),
		BridgeEnabled: c.auth != nil,
		UpdatedAt:     now,
	}
	if id, ok := c.session.Current(); ok {
		st.SessionID = uint64(id)
	}
	if c.record != nil {
		rec := *c.record
		st.Vehicle = &rec
	}
	for _, g := range core.Gates {
		b := c.barriers[g]
		gs := GateStatus{
			Gate:             g.String(),
			Phase:            c.phases[g].Current(),
			TargetAngle:      b.Target(),
			CurrentAngle:     b.Current(),
			Open:             b.IsOpen(),
			PassageConfirmed: b.PassageConfirmed(),
			Distance:         core.NoObject,
		}
		if t := b.LastOpened(); !t.IsZero() {
			gs.LastOpened = &t
		}
		if p := c.proximity[g]; p != nil {
			gs.Distance = p.LastDistance()
		}
		st.Gates = append(st.Gates, gs)
	}
	c.status.Store(st)
}

// Status returns the snapshot taken at the end of the last tick, with bridge
// connectivity read live.
func (c *Controller) Status() Status {
	st := *c.status.Load()
	if c.auth != nil {
		st.BridgeOnline = c.auth.Online()
	}
	return st
}
