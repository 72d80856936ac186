package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/protocol"
	"github.com/autopeer-io/autogate/internal/gateagent/server"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
	"github.com/autopeer-io/autogate/pkg/options"
)

type staticStatus controller.Status

func (s staticStatus) Status() controller.Status { return controller.Status(s) }

type lastStaged struct {
	mu     sync.Mutex
	gate   core.Gate
	action core.Action
	n      int
}

func (l *lastStaged) Stage(g core.Gate, a core.Action, _ core.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate, l.action = g, a
	l.n++
}

func (l *lastStaged) get() (core.Gate, core.Action, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gate, l.action, l.n
}

type distances struct {
	mu   sync.Mutex
	last map[core.Gate]int
}

func (d *distances) SetDistance(g core.Gate, dist int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[g] = dist
	return nil
}

func (d *distances) get(g core.Gate) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[g]
}

// fakeGate answers a Ready frame with an info request and keeps the info
// frame it gets back.
type fakeGate struct {
	upgrader websocket.Upgrader
	received chan protocol.Frame
}

func (f *fakeGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		if frame.Command == protocol.CmdReady {
			req, _ := protocol.Encode(protocol.CmdInfoRequest, nil)
			_ = conn.WriteMessage(websocket.BinaryMessage, req)
			continue
		}
		frame.Payload = bytes.Clone(frame.Payload)
		f.received <- frame
	}
}

type fixture struct {
	srv   *httptest.Server
	sink  *lastStaged
	sim   *distances
	gate  *fakeGate
	state controller.Status
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	opened := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := &fixture{
		sink: &lastStaged{},
		sim:  &distances{last: map[core.Gate]int{}},
		gate: &fakeGate{received: make(chan protocol.Frame, 1)},
		state: controller.Status{
			State:         controller.StateVehicleConnected,
			Context:       "entry",
			Session:       "connected",
			SessionID:     3,
			Peer:          "10.0.0.7:5555",
			BridgeEnabled: true,
			BridgeOnline:  true,
			Gates: []controller.GateStatus{
				{Gate: "entry", Phase: "open", TargetAngle: 90, CurrentAngle: 90, Open: true, LastOpened: &opened, Distance: 12},
				{Gate: "exit", Phase: "closed", Distance: core.NoObject},
			},
		},
	}

	s := server.NewServer(options.NewHttpOptions(), server.Deps{
		Status:   staticStatus(f.state),
		Sink:     f.sink,
		Sim:      f.sim,
		Link:     f.gate,
		LinkPath: "/link",
	})
	f.srv = httptest.NewServer(s.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--server", f.srv.URL))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "VEHICLE_CONNECTED")
	assert.Contains(t, out, "connected #3 10.0.0.7:5555")
	assert.Contains(t, out, "online")
	assert.Contains(t, out, "GATE")
	assert.Contains(t, out, "never")
}

func TestStatusCommandJSON(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "VEHICLE_CONNECTED"`)
}

func TestBarrierCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "barrier", "exit", "close")
	require.NoError(t, err)
	assert.Equal(t, "exit barrier: close staged\n", out)
	g, a, n := f.sink.get()
	assert.Equal(t, 1, n)
	assert.Equal(t, core.GateExit, g)
	assert.Equal(t, core.ActionClose, a)

	_, err = f.run(t, "barrier", "exit", "toggle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestSimDistanceCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "sim", "distance", "entry", "10")
	require.NoError(t, err)
	assert.Equal(t, 10, f.sim.get(core.GateEntry))

	_, err = f.run(t, "sim", "distance", "entry", "near")
	assert.Error(t, err)
}

func TestVehicleEntryCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "vehicle", "entry", "--id", "ZX9", "--tag", "4", "--electric", "--preferred", "elec")
	require.NoError(t, err)

	select {
	case frame := <-f.gate.received:
		assert.Equal(t, protocol.CmdEntryInfo, frame.Command)
		r, err := vehicle.ParseEntry(frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, "ZX9", r.ID)
		assert.Equal(t, uint8(4), r.Tag)
		assert.Equal(t, vehicle.ClassElectric, r.Class)
		assert.Equal(t, vehicle.SpotElectric, r.Preferred)
	case <-time.After(2 * time.Second):
		t.Fatal("gate never received the entry info")
	}
}

func TestVehicleExitCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "vehicle", "exit", "--id", "ZX9", "--tag", "4")
	require.NoError(t, err)

	select {
	case frame := <-f.gate.received:
		assert.Equal(t, protocol.CmdExitInfo, frame.Command)
		r, err := vehicle.ParseExit(frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, vehicle.Record{ID: "ZX9", Tag: 4}, r)
	case <-time.After(2 * time.Second):
		t.Fatal("gate never received the exit info")
	}
}

func TestParseSpot(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want vehicle.Spot
		ok   bool
	}{
		{"normal", vehicle.SpotNormal, true},
		{"disabled", vehicle.SpotDisabled, true},
		{"elec", vehicle.SpotElectric, true},
		{"vip", vehicle.SpotNormal, false},
	} {
		got, err := parseSpot(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, err == nil, tc.in)
	}
}

func TestWSURL(t *testing.T) {
	got, err := NewClient("https://gate.local:8443/", time.Second).wsURL("/link")
	require.NoError(t, err)
	assert.Equal(t, "wss://gate.local:8443/link", got)

	_, err = NewClient("ftp://gate.local", time.Second).wsURL("/link")
	assert.Error(t, err)
}
