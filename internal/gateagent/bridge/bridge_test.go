package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
	"github.com/autopeer-io/autogate/pkg/mqtt"
	"github.com/autopeer-io/autogate/pkg/mqtt/topic"
)

type published struct {
	topic   string
	retain  bool
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  []published
	handlers   map[string]mqtt.MessageHandler
}

var _ mqtt.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeClient) Start(context.Context) error { return nil }

func (f *fakeClient) Disconnect(context.Context) {}

func (f *fakeClient) Publish(_ context.Context, t string, _ int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: t, retain: retain, payload: payload})
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, t string, _ int, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[t] = h
	return nil
}

func (f *fakeClient) Unsubscribe(_ context.Context, t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, t)
	return nil
}

func (f *fakeClient) AwaitConnection(context.Context) error { return nil }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) setDown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.publishErr = err
}

func (f *fakeClient) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.published {
		out = append(out, p.topic)
	}
	return out
}

func (f *fakeClient) last() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

type stagedCommand struct {
	gate   core.Gate
	action core.Action
	source core.Source
}

type recordingSink struct {
	mu     sync.Mutex
	staged []stagedCommand
}

func (s *recordingSink) Stage(g core.Gate, a core.Action, src core.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, stagedCommand{g, a, src})
}

func newTestBridge(client *fakeClient, sink core.CommandSink) *Bridge {
	return New(client, sink, Config{
		GateID:         "gate-01",
		Topics:         topic.NewBuilder("parking/v1"),
		ProbeInterval:  2 * time.Second,
		ProbeTimeout:   100 * time.Millisecond,
		PublishTimeout: time.Second,
	})
}

var entryRecord = vehicle.Record{
	ID:          "AB12",
	Tag:         7,
	Class:       vehicle.ClassElectric,
	Preferred:   vehicle.SpotElectric,
	Destination: 1,
}

func TestPublishFailsClosedBeforeFirstProbe(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})

	err := b.RequestEntry(context.Background(), entryRecord)
	require.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Empty(t, client.topics())
}

func TestProbeMarksOnlineAndPublishesStatus(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})

	b.Probe(context.Background(), time.Unix(1700000000, 0))
	assert.True(t, b.Online())
	assert.True(t, time.Unix(1700000000, 0).Equal(b.LastProbe()))
	assert.Equal(t, []string{"parking/v1/ping/gate-01", "parking/v1/status/gate-01"}, client.topics())

	status := client.last()
	assert.True(t, status.retain)
	var s Status
	require.NoError(t, json.Unmarshal(status.payload, &s))
	assert.True(t, s.Online)

	// A second successful probe does not republish the status.
	b.Probe(context.Background(), time.Unix(1700000002, 0))
	assert.Len(t, client.topics(), 3)
}

func TestRequestEntryPayload(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})
	b.Probe(context.Background(), time.Now())

	require.NoError(t, b.RequestEntry(context.Background(), entryRecord))

	msg := client.last()
	assert.Equal(t, "parking/v1/auth-request/gate-01", msg.topic)
	assert.JSONEq(t,
		`{"vehicle_id":"AB12","tag_id":7,"elec":true,"disabled":false,"preferred":"elec","destination":1}`,
		string(msg.payload))
}

func TestRequestExitAndReportClosed(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})
	b.Probe(context.Background(), time.Now())

	require.NoError(t, b.RequestExit(context.Background(), vehicle.Record{ID: "AB12", Tag: 9}))
	msg := client.last()
	assert.Equal(t, "parking/v1/exit-request/gate-01", msg.topic)
	assert.JSONEq(t, `{"tag_id":9}`, string(msg.payload))

	require.NoError(t, b.ReportClosed(context.Background(), core.GateExit))
	msg = client.last()
	assert.Equal(t, "parking/v1/barrier-event/gate-01", msg.topic)
	assert.JSONEq(t, `{"gate":"exit","state":"closed"}`, string(msg.payload))
}

func TestProbeFailureRefusesPublishAndNotifies(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})

	updates, cancel := b.Subscribe()
	defer cancel()
	assert.False(t, <-updates)

	b.Probe(context.Background(), time.Now())
	assert.True(t, <-updates)

	client.setDown(errors.New("no PUBACK"))
	b.Probe(context.Background(), time.Now())
	assert.False(t, b.Online())
	assert.False(t, <-updates)

	err := b.RequestExit(context.Background(), vehicle.Record{Tag: 1})
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
}

func TestSubscriberSeesOnlyLatest(t *testing.T) {
	client := newFakeClient()
	b := newTestBridge(client, &recordingSink{})

	updates, cancel := b.Subscribe()
	defer cancel()

	b.Probe(context.Background(), time.Now())
	client.setDown(errors.New("down"))
	b.Probe(context.Background(), time.Now())

	assert.False(t, <-updates)
	select {
	case v := <-updates:
		t.Fatalf("unexpected extra update %v", v)
	default:
	}
}

func TestCommandsAreStaged(t *testing.T) {
	client := newFakeClient()
	sink := &recordingSink{}
	b := newTestBridge(client, sink)
	b.subscribeCommands(context.Background())

	h, ok := client.handlers["parking/v1/barrier-command/gate-01"]
	require.True(t, ok)

	h(context.Background(), "parking/v1/barrier-command/gate-01", []byte(`{"gate":"entry","action":"open"}`))
	h(context.Background(), "parking/v1/barrier-command/gate-01", []byte(`{"gate":"side","action":"open"}`))
	h(context.Background(), "parking/v1/barrier-command/gate-01", []byte(`not json`))
	h(context.Background(), "parking/v1/barrier-command/gate-01", []byte(`{"gate":"exit","action":"close"}`))

	assert.Equal(t, []stagedCommand{
		{core.GateEntry, core.ActionOpen, core.SourceBridge},
		{core.GateExit, core.ActionClose, core.SourceBridge},
	}, sink.staged)
}

func TestOfflinePayload(t *testing.T) {
	assert.JSONEq(t, `{"online":false,"timestamp":0}`, string(OfflinePayload()))
	assert.Equal(t, "parking/v1/status/gate-01", StatusTopic(topic.NewBuilder("/parking/v1/"), "gate-01"))
}
