// Package bridge connects the gate to the external authorization service over
// MQTT. Requests fail closed: nothing is published while the last liveness
// probe failed.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/vehicle"
	"github.com/autopeer-io/autogate/internal/pkg/metrics"
	"github.com/autopeer-io/autogate/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/autogate/pkg/log"
	"github.com/autopeer-io/autogate/pkg/mqtt"
	"github.com/autopeer-io/autogate/pkg/mqtt/topic"
)

var ErrBridgeUnavailable = errors.New("authorization bridge unavailable")

type Config struct {
	GateID         string
	Topics         *topic.Builder
	ProbeInterval  time.Duration
	ProbeTimeout   time.Duration
	PublishTimeout time.Duration
}

type Bridge struct {
	client mqtt.Client
	sink   core.CommandSink
	cfg    Config

	online    atomic.Bool
	lastProbe atomic.Int64

	mu      sync.Mutex
	subs    map[uint64]chan bool
	nextSub uint64

	logger log.Logger
}

func New(client mqtt.Client, sink core.CommandSink, cfg Config) *Bridge {
	return &Bridge{
		client: client,
		sink:   sink,
		cfg:    cfg,
		subs:   make(map[uint64]chan bool),
		logger: log.WithName("bridge").WithValues("gate", cfg.GateID),
	}
}

func (b *Bridge) topic(segment string) string {
	return b.cfg.Topics.Build(segment, b.cfg.GateID)
}

// StatusTopic is where the retained liveness record and the will go.
func StatusTopic(topics *topic.Builder, gateID string) string {
	return topics.Build(paths.Status, gateID)
}

// OfflinePayload is the will message body.
func OfflinePayload() []byte {
	data, _ := json.Marshal(Status{Online: false})
	return data
}

// Run connects, subscribes to barrier commands and probes liveness until ctx
// is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}
	defer b.shutdown()

	go b.subscribeCommands(ctx)

	ticker := time.NewTicker(b.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			b.Probe(ctx, now)
		}
	}
}

func (b *Bridge) subscribeCommands(ctx context.Context) {
	if err := b.client.AwaitConnection(ctx); err != nil {
		return
	}
	t := b.topic(paths.BarrierCommand)
	// The client keeps the handler and re-subscribes after reconnects even
	// when this first SUBSCRIBE fails.
	if err := b.client.Subscribe(ctx, t, 1, b.handleCommand); err != nil {
		b.logger.Error(err, "Failed to subscribe to barrier commands", "topic", t)
	}
}

func (b *Bridge) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.PublishTimeout)
	defer cancel()

	if b.client.IsConnected() {
		b.publishStatus(ctx, false)
	}
	b.client.Disconnect(ctx)
	b.setOnline(false)
}

// Probe checks that the broker acknowledges a publish within the probe timeout.
func (b *Bridge) Probe(ctx context.Context, now time.Time) {
	b.lastProbe.Store(now.UnixNano())

	pctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	payload, _ := json.Marshal(Status{Online: true, Timestamp: now.Unix()})
	err := b.client.Publish(pctx, b.topic(paths.Ping), 1, false, payload)
	ok := err == nil && b.client.IsConnected()
	if ok {
		metrics.ProbeLatency.Observe(time.Since(start).Seconds())
	} else if b.Online() {
		b.logger.Warn("Liveness probe failed", "error", err)
	}

	if b.setOnline(ok) && ok {
		b.publishStatus(ctx, true)
	}
}

// setOnline records the probe result and reports whether it changed.
func (b *Bridge) setOnline(ok bool) bool {
	if b.online.Swap(ok) == ok {
		return false
	}

	if ok {
		metrics.BridgeConnectivityStatus.Set(1)
		b.logger.Info("Authorization bridge online")
	} else {
		metrics.BridgeConnectivityStatus.Set(0)
		b.logger.Warn("Authorization bridge offline, requests will be refused")
	}

	b.mu.Lock()
	for _, ch := range b.subs {
		notify(ch, ok)
	}
	b.mu.Unlock()
	return true
}

// notify replaces any unread value so a slow reader only sees the latest.
func notify(ch chan bool, v bool) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func (b *Bridge) publishStatus(ctx context.Context, online bool) {
	payload, _ := json.Marshal(Status{Online: online, Timestamp: time.Now().Unix()})
	pctx, cancel := context.WithTimeout(ctx, b.cfg.PublishTimeout)
	defer cancel()
	if err := b.client.Publish(pctx, b.topic(paths.Status), 1, true, payload); err != nil {
		b.logger.Error(err, "Failed to publish status", "online", online)
	}
}

// Online reports the last probe result.
func (b *Bridge) Online() bool { return b.online.Load() }

// LastProbe returns the zero time before the first probe.
func (b *Bridge) LastProbe() time.Time {
	ns := b.lastProbe.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Subscribe returns a channel that receives the current connectivity and then
// every change. Call cancel to release it.
func (b *Bridge) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	ch <- b.online.Load()
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bridge) handleCommand(_ context.Context, t string, payload []byte) {
	var cmd BarrierCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Error(err, "Dropping undecodable barrier command", "topic", t)
		return
	}
	g, a, err := cmd.parse()
	if err != nil {
		b.logger.Error(err, "Dropping invalid barrier command", "topic", t)
		return
	}

	b.logger.Info("Barrier command received", "target", g.String(), "action", a.String())
	b.sink.Stage(g, a, core.SourceBridge)
}

// RequestEntry publishes an authorization request for r.
func (b *Bridge) RequestEntry(ctx context.Context, r vehicle.Record) error {
	return b.publish(ctx, paths.AuthRequest, newAuthRequest(r))
}

// RequestExit announces that the vehicle with r's tag is leaving.
func (b *Bridge) RequestExit(ctx context.Context, r vehicle.Record) error {
	return b.publish(ctx, paths.ExitRequest, ExitRequest{TagID: r.Tag})
}

// ReportClosed tells the service that g closed behind a vehicle.
func (b *Bridge) ReportClosed(ctx context.Context, g core.Gate) error {
	return b.publish(ctx, paths.BarrierEvent, BarrierEvent{Gate: g.String(), State: "closed"})
}

func (b *Bridge) publish(ctx context.Context, segment string, v any) error {
	t := b.topic(segment)
	if !b.Online() {
		metrics.BridgePublishTotal.WithLabelValues(segment, "unavailable").Inc()
		return fmt.Errorf("%w: not publishing %s", ErrBridgeUnavailable, segment)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", segment, err)
	}

	pctx, cancel := context.WithTimeout(ctx, b.cfg.PublishTimeout)
	defer cancel()
	if err := b.client.Publish(pctx, t, 1, false, payload); err != nil {
		metrics.BridgePublishTotal.WithLabelValues(segment, "failed").Inc()
		return fmt.Errorf("failed to publish %s: %w", segment, err)
	}

	metrics.BridgePublishTotal.WithLabelValues(segment, "success").Inc()
	b.logger.Info("Published to bridge", "topic", t, "payload", string(payload))
	return nil
}
