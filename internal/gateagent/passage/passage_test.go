package passage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
)

var defaultThresholds = Thresholds{Under: 15, Clear: 50, Confirm: 500 * time.Millisecond}

var t0 = time.Unix(1700000000, 0)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestDebouncerNeverConfirmsWhileUnder(t *testing.T) {
	d := NewDebouncer(defaultThresholds)
	for ms := 0; ms <= 10000; ms += 50 {
		assert.False(t, d.Observe(5, at(ms)))
	}
	assert.True(t, d.UnderSensor())
}

func TestDebouncerConfirmsAfterSustainedClear(t *testing.T) {
	d := NewDebouncer(defaultThresholds)
	d.Observe(5, at(0))

	assert.False(t, d.Observe(60, at(50)), "first clear reading only records left-at")
	assert.False(t, d.Observe(60, at(300)))
	assert.False(t, d.Observe(60, at(550)), "exactly the confirm delay is not enough")
	assert.True(t, d.Observe(60, at(551)))

	assert.False(t, d.UnderSensor())
	assert.False(t, d.Observe(60, at(2000)), "confirmation fires once")
}

func TestDebouncerClearWithoutVehicleDoesNothing(t *testing.T) {
	d := NewDebouncer(defaultThresholds)
	for ms := 0; ms <= 5000; ms += 50 {
		assert.False(t, d.Observe(core.NoObject, at(ms)))
	}
}

func TestDebouncerDeadBandResetsProgress(t *testing.T) {
	d := NewDebouncer(defaultThresholds)
	d.Observe(5, at(0))
	d.Observe(80, at(50))
	d.Observe(30, at(400))
	assert.False(t, d.UnderSensor())

	// Without a new under reading the lane can stay clear forever.
	for ms := 450; ms <= 3000; ms += 50 {
		assert.False(t, d.Observe(80, at(ms)))
	}
}

func TestDebouncerUnderReadingRestartsClearWindow(t *testing.T) {
	d := NewDebouncer(defaultThresholds)
	d.Observe(5, at(0))
	d.Observe(60, at(100))
	d.Observe(10, at(500))
	assert.False(t, d.Observe(60, at(700)))
	assert.False(t, d.Observe(60, at(1100)))
	assert.True(t, d.Observe(60, at(1201)))
}

type scriptedSensor struct {
	dist atomic.Int32
}

func (s *scriptedSensor) Distance(context.Context) int { return int(s.dist.Load()) }

func newTestDetector(stabilize time.Duration) (*Detector, *scriptedSensor, *core.BarrierState) {
	sensor := &scriptedSensor{}
	sensor.dist.Store(core.NoObject)
	state := core.NewBarrierState(0)
	d := NewDetector(core.GateEntry, sensor, state, Config{
		Thresholds: defaultThresholds,
		Interval:   50 * time.Millisecond,
		Stabilize:  stabilize,
	})
	return d, sensor, state
}

func TestDetectorIgnoresClosedBarrier(t *testing.T) {
	d, sensor, state := newTestDetector(0)
	assert.Equal(t, core.NoObject, d.LastDistance())

	sensor.dist.Store(5)
	d.Sample(context.Background(), at(0))
	sensor.dist.Store(80)
	d.Sample(context.Background(), at(100))
	d.Sample(context.Background(), at(1000))

	assert.False(t, state.PassageConfirmed())
	assert.Equal(t, 80, d.LastDistance())
}

func TestDetectorConfirmsOpenBarrier(t *testing.T) {
	d, sensor, state := newTestDetector(500 * time.Millisecond)
	state.SetOpen(true)
	state.StampOpened(at(0))

	// Swing noise inside the stabilization window is ignored.
	sensor.dist.Store(5)
	d.Sample(context.Background(), at(100))
	sensor.dist.Store(80)
	d.Sample(context.Background(), at(200))
	d.Sample(context.Background(), at(900))
	assert.False(t, state.PassageConfirmed())

	sensor.dist.Store(5)
	d.Sample(context.Background(), at(1000))
	sensor.dist.Store(80)
	d.Sample(context.Background(), at(1050))
	d.Sample(context.Background(), at(1600))
	assert.True(t, state.PassageConfirmed())
}

func TestDetectorStopsAfterConfirmation(t *testing.T) {
	d, sensor, state := newTestDetector(0)
	state.SetOpen(true)
	state.ConfirmPassage()

	sensor.dist.Store(5)
	d.Sample(context.Background(), at(0))
	assert.False(t, d.deb.UnderSensor())
}

// stuckSensor never gets an echo back and gives up with the context.
type stuckSensor struct{}

func (stuckSensor) Distance(ctx context.Context) int {
	<-ctx.Done()
	return 5
}

func TestDetectorLateEchoReadsAsNoObject(t *testing.T) {
	state := core.NewBarrierState(0)
	d := NewDetector(core.GateEntry, stuckSensor{}, state, Config{
		Thresholds:  defaultThresholds,
		Interval:    50 * time.Millisecond,
		EchoTimeout: 5 * time.Millisecond,
	})

	d.Sample(context.Background(), at(0))
	assert.Equal(t, core.NoObject, d.LastDistance())
}

func TestDetectorEchoTimeoutsNeverConfirm(t *testing.T) {
	d, sensor, state := newTestDetector(0)
	state.SetOpen(true)
	state.StampOpened(at(0))

	sensor.dist.Store(10)
	d.Sample(context.Background(), at(50))
	require.True(t, d.deb.UnderSensor())

	sensor.dist.Store(core.NoObject)
	for ms := 100; ms <= 3000; ms += 50 {
		d.Sample(context.Background(), at(ms))
	}
	assert.False(t, state.PassageConfirmed())
	assert.True(t, d.deb.UnderSensor(), "timeouts keep the vehicle latched")
	assert.Equal(t, core.NoObject, d.LastDistance())
}

func TestDetectorEchoTimeoutsKeepClearProgress(t *testing.T) {
	d, sensor, state := newTestDetector(0)
	state.SetOpen(true)
	state.StampOpened(at(0))

	sensor.dist.Store(10)
	d.Sample(context.Background(), at(50))
	sensor.dist.Store(80)
	d.Sample(context.Background(), at(100))

	sensor.dist.Store(core.NoObject)
	d.Sample(context.Background(), at(300))
	d.Sample(context.Background(), at(500))

	sensor.dist.Store(80)
	d.Sample(context.Background(), at(601))
	assert.True(t, state.PassageConfirmed(), "the clear window started at 100ms")
}

func TestDetectorStuckSensorNeverConfirms(t *testing.T) {
	state := core.NewBarrierState(0)
	state.SetOpen(true)
	state.StampOpened(at(0))
	d := NewDetector(core.GateEntry, stuckSensor{}, state, Config{
		Thresholds:  defaultThresholds,
		Interval:    50 * time.Millisecond,
		EchoTimeout: time.Millisecond,
	})
	d.deb.Observe(10, at(10))

	for ms := 50; ms <= 700; ms += 50 {
		d.Sample(context.Background(), at(ms))
	}
	assert.False(t, state.PassageConfirmed())
}
