package passage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/pkg/metrics"
	"github.com/autopeer-io/autogate/pkg/log"
)

// Config holds the detector timings.
type Config struct {
	Thresholds
	Interval time.Duration
	// Stabilize ignores readings for this long after the barrier opened.
	Stabilize time.Duration
	// EchoTimeout bounds one reading; a late echo counts as NoObject.
	// Zero disables the bound.
	EchoTimeout time.Duration
}

// Detector samples the range sensor of one gate on a fixed period. Every
// sample is published for proximity checks; the debounce only runs while the
// barrier is open and its passage is not yet confirmed, and skips readings
// without an echo.
type Detector struct {
	gate   core.Gate
	sensor core.RangeSensor
	state  *core.BarrierState
	cfg    Config
	deb    *Debouncer
	last   atomic.Int32
	logger log.Logger
}

func NewDetector(g core.Gate, sensor core.RangeSensor, state *core.BarrierState, cfg Config) *Detector {
	d := &Detector{
		gate:   g,
		sensor: sensor,
		state:  state,
		cfg:    cfg,
		deb:    NewDebouncer(cfg.Thresholds),
		logger: log.WithName("passage").WithValues("gate", g.String()),
	}
	d.last.Store(core.NoObject)
	return d
}

// LastDistance returns the most recent reading, NoObject before the first one.
func (d *Detector) LastDistance() int { return int(d.last.Load()) }

// Sample takes one reading at now and runs the debounce on it.
func (d *Detector) Sample(ctx context.Context, now time.Time) {
	dist := d.measure(ctx)
	d.last.Store(int32(dist))

	if !d.state.IsOpen() || d.state.PassageConfirmed() {
		d.deb.Reset()
		return
	}
	if now.Sub(d.state.LastOpened()) < d.cfg.Stabilize {
		return
	}
	// A lost echo says nothing about the lane; it must not count as clear.
	if dist >= core.NoObject {
		return
	}

	if d.deb.Observe(dist, now) {
		d.state.ConfirmPassage()
		metrics.PassageConfirmedTotal.WithLabelValues(d.gate.String()).Inc()
		d.logger.Info("Vehicle passage confirmed", "distance", dist)
	}
}

func (d *Detector) measure(ctx context.Context) int {
	if d.cfg.EchoTimeout <= 0 {
		return d.sensor.Distance(ctx)
	}
	ectx, cancel := context.WithTimeout(ctx, d.cfg.EchoTimeout)
	defer cancel()

	dist := d.sensor.Distance(ectx)
	if ectx.Err() != nil {
		return core.NoObject
	}
	return dist
}

func (d *Detector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			d.Sample(ctx, now)
		}
	}
}
