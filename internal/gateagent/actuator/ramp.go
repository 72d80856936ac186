// Package actuator moves the barrier arms towards their target angle.
package actuator

import (
	"context"
	"time"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/pkg/log"
)

// Ramp moves one barrier by a single degree per tick until it reaches the
// target set by the control loop.
type Ramp struct {
	gate     core.Gate
	servo    core.Servo
	state    *core.BarrierState
	interval time.Duration
	logger   log.Logger
}

func NewRamp(g core.Gate, servo core.Servo, state *core.BarrierState, interval time.Duration) *Ramp {
	return &Ramp{
		gate:     g,
		servo:    servo,
		state:    state,
		interval: interval,
		logger:   log.WithName("actuator").WithValues("gate", g.String()),
	}
}

// Step advances the current angle by one degree towards the target and
// reports whether it moved.
func (r *Ramp) Step() bool {
	cur, target := r.state.Current(), r.state.Target()
	if cur == target {
		return false
	}

	if cur < target {
		cur++
	} else {
		cur--
	}

	if err := r.servo.SetAngle(cur); err != nil {
		r.logger.Error(err, "Failed to drive servo", "angle", cur)
		return false
	}
	r.state.SetCurrent(cur)

	if cur == target {
		r.logger.Debug("Barrier reached target", "angle", cur)
	}
	return true
}

// Run parks the servo at the current angle and then ramps until ctx is done.
func (r *Ramp) Run(ctx context.Context) error {
	if err := r.servo.SetAngle(r.state.Current()); err != nil {
		r.logger.Error(err, "Failed to park servo", "angle", r.state.Current())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Step()
		}
	}
}
