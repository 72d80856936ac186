package actuator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
)

type recordingServo struct {
	angles []int
	err    error
}

func (s *recordingServo) SetAngle(angle int) error {
	if s.err != nil {
		return s.err
	}
	s.angles = append(s.angles, angle)
	return nil
}

func TestStepMovesOneDegreeTowardsTarget(t *testing.T) {
	servo := &recordingServo{}
	state := core.NewBarrierState(0)
	r := NewRamp(core.GateEntry, servo, state, time.Millisecond)

	state.SetTarget(3)
	for r.Step() {
	}
	assert.Equal(t, []int{1, 2, 3}, servo.angles)
	assert.Equal(t, 3, state.Current())
	assert.False(t, r.Step())

	state.SetTarget(1)
	assert.True(t, r.Step())
	assert.Equal(t, 2, state.Current())
}

func TestStepReachesOpenInNinetyTicks(t *testing.T) {
	state := core.NewBarrierState(core.MinAngle)
	r := NewRamp(core.GateExit, &recordingServo{}, state, time.Millisecond)

	state.SetTarget(core.MaxAngle)
	steps := 0
	for r.Step() {
		steps++
	}
	assert.Equal(t, 90, steps)
	assert.True(t, state.AtTarget())
}

func TestStepKeepsAngleOnServoError(t *testing.T) {
	state := core.NewBarrierState(10)
	r := NewRamp(core.GateEntry, &recordingServo{err: errors.New("pwm fault")}, state, time.Millisecond)

	state.SetTarget(20)
	assert.False(t, r.Step())
	assert.Equal(t, 10, state.Current())
}

func TestRunStopsOnCancel(t *testing.T) {
	state := core.NewBarrierState(0)
	r := NewRamp(core.GateEntry, &recordingServo{}, state, time.Millisecond)
	state.SetTarget(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, state.AtTarget, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
