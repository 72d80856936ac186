package core

import (
	"sync/atomic"
	"time"
)

const (
	MinAngle = 0
	MaxAngle = 90
)

// ClampAngle limits a to the mechanical range of the barrier.
func ClampAngle(a int) int {
	return max(MinAngle, min(MaxAngle, a))
}

// BarrierState is shared by the control loop, the ramp and the detector of
// one gate. Each field has a single writer:
//
//	target, open, lastOpened  control loop
//	current                   ramp
//	passed                    detector sets, control loop clears
type BarrierState struct {
	target     atomic.Int32
	current    atomic.Int32
	open       atomic.Bool
	lastOpened atomic.Int64
	passed     atomic.Bool
}

// NewBarrierState returns a state resting at angle.
func NewBarrierState(angle int) *BarrierState {
	b := &BarrierState{}
	angle = ClampAngle(angle)
	b.target.Store(int32(angle))
	b.current.Store(int32(angle))
	return b
}

// SetTarget clamps and stores the angle the ramp should move to.
func (b *BarrierState) SetTarget(angle int) {
	b.target.Store(int32(ClampAngle(angle)))
}

func (b *BarrierState) Target() int { return int(b.target.Load()) }

func (b *BarrierState) Current() int { return int(b.current.Load()) }

func (b *BarrierState) SetCurrent(angle int) { b.current.Store(int32(angle)) }

// AtTarget reports whether the ramp has finished moving.
func (b *BarrierState) AtTarget() bool { return b.Current() == b.Target() }

func (b *BarrierState) IsOpen() bool { return b.open.Load() }

func (b *BarrierState) SetOpen(open bool) { b.open.Store(open) }

// StampOpened records t as the last time the barrier was commanded open.
func (b *BarrierState) StampOpened(t time.Time) { b.lastOpened.Store(t.UnixNano()) }

// LastOpened returns the zero time if the barrier never opened.
func (b *BarrierState) LastOpened() time.Time {
	ns := b.lastOpened.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (b *BarrierState) ConfirmPassage() { b.passed.Store(true) }

func (b *BarrierState) PassageConfirmed() bool { return b.passed.Load() }

func (b *BarrierState) ClearPassage() { b.passed.Store(false) }
