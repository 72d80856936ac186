// Package hal provides the hardware backends of the gate agent.
package hal

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/pkg/log"
)

// New returns the backend named kind.
func New(kind string) (core.HAL, error) {
	switch kind {
	case "sim":
		return NewSim(), nil
	}
	return nil, fmt.Errorf("unsupported hal %q", kind)
}

// SimServo remembers the last commanded angle.
type SimServo struct {
	angle atomic.Int32
}

func (s *SimServo) SetAngle(angle int) error {
	if angle < core.MinAngle || angle > core.MaxAngle {
		return fmt.Errorf("angle %d out of range", angle)
	}
	s.angle.Store(int32(angle))
	return nil
}

func (s *SimServo) Angle() int { return int(s.angle.Load()) }

// SimSensor returns whatever distance was last set; it starts empty.
type SimSensor struct {
	dist atomic.Int32
}

func (s *SimSensor) Distance(context.Context) int { return int(s.dist.Load()) }

func (s *SimSensor) Set(dist int) { s.dist.Store(int32(dist)) }

type SimIndicator struct {
	on atomic.Bool
}

func (i *SimIndicator) Set(on bool) {
	if i.on.Swap(on) != on {
		log.Debug("[HAL-Sim] Indicator", "on", on)
	}
}

func (i *SimIndicator) On() bool { return i.on.Load() }

// Sim is an in-memory gate with two barriers.
type Sim struct {
	servos    [len(core.Gates)]*SimServo
	sensors   [len(core.Gates)]*SimSensor
	indicator *SimIndicator
}

var _ core.HAL = (*Sim)(nil)

func NewSim() *Sim {
	s := &Sim{indicator: &SimIndicator{}}
	for _, g := range core.Gates {
		s.servos[g] = &SimServo{}
		s.sensors[g] = &SimSensor{}
		s.sensors[g].Set(core.NoObject)
	}
	return s
}

func (s *Sim) Servo(g core.Gate) core.Servo { return s.servos[g] }

func (s *Sim) Sensor(g core.Gate) core.RangeSensor { return s.sensors[g] }

func (s *Sim) Indicator() core.Indicator { return s.indicator }

func (s *Sim) ServoAngle(g core.Gate) int { return s.servos[g].Angle() }

func (s *Sim) IndicatorOn() bool { return s.indicator.On() }

// SetDistance drives the simulated range sensor of g.
func (s *Sim) SetDistance(g core.Gate, dist int) error {
	if int(g) >= len(s.sensors) {
		return fmt.Errorf("unknown gate %d", g)
	}
	if dist < 0 {
		return fmt.Errorf("distance must not be negative")
	}
	s.sensors[g].Set(dist)
	log.Debug("[HAL-Sim] Distance set", "gate", g.String(), "distance", dist)
	return nil
}
