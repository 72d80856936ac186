package core

import "context"

// NoObject is reported by a RangeSensor when the echo times out.
const NoObject = 999

// Servo drives one barrier arm.
type Servo interface {
	SetAngle(angle int) error
}

// RangeSensor measures the distance to the nearest object under a barrier.
// It never fails; a missing echo reads as NoObject.
type RangeSensor interface {
	Distance(ctx context.Context) int
}

// Indicator is the status lamp lit when the bridge commands a barrier.
type Indicator interface {
	Set(on bool)
}

// HAL bundles the hardware of both gates.
type HAL interface {
	Servo(g Gate) Servo
	Sensor(g Gate) RangeSensor
	Indicator() Indicator
}
