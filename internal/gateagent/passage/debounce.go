// Package passage confirms that a vehicle has driven through an open barrier.
package passage

import "time"

// Thresholds configures a Debouncer. Distances are in sensor units.
type Thresholds struct {
	// Under latches the vehicle as being under the barrier.
	Under int
	// Clear is the first distance counted as an empty lane.
	Clear int
	// Confirm is how long the lane must stay clear, exclusive.
	Confirm time.Duration
}

// Debouncer turns a stream of distance readings into a single passage event:
// the vehicle is seen under the barrier and then the lane stays clear for
// longer than Confirm. Readings in the dead band between Under and Clear
// drop the latch, so the vehicle has to be seen again.
type Debouncer struct {
	th Thresholds

	underSensor  bool
	leftAt       time.Time
	lastMeasured time.Time
}

func NewDebouncer(th Thresholds) *Debouncer {
	return &Debouncer{th: th}
}

// Observe feeds one reading taken at now and reports whether it confirms
// passage. After a confirmation the debouncer starts over.
func (d *Debouncer) Observe(dist int, now time.Time) bool {
	d.lastMeasured = now

	switch {
	case dist < d.th.Under:
		d.underSensor = true
		d.leftAt = time.Time{}
	case d.underSensor && dist >= d.th.Clear:
		if d.leftAt.IsZero() {
			d.leftAt = now
		}
		if now.Sub(d.leftAt) > d.th.Confirm {
			d.underSensor = false
			d.leftAt = time.Time{}
			return true
		}
	case dist < d.th.Clear:
		d.underSensor = false
		d.leftAt = time.Time{}
	}
	return false
}

// Reset forgets any progress.
func (d *Debouncer) Reset() {
	d.underSensor = false
	d.leftAt = time.Time{}
}

// UnderSensor reports whether a vehicle is currently latched.
func (d *Debouncer) UnderSensor() bool { return d.underSensor }

func (d *Debouncer) LastMeasured() time.Time { return d.lastMeasured }
