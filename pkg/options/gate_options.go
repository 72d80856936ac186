package options

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GateOptions)(nil)

var (
	validHALs   = []string{"sim"}
	gateIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
)

// GateOptions contains the timing, threshold and actuator settings of the
// barrier controller.
type GateOptions struct {
	// ID names this controller in bridge topics and the MQTT client id.
	ID string `json:"id" mapstructure:"id"`

	// HAL selects the hardware backend.
	HAL string `json:"hal" mapstructure:"hal"`

	// Loop periods.
	TickInterval     time.Duration `json:"tick-interval" mapstructure:"tick-interval"`
	RampInterval     time.Duration `json:"ramp-interval" mapstructure:"ramp-interval"`
	DetectorInterval time.Duration `json:"detector-interval" mapstructure:"detector-interval"`

	// Barrier angles in degrees.
	ClosedAngle int `json:"closed-angle" mapstructure:"closed-angle"`
	OpenAngle   int `json:"open-angle" mapstructure:"open-angle"`

	// Distance thresholds in sensor units.
	ApproachThreshold int `json:"approach-threshold" mapstructure:"approach-threshold"`
	UnderThreshold    int `json:"under-threshold" mapstructure:"under-threshold"`
	ClearThreshold    int `json:"clear-threshold" mapstructure:"clear-threshold"`

	ConfirmDelay   time.Duration `json:"confirm-delay" mapstructure:"confirm-delay"`
	StabilizeDelay time.Duration `json:"stabilize-delay" mapstructure:"stabilize-delay"`
	EchoTimeout    time.Duration `json:"echo-timeout" mapstructure:"echo-timeout"`
	AdvertiseGrace time.Duration `json:"advertise-grace" mapstructure:"advertise-grace"`
	IndicatorHold  time.Duration `json:"indicator-hold" mapstructure:"indicator-hold"`
}

// NewGateOptions creates a GateOptions object with default parameters.
func NewGateOptions() *GateOptions {
	return &GateOptions{
		ID:                "gate-01",
		HAL:               "sim",
		TickInterval:      10 * time.Millisecond,
		RampInterval:      15 * time.Millisecond,
		DetectorInterval:  50 * time.Millisecond,
		ClosedAngle:       0,
		OpenAngle:         90,
		ApproachThreshold: 50,
		UnderThreshold:    15,
		ClearThreshold:    50,
		ConfirmDelay:      500 * time.Millisecond,
		StabilizeDelay:    500 * time.Millisecond,
		EchoTimeout:       30 * time.Millisecond,
		AdvertiseGrace:    2 * time.Second,
		IndicatorHold:     3 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GateOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if !gateIDRegex.MatchString(o.ID) {
		errors = append(errors, fmt.Errorf("--gate.id %q must be alphanumeric, '-' or '_', at most 64 characters", o.ID))
	}
	if !slices.Contains(validHALs, o.HAL) {
		errors = append(errors, fmt.Errorf("--gate.hal must be one of %v, got %q", validHALs, o.HAL))
	}
	for name, d := range map[string]time.Duration{
		"tick-interval":     o.TickInterval,
		"ramp-interval":     o.RampInterval,
		"detector-interval": o.DetectorInterval,
		"advertise-grace":   o.AdvertiseGrace,
		"echo-timeout":      o.EchoTimeout,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Errorf("--gate.%s must be positive", name))
		}
	}
	if o.ConfirmDelay < 0 || o.StabilizeDelay < 0 || o.IndicatorHold < 0 {
		errors = append(errors, fmt.Errorf("--gate delays must not be negative"))
	}
	if o.ClosedAngle < 0 || o.OpenAngle > 90 || o.ClosedAngle >= o.OpenAngle {
		errors = append(errors, fmt.Errorf("--gate angles must satisfy 0 <= closed-angle < open-angle <= 90"))
	}
	if o.UnderThreshold <= 0 || o.UnderThreshold > o.ClearThreshold {
		errors = append(errors, fmt.Errorf("--gate.under-threshold must be positive and not above --gate.clear-threshold"))
	}
	if o.ApproachThreshold <= 0 {
		errors = append(errors, fmt.Errorf("--gate.approach-threshold must be positive"))
	}

	return errors
}

// AddFlags adds flags related to the barrier controller to the specified FlagSet.
func (o *GateOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ID, "gate.id", o.ID, "Identifier of this gate controller in bridge topics.")
	fs.StringVar(&o.HAL, "gate.hal", o.HAL, fmt.Sprintf("Hardware backend, one of %v.", validHALs))

	fs.DurationVar(&o.TickInterval, "gate.tick-interval", o.TickInterval, "Period of the main control loop.")
	fs.DurationVar(&o.RampInterval, "gate.ramp-interval", o.RampInterval, "Period of the actuator ramp; the barrier moves one degree per tick.")
	fs.DurationVar(&o.DetectorInterval, "gate.detector-interval", o.DetectorInterval, "Period of the passage detector.")

	fs.IntVar(&o.ClosedAngle, "gate.closed-angle", o.ClosedAngle, "Barrier angle in degrees when closed.")
	fs.IntVar(&o.OpenAngle, "gate.open-angle", o.OpenAngle, "Barrier angle in degrees when open.")

	fs.IntVar(&o.ApproachThreshold, "gate.approach-threshold", o.ApproachThreshold, "Readings below this start advertising to vehicles.")
	fs.IntVar(&o.UnderThreshold, "gate.under-threshold", o.UnderThreshold, "Readings below this mean a vehicle is under the barrier.")
	fs.IntVar(&o.ClearThreshold, "gate.clear-threshold", o.ClearThreshold, "Readings at or above this mean the vehicle has left.")

	fs.DurationVar(&o.ConfirmDelay, "gate.confirm-delay", o.ConfirmDelay, "How long the lane must stay clear before passage is confirmed.")
	fs.DurationVar(&o.StabilizeDelay, "gate.stabilize-delay", o.StabilizeDelay, "Readings are ignored for this long after the barrier opens.")
	fs.DurationVar(&o.EchoTimeout, "gate.echo-timeout", o.EchoTimeout, "A range reading slower than this counts as no object.")
	fs.DurationVar(&o.AdvertiseGrace, "gate.advertise-grace", o.AdvertiseGrace, "Advertising stops only after proximity has been absent this long.")
	fs.DurationVar(&o.IndicatorHold, "gate.indicator-hold", o.IndicatorHold, "How long the indicator stays lit after a bridge command.")
}
