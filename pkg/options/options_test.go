package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8080", false},
		{":8080", false},
		{"localhost:1883", false},
		{"[::1]:80", false},
		{"8080", true},
		{"host:port", true},
		{"host:70000", true},
		{"bad host:80", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGateOptionsDefaultsAreValid(t *testing.T) {
	assert.Empty(t, NewGateOptions().Validate())
	assert.Empty(t, NewHttpOptions().Validate())
	assert.Empty(t, NewLinkOptions().Validate())
	assert.Empty(t, NewMqttOptions().Validate())
}

func TestGateOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *GateOptions)
	}{
		{"bad id", func(o *GateOptions) { o.ID = "gate/01" }},
		{"unknown hal", func(o *GateOptions) { o.HAL = "gpio" }},
		{"zero tick", func(o *GateOptions) { o.TickInterval = 0 }},
		{"inverted angles", func(o *GateOptions) { o.ClosedAngle, o.OpenAngle = 90, 0 }},
		{"open beyond range", func(o *GateOptions) { o.OpenAngle = 120 }},
		{"under above clear", func(o *GateOptions) { o.UnderThreshold = 60 }},
		{"negative delay", func(o *GateOptions) { o.ConfirmDelay = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewGateOptions()
			tt.mutate(o)
			assert.NotEmpty(t, o.Validate())
		})
	}
}

func TestMqttOptionsEnabled(t *testing.T) {
	o := NewMqttOptions()
	assert.False(t, o.Enabled())

	o.Broker = "tcp://127.0.0.1:1883"
	require.True(t, o.Enabled())
	assert.Empty(t, o.Validate())

	o.ProbeTimeout = o.ProbeInterval
	assert.Len(t, o.Validate(), 1)

	cfg := o.ToClientConfig()
	assert.Equal(t, "tcp://127.0.0.1:1883", cfg.BrokerURL)
	assert.Equal(t, uint16(20), cfg.KeepAlive)
}

func TestGateOptionsFlags(t *testing.T) {
	o := NewGateOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--gate.id=north", "--gate.open-angle=80", "--gate.confirm-delay=1s"}))
	assert.Equal(t, "north", o.ID)
	assert.Equal(t, 80, o.OpenAngle)
	assert.Equal(t, time.Second, o.ConfirmDelay)
}
