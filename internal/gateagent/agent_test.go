package gateagent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/pkg/options"
)

func testConfig() *Config {
	cfg := &Config{
		GateOptions: options.NewGateOptions(),
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
		LinkOptions: options.NewLinkOptions(),
	}
	cfg.HttpOptions.Addr = "127.0.0.1:0"
	cfg.GateOptions.TickInterval = time.Millisecond
	cfg.GateOptions.RampInterval = time.Millisecond
	cfg.GateOptions.DetectorInterval = time.Millisecond
	return cfg
}

func TestNewAgentWithoutBroker(t *testing.T) {
	a, err := testConfig().NewAgent()
	require.NoError(t, err)

	assert.Nil(t, a.bridge)
	assert.Len(t, a.ramps, len(core.Gates))
	assert.Len(t, a.detectors, len(core.Gates))
	assert.False(t, a.Controller().Status().BridgeEnabled)
}

func TestNewAgentWithBroker(t *testing.T) {
	cfg := testConfig()
	cfg.MqttOptions.Broker = "mqtt://127.0.0.1:1883"

	a, err := cfg.NewAgent()
	require.NoError(t, err)
	assert.NotNil(t, a.bridge)
}

func TestNewAgentUnknownHAL(t *testing.T) {
	cfg := testConfig()
	cfg.GateOptions.HAL = "gpio"

	_, err := cfg.NewAgent()
	assert.Error(t, err)
}

func TestAgentRunOpensAndStops(t *testing.T) {
	a, err := testConfig().NewAgent()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.Controller().Status().State == controller.StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	a.Controller().Stage(core.GateEntry, core.ActionOpen, core.SourceOperator)

	require.Eventually(t, func() bool {
		gs := a.Controller().Status().Gates[core.GateEntry]
		return gs.Open && gs.CurrentAngle == 90
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not stop")
	}
}
