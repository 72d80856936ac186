package gateagent

import (
	"fmt"

	"github.com/autopeer-io/autogate/internal/gateagent/actuator"
	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/hal"
	"github.com/autopeer-io/autogate/internal/gateagent/link"
	"github.com/autopeer-io/autogate/internal/gateagent/passage"
	"github.com/autopeer-io/autogate/internal/gateagent/server"
	"github.com/autopeer-io/autogate/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/autogate/pkg/mqtt/topic"
	"github.com/autopeer-io/autogate/pkg/options"
)

type Config struct {
	GateOptions *options.GateOptions
	MqttOptions *options.MqttOptions
	HttpOptions *options.HttpOptions
	LinkOptions *options.LinkOptions
}

// NewAgent builds every component of the gate agent. The bridge is only
// created when a broker is configured.
func (cfg *Config) NewAgent() (*Agent, error) {
	gopts := cfg.GateOptions

	systemHAL, err := hal.New(gopts.HAL)
	if err != nil {
		return nil, fmt.Errorf("failed to init hal: %w", err)
	}

	a := &Agent{gateID: gopts.ID}

	var (
		barriers  [len(core.Gates)]*core.BarrierState
		proximity [len(core.Gates)]controller.ProximitySource
	)
	for _, g := range core.Gates {
		barriers[g] = core.NewBarrierState(gopts.ClosedAngle)

		a.ramps = append(a.ramps, actuator.NewRamp(g, systemHAL.Servo(g), barriers[g], gopts.RampInterval))

		det := passage.NewDetector(g, systemHAL.Sensor(g), barriers[g], passage.Config{
			Thresholds: passage.Thresholds{
				Under:   gopts.UnderThreshold,
				Clear:   gopts.ClearThreshold,
				Confirm: gopts.ConfirmDelay,
			},
			Interval:    gopts.DetectorInterval,
			Stabilize:   gopts.StabilizeDelay,
			EchoTimeout: gopts.EchoTimeout,
		})
		a.detectors = append(a.detectors, det)
		proximity[g] = det
	}

	peerLink := link.New(link.Config{
		HandshakeTimeout: cfg.LinkOptions.HandshakeTimeout,
		WriteTimeout:     cfg.LinkOptions.WriteTimeout,
		IdleTimeout:      cfg.LinkOptions.IdleTimeout,
	})

	a.controller = controller.New(controller.Config{
		ClosedAngle:       gopts.ClosedAngle,
		OpenAngle:         gopts.OpenAngle,
		ApproachThreshold: gopts.ApproachThreshold,
		AdvertiseGrace:    gopts.AdvertiseGrace,
		TickInterval:      gopts.TickInterval,
		IndicatorHold:     gopts.IndicatorHold,
	}, peerLink, barriers, proximity, systemHAL.Indicator())
	peerLink.SetHandler(a.controller)

	deps := server.Deps{
		Status:   a.controller,
		Sink:     a.controller,
		Link:     peerLink,
		LinkPath: cfg.LinkOptions.Path,
	}
	if sim, ok := systemHAL.(server.DistanceSetter); ok {
		deps.Sim = sim
	}

	if cfg.MqttOptions.Enabled() {
		client, topics, err := cfg.initMqttClientAndTopicBuilder(gopts.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}

		a.bridge = bridge.New(client, a.controller, bridge.Config{
			GateID:         gopts.ID,
			Topics:         topics,
			ProbeInterval:  cfg.MqttOptions.ProbeInterval,
			ProbeTimeout:   cfg.MqttOptions.ProbeTimeout,
			PublishTimeout: cfg.MqttOptions.PublishTimeout,
		})
		a.controller.SetAuthorizer(a.bridge)
		deps.Bridge = a.bridge
	}

	a.http = server.NewServer(cfg.HttpOptions, deps)

	return a, nil
}

func (cfg *Config) initMqttClientAndTopicBuilder(gateID string) (mqtt.Client, *mqtttopic.Builder, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("autogate-%s", gateID)
	}

	mqttConfig.WillTopic = bridge.StatusTopic(topicBuilder, gateID)
	mqttConfig.WillPayload = bridge.OfflinePayload()
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	client, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}
	return client, topicBuilder, nil
}
