package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/autogate/cmd/gate-agent/app/options"
	"github.com/autopeer-io/autogate/pkg/app"
	"github.com/autopeer-io/autogate/pkg/log"
)

const (
	commandName = "gate-agent"
	commandDesc = `The gate agent drives the entry and exit barriers of a parking lot.
It talks to approaching vehicles over the link transport, asks the
authorization bridge over MQTT whether to let them through, and confirms
each passage with the range sensor before closing the barrier again.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch a parking gate agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
