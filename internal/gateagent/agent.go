// Package gateagent assembles the barrier controller, its hardware loops, the
// authorization bridge and the operator HTTP server into one process.
package gateagent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/autogate/internal/gateagent/actuator"
	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/passage"
	"github.com/autopeer-io/autogate/internal/gateagent/server"
	"github.com/autopeer-io/autogate/pkg/log"
)

type Agent struct {
	gateID string

	ramps      []*actuator.Ramp
	detectors  []*passage.Detector
	controller *controller.Controller
	bridge     *bridge.Bridge // nil without a broker
	http       *server.Server
}

// Controller exposes the gate state machine, mainly for tests.
func (a *Agent) Controller() *controller.Controller { return a.controller }

// Run starts every loop and blocks until ctx is done or one of them fails.
func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting gate-agent", "gateID", a.gateID, "bridge", a.bridge != nil)

	g, ctx := errgroup.WithContext(ctx)

	for _, r := range a.ramps {
		g.Go(func() error { return r.Run(ctx) })
	}
	for _, d := range a.detectors {
		g.Go(func() error { return d.Run(ctx) })
	}
	g.Go(func() error { return a.controller.Run(ctx) })
	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Run(ctx) })
	}
	g.Go(func() error { return a.http.Start(ctx) })

	err := g.Wait()
	log.Info("Gate agent stopped", "gateID", a.gateID)
	return err
}
