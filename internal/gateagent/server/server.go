// Package server is the operator HTTP surface of the gate agent: health,
// status, manual barrier commands, the bridge connectivity stream, metrics and
// the vehicle link endpoint.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/pkg/metrics"
	"github.com/autopeer-io/autogate/pkg/log"
	"github.com/autopeer-io/autogate/pkg/options"
)

// StatusProvider returns the latest controller snapshot.
type StatusProvider interface {
	Status() controller.Status
}

// DistanceSetter drives a simulated range sensor.
type DistanceSetter interface {
	SetDistance(g core.Gate, dist int) error
}

// ConnectivityFeed streams bridge connectivity changes.
type ConnectivityFeed interface {
	Subscribe() (<-chan bool, func())
}

type Deps struct {
	Status StatusProvider
	Sink   core.CommandSink

	// Link serves vehicle upgrades at LinkPath when set.
	Link     http.Handler
	LinkPath string

	// Sim and Bridge are optional; their routes are only mounted when set.
	Sim    DistanceSetter
	Bridge ConnectivityFeed
}

type Server struct {
	server   *http.Server
	options  *options.HttpOptions
	deps     Deps
	upgrader websocket.Upgrader
}

func NewServer(opts *options.HttpOptions, deps Deps) *Server {
	s := &Server{
		options: opts,
		deps:    deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Router builds the route table. It is exported for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if s.deps.Link != nil {
		r.Handle(s.deps.LinkPath, s.deps.Link)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/barriers/{gate}/{action}", s.handleBarrier).Methods(http.MethodPost)

	if s.deps.Sim != nil {
		api.HandleFunc("/sim/gates/{gate}/distance", s.handleDistance).Methods(http.MethodPut)
	}
	if s.deps.Bridge != nil {
		api.HandleFunc("/bridge/stream", s.handleBridgeStream).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}
