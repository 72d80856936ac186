package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every gate-agent collector. It is served at /metrics.
var Registry = prometheus.NewRegistry()

var (
	// BridgeConnectivityStatus records the last liveness probe result.
	// 1 = Online, 0 = Offline
	BridgeConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autogate_bridge_connectivity_status",
			Help: "The connectivity status to the authorization bridge (1=Online, 0=Offline).",
		},
	)

	// FramesReceivedTotal counts link frames by command and decode result.
	FramesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autogate_frames_received_total",
			Help: "Total number of link frames received from vehicles.",
		},
		[]string{"command", "result"}, // result: ok/frame_error/malformed/rejected
	)

	// BarrierOperationsTotal counts accepted barrier actions.
	BarrierOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autogate_barrier_operations_total",
			Help: "Total number of barrier open/close actions applied.",
		},
		[]string{"gate", "action", "source"}, // source: bridge/operator/vehicle/passage
	)

	PassageConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autogate_passage_confirmed_total",
			Help: "Total number of vehicle passages confirmed by the distance sensor.",
		},
		[]string{"gate"},
	)

	// BridgePublishTotal counts publish attempts towards the bridge.
	BridgePublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autogate_bridge_publish_total",
			Help: "Total number of messages published to the authorization bridge.",
		},
		[]string{"topic", "result"}, // result: success/failed/unavailable
	)

	// ProbeLatency records the round trip of liveness probes.
	ProbeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autogate_bridge_probe_latency_seconds",
			Help:    "Latency of bridge liveness probes.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25},
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		BridgeConnectivityStatus,
		FramesReceivedTotal,
		BarrierOperationsTotal,
		PassageConfirmedTotal,
		BridgePublishTotal,
		ProbeLatency,
	)
}
