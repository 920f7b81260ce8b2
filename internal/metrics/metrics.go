package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nativemsg"

// Metrics holds the Prometheus collectors for one communicator.
type Metrics struct {
	FramesReceived prometheus.Counter
	BytesReceived  prometheus.Counter
	FramesSent     prometheus.Counter
	BytesSent      prometheus.Counter
	Desyncs        prometheus.Counter
	BufferedBytes  prometheus.Gauge

	SessionsStarted        prometheus.Counter
	UnexpectedTerminations prometheus.Counter
	StaleTerminations      prometheus.Counter
}

// New registers the collectors on reg. If reg is nil, a private registry is
// used so that multiple communicators in one process do not collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of complete frames read from the host",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total number of raw bytes read from the host stdout",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to the host",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of bytes written to the host stdin, headers included",
		}),
		Desyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "desyncs_total",
			Help:      "Total number of oversized frame headers that forced a buffer reset",
		}),
		BufferedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_bytes",
			Help:      "Bytes currently held waiting for the rest of a frame",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of host processes launched",
		}),
		UnexpectedTerminations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unexpected_terminations_total",
			Help:      "Total number of host exits reported to the delegate",
		}),
		StaleTerminations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_terminations_total",
			Help:      "Total number of exits from replaced or stopped sessions that were ignored",
		}),
	}
}
