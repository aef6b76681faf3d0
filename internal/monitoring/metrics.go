package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the frame pipeline. All
// collectors are registered against the registry passed to NewMetrics so
// tests can use an isolated registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesDecoded    prometheus.Counter
	TruncatedFrames  prometheus.Counter
	BufferOverflows  prometheus.Counter
	MalformedRecords prometheus.Counter
	BytesDropped     prometheus.Counter

	OccupancyEntered prometheus.Counter
	OccupancyExited  prometheus.Counter
	TrackedTargets   prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(deviceID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"device_id": deviceID}

	return &Metrics{
		registry: reg,
		FramesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_frames_decoded_total",
			Help:        "Complete frames decoded from the sensor byte stream",
			ConstLabels: labels,
		}),
		TruncatedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_truncated_frames_total",
			Help:        "Frames discarded because the declared length did not match the payload",
			ConstLabels: labels,
		}),
		BufferOverflows: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_buffer_overflows_total",
			Help:        "Incoming chunks dropped because the frame buffer was full",
			ConstLabels: labels,
		}),
		MalformedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_malformed_records_total",
			Help:        "TLV records skipped due to inconsistent declared lengths",
			ConstLabels: labels,
		}),
		BytesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_bytes_dropped_total",
			Help:        "Bytes discarded during resynchronization",
			ConstLabels: labels,
		}),
		OccupancyEntered: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_occupancy_entered_total",
			Help:        "Entry events counted from target track crossings",
			ConstLabels: labels,
		}),
		OccupancyExited: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mmwave_occupancy_exited_total",
			Help:        "Exit events counted from target track crossings",
			ConstLabels: labels,
		}),
		TrackedTargets: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "mmwave_tracked_targets",
			Help:        "Targets reported in the most recent frame",
			ConstLabels: labels,
		}),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint for this
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OccupancySync tracks the last published tracker totals so repeated
// snapshots only add the delta to the counters, which only move forward.
type OccupancySync struct {
	lastEntered uint64
	lastExited  uint64
}

// Publish adds the growth since the previous call to the occupancy counters.
func (o *OccupancySync) Publish(m *Metrics, entered, exited uint64) {
	if entered > o.lastEntered {
		m.OccupancyEntered.Add(float64(entered - o.lastEntered))
		o.lastEntered = entered
	}
	if exited > o.lastExited {
		m.OccupancyExited.Add(float64(exited - o.lastExited))
		o.lastExited = exited
	}
}
