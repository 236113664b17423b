package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports the aggregator counters to Prometheus.
type Metrics struct {
	SentBytes     prometheus.Counter
	SentMessages  prometheus.Counter
	DroppedFrames prometheus.Counter
	Throughput    prometheus.Gauge
}

// NewMetrics registers the send metrics on reg. A nil reg returns nil, which
// every observe method accepts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		SentBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_sent_bytes_total",
			Help: "Total PCM bytes written to the backend socket",
		}),
		SentMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_sent_messages_total",
			Help: "Total audio frames written to the backend socket",
		}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_dropped_frames_total",
			Help: "Audio frames dropped because the connection was not open",
		}),
		Throughput: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_send_throughput_bytes",
			Help: "Outbound bytes per second over the last telemetry window",
		}),
	}
}

func (m *Metrics) observeSend(n int) {
	if m == nil {
		return
	}
	m.SentBytes.Add(float64(n))
	m.SentMessages.Inc()
}

func (m *Metrics) observeDrop() {
	if m == nil {
		return
	}
	m.DroppedFrames.Inc()
}

func (m *Metrics) observeThroughput(bps float64) {
	if m == nil {
		return
	}
	m.Throughput.Set(bps)
}
