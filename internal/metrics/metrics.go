// Package metrics provides Prometheus metrics for mirroring sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gabinator"

// Metrics is a private registry, so tests and several instances in one
// process do not collide. Methods on a nil *Metrics do nothing.
type Metrics struct {
	reg *prometheus.Registry

	framesSent      prometheus.Counter
	frameBytes      prometheus.Counter
	sendFailures    prometheus.Counter
	captureFailures prometheus.Counter
	frameSize       prometheus.Histogram
	sessions        *prometheus.CounterVec
	handshakeFails  *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		framesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_sent_total",
			Help:      "Frames delivered to the transport",
		}),
		frameBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_bytes_total",
			Help:      "Bytes of frames delivered to the transport",
		}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "send_failures_total",
			Help:      "Failed frame sends",
		}),
		captureFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "capture_failures_total",
			Help:      "Failed frame captures",
		}),
		frameSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_size_bytes",
			Help:      "Size of sent frames",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 12),
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by transport and outcome",
		}, []string{"mode", "outcome"}),
		handshakeFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aoa",
			Name:      "handshake_failures_total",
			Help:      "Failed AOA handshakes by failing step",
		}, []string{"reason"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently streaming",
		}),
	}
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) FrameSent(size int) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.frameBytes.Add(float64(size))
	m.frameSize.Observe(float64(size))
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.captureFailures.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded(mode, outcome string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) HandshakeFailed(reason string) {
	if m == nil {
		return
	}
	m.handshakeFails.WithLabelValues(reason).Inc()
}
