// Package metrics exposes the Prometheus instrumentation surface for a
// running listener: session counts, datagram and control-frame volume,
// reassembly drops, and per-remote congestion state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector registered for one listener instance.
// A nil *Metrics is valid and every method on it is a no-op, so callers
// that run without a metrics bind address can skip instrumentation
// without branching at every call site.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive        prometheus.Gauge
	DatagramsSent         prometheus.Counter
	DatagramsReceived     prometheus.Counter
	Retransmissions       prometheus.Counter
	AcksProcessed         prometheus.Counter
	NacksProcessed        prometheus.Counter
	SplitReassemblyDrops  *prometheus.CounterVec
	CongestionWindowBytes *prometheus.GaugeVec
}

// New registers a fresh set of collectors against a private registry, so
// multiple listeners in the same process (as in tests) never collide on
// default-registry metric names.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raknetd_sessions_active",
			Help: "Number of sessions currently in the listener's registry.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknetd_datagrams_sent_total",
			Help: "Total datagrams written to the socket by sessions.",
		}),
		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknetd_datagrams_received_total",
			Help: "Total data datagrams received by sessions.",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknetd_retransmissions_total",
			Help: "Total datagrams resent after a NACK or RTO expiry.",
		}),
		AcksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknetd_acks_processed_total",
			Help: "Total ACK frames applied to a send window.",
		}),
		NacksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknetd_nacks_processed_total",
			Help: "Total NACK frames applied to a send window.",
		}),
		SplitReassemblyDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raknetd_split_reassembly_drops_total",
			Help: "Fragments rejected by the split reassembler, by reason.",
		}, []string{"reason"}),
		CongestionWindowBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raknetd_congestion_window_bytes",
			Help: "Current congestion window size per remote address.",
		}, []string{"remote"}),
	}

	reg.MustRegister(
		m.SessionsActive,
		m.DatagramsSent,
		m.DatagramsReceived,
		m.Retransmissions,
		m.AcksProcessed,
		m.NacksProcessed,
		m.SplitReassemblyDrops,
		m.CongestionWindowBytes,
	)
	return m
}

// Handler returns the HTTP handler to serve on the configured metrics
// bind address.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The methods below are nil-safe so callers can instrument unconditionally
// even when metrics collection is disabled.

func (m *Metrics) IncDatagramsSent() {
	if m != nil {
		m.DatagramsSent.Inc()
	}
}

func (m *Metrics) IncDatagramsReceived() {
	if m != nil {
		m.DatagramsReceived.Inc()
	}
}

func (m *Metrics) IncRetransmissions() {
	if m != nil {
		m.Retransmissions.Inc()
	}
}

func (m *Metrics) IncAcksProcessed() {
	if m != nil {
		m.AcksProcessed.Inc()
	}
}

func (m *Metrics) IncNacksProcessed() {
	if m != nil {
		m.NacksProcessed.Inc()
	}
}

func (m *Metrics) ObserveSplitDrop(reason string) {
	if m != nil {
		m.SplitReassemblyDrops.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetCongestionWindow(remote string, bytes float64) {
	if m != nil {
		m.CongestionWindowBytes.WithLabelValues(remote).Set(bytes)
	}
}

func (m *Metrics) SetSessionsActive(n int) {
	if m != nil {
		m.SessionsActive.Set(float64(n))
	}
}
