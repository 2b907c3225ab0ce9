package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "avpush"

// Metrics 推流相关的prometheus指标, 所有方法对nil安全
type Metrics struct {
	// Session metrics
	ActiveSessions prometheus.Gauge
	SessionStates  *prometheus.CounterVec
	Failovers      prometheus.Counter

	// Transport metrics
	TransportState  *prometheus.GaugeVec
	ConnectAttempts *prometheus.CounterVec
	ConnectFailures *prometheus.CounterVec
	ReconnectDelay  prometheus.Histogram
	BytesSent       *prometheus.CounterVec

	// Frame metrics
	FramesSent    *prometheus.CounterVec
	FramesDropped *prometheus.CounterVec
}

// New 在reg上注册全部指标, reg为nil时使用默认registry
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently streaming",
		}),
		SessionStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_state_changes_total",
			Help:      "Session state transitions by target state",
		}, []string{"state"}),
		Failovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Number of primary transport switches caused by failures",
		}),

		TransportState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_state",
			Help:      "Current transport state (0 disconnected .. 5 error)",
		}, []string{"transport", "protocol"}),
		ConnectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_connect_attempts_total",
			Help:      "Connect attempts including reconnects",
		}, []string{"protocol"}),
		ConnectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_connect_failures_total",
			Help:      "Failed connect attempts",
		}, []string{"protocol"}),
		ReconnectDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_reconnect_delay_seconds",
			Help:      "Scheduled reconnect delays",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		BytesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_sent_total",
			Help:      "Bytes written to the network",
		}, []string{"protocol"}),

		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames handed to the network",
		}, []string{"media"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped before reaching the network",
		}, []string{"media"}),
	}
}

func (m *Metrics) SessionState(state string) {
	if m == nil {
		return
	}
	m.SessionStates.WithLabelValues(state).Inc()
}

func (m *Metrics) SessionActive(delta float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(delta)
}

func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.Failovers.Inc()
}

func (m *Metrics) SetTransportState(id, protocol string, state int) {
	if m == nil {
		return
	}
	m.TransportState.WithLabelValues(id, protocol).Set(float64(state))
}

// RemoveTransport 传输被移除后清理其label
func (m *Metrics) RemoveTransport(id, protocol string) {
	if m == nil {
		return
	}
	m.TransportState.DeleteLabelValues(id, protocol)
}

func (m *Metrics) ConnectAttempt(protocol string, err error) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(protocol).Inc()
	if err != nil {
		m.ConnectFailures.WithLabelValues(protocol).Inc()
	}
}

func (m *Metrics) Reconnect(delay time.Duration) {
	if m == nil {
		return
	}
	m.ReconnectDelay.Observe(delay.Seconds())
}

func (m *Metrics) Sent(protocol, media string, bytes int) {
	if m == nil {
		return
	}
	m.BytesSent.WithLabelValues(protocol).Add(float64(bytes))
	m.FramesSent.WithLabelValues(media).Inc()
}

func (m *Metrics) Dropped(media string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(media).Inc()
}
