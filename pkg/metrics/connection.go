package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConnectionMetrics tracks the credit-based flow control state
// of one connection. A nil *ConnectionMetrics is safe to call methods on,
// so callers can construct it unconditionally and get zero overhead when
// metrics are disabled.
type ConnectionMetrics struct {
	bytesSent         *prometheus.GaugeVec
	bytesAcknowledged *prometheus.GaugeVec
	bytesReceived     *prometheus.GaugeVec
	processedBytes    *prometheus.GaugeVec
	framesSent        *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	state             *prometheus.GaugeVec
}

// NewConnectionMetrics returns nil when metrics are disabled.
func NewConnectionMetrics() *ConnectionMetrics {
	if !IsEnabled() {
		return nil
	}
	r := GetRegistry()
	labels := []string{"connection"}

	return &ConnectionMetrics{
		bytesSent: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_connection_bytes_sent",
			Help: "Bytes sent but not yet acknowledged, mod 2^16.",
		}, labels),
		bytesAcknowledged: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_connection_bytes_acknowledged",
			Help: "Bytes the peer has acknowledged, mod 2^16.",
		}, labels),
		bytesReceived: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_connection_bytes_received",
			Help: "Bytes received from the peer, mod 2^16.",
		}, labels),
		processedBytes: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_connection_processed_bytes",
			Help: "Bytes processed and ready to acknowledge, mod 2^16.",
		}, labels),
		framesSent: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "iocom_connection_frames_sent_total",
			Help: "Total frames sent on this connection.",
		}, labels),
		framesReceived: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "iocom_connection_frames_received_total",
			Help: "Total frames received on this connection.",
		}, labels),
		state: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_connection_state",
			Help: "Current connection state machine value.",
		}, labels),
	}
}

func (m *ConnectionMetrics) SetBytesSent(conn string, v uint32) {
	if m == nil {
		return
	}
	m.bytesSent.WithLabelValues(conn).Set(float64(v))
}

func (m *ConnectionMetrics) SetBytesAcknowledged(conn string, v uint32) {
	if m == nil {
		return
	}
	m.bytesAcknowledged.WithLabelValues(conn).Set(float64(v))
}

func (m *ConnectionMetrics) SetBytesReceived(conn string, v uint32) {
	if m == nil {
		return
	}
	m.bytesReceived.WithLabelValues(conn).Set(float64(v))
}

func (m *ConnectionMetrics) SetProcessedBytes(conn string, v uint32) {
	if m == nil {
		return
	}
	m.processedBytes.WithLabelValues(conn).Set(float64(v))
}

func (m *ConnectionMetrics) IncFramesSent(conn string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(conn).Inc()
}

func (m *ConnectionMetrics) IncFramesReceived(conn string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(conn).Inc()
}

func (m *ConnectionMetrics) SetState(conn string, state int) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(conn).Set(float64(state))
}
