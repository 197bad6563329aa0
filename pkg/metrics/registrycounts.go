package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FabricMetrics tracks the population of a registry: live
// memory blocks, connections, networks, and devices. Nil-safe like
// ConnectionMetrics.
type FabricMetrics struct {
	memoryBlocks *prometheus.GaugeVec
	connections  prometheus.Gauge
	networks     prometheus.Gauge
	devices      prometheus.Gauge
}

// NewFabricMetrics returns nil when metrics are disabled.
func NewFabricMetrics() *FabricMetrics {
	if !IsEnabled() {
		return nil
	}
	r := GetRegistry()

	return &FabricMetrics{
		memoryBlocks: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "iocom_memory_blocks",
			Help: "Number of live memory blocks by direction.",
		}, []string{"direction"}),
		connections: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "iocom_connections",
			Help: "Number of live connections.",
		}),
		networks: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "iocom_networks",
			Help: "Number of known dynamic networks.",
		}),
		devices: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "iocom_devices",
			Help: "Number of known devices across all networks.",
		}),
	}
}

func (m *FabricMetrics) SetMemoryBlocks(direction string, n int) {
	if m == nil {
		return
	}
	m.memoryBlocks.WithLabelValues(direction).Set(float64(n))
}

func (m *FabricMetrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *FabricMetrics) SetNetworks(n int) {
	if m == nil {
		return
	}
	m.networks.Set(float64(n))
}

func (m *FabricMetrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}
