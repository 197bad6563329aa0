// Package metrics exposes Prometheus instrumentation for the fabric
// process: a package-level registry guarded by an enabled flag, and nil-safe
// recorder methods so an instance built before InitRegistry is a no-op
// instead of a nil-pointer panic.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu      sync.RWMutex
	reg     *prometheus.Registry
	enabled bool
)

// InitRegistry creates the process-wide metrics registry. Call once during
// startup before constructing any *Registry/*Connection metrics instance.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	reg = prometheus.NewRegistry()
	enabled = true
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return reg
}
