// Package metrics defines the instrumentation interfaces used by the server.
//
// Every constructor returns nil when metrics are disabled; all consumers
// accept nil and skip recording, so disabled metrics cost nothing.
// Implementations live in pkg/metrics/prometheus and register themselves
// here on import.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics with a fresh registry that also carries the
// Go runtime and process collectors.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// Reset disables metrics.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

func IsEnabled() bool {
	return GetRegistry() != nil
}

// GetRegistry returns the active registry or nil.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}
