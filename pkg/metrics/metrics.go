// Package metrics provides Prometheus instrumentation for the session
// engine: a package-level registry gate (InitRegistry/IsEnabled/GetRegistry)
// so every metrics constructor can return nil when metrics are disabled, and
// every recording method is a nil-receiver no-op — callers never need an
// `if metrics != nil` check at the call site.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables metrics collection and creates the registry every
// constructor in this package registers against. Call once at process
// startup before creating any Session.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}
