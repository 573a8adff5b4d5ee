// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the ledger and the HTTP API.
package telemetry

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the Prometheus registry every metric set registers on
type Registry struct {
	registry  *prometheus.Registry
	namespace string
}

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{registry: reg, namespace: namespace}
}

// RegisterDB exports connection pool statistics of db
func (r *Registry) RegisterDB(db *sql.DB, name string) error {
	return r.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry for tests and exporters
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
