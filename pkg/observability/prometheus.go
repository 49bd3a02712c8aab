package observability

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
)

// The prometheus pipeline bridges the OTel instruments onto a private
// client_golang registry so services can expose a /metrics scrape endpoint
// instead of (or alongside) pushing to a collector.
var (
	promMu       sync.Mutex
	promRegistry *prometheus.Registry
)

// newPrometheusReader creates the scrape reader and the registry it feeds.
// Each Init in prometheus mode gets a fresh registry, so re-initialization
// never trips duplicate-registration errors.
func newPrometheusReader() (*otelprom.Exporter, error) {
	promMu.Lock()
	defer promMu.Unlock()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	promRegistry = registry
	return exporter, nil
}

func resetPromRegistry() {
	promMu.Lock()
	defer promMu.Unlock()
	promRegistry = nil
}

// MetricsHandler returns the /metrics scrape handler. When the SDK is not in
// prometheus exporter mode it serves 404.
func MetricsHandler() http.Handler {
	promMu.Lock()
	registry := promRegistry
	promMu.Unlock()

	if registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
