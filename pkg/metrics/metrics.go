// Package metrics exposes the Prometheus metrics of the site worker.
// All metrics are defined in their respective packages (cache, client,
// agent, host) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and documents every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer the site worker metrics live in.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - siteworker_cache_hits_total{backend} (Counter): Cache hits by storage backend
//   - siteworker_cache_misses_total{backend} (Counter): Cache misses by storage backend
//   - siteworker_cache_stored_bytes_total{backend} (Counter): Bytes written to the cache
//   - siteworker_cache_drops_total{backend} (Counter): Named caches deleted
//   - siteworker_cache_errors_total{operation} (Counter): Storage operation errors
//
// Fetch Metrics (pkg/client):
//   - siteworker_fetch_requests_total{status} (Counter): Origin fetches by HTTP status
//   - siteworker_fetch_duration_seconds{method} (Histogram): Origin fetch duration
//   - siteworker_fetch_errors_total{class} (Counter): Fetch errors by class (client, server, network)
//
// Agent Metrics (pkg/agent):
//   - siteworker_agent_requests_total{strategy, source} (Counter): Requests by strategy and response source
//   - siteworker_agent_request_duration_seconds{strategy} (Histogram): Time to produce a response
//   - siteworker_agent_installs_total{result} (Counter): Install attempts
//   - siteworker_agent_activations_total{result} (Counter): Activation attempts
//   - siteworker_agent_caches_deleted_total (Counter): Caches of other versions deleted
//   - siteworker_agent_messages_total{type} (Counter): Control messages by type
//   - siteworker_agent_store_failures_total (Counter): Responses that could not be cached
//
// Host Metrics (pkg/host):
//   - siteworker_host_clients (Gauge): Open clients
//   - siteworker_host_promotions_total (Counter): Waiting agents promoted
//   - siteworker_host_active_version{version} (Gauge): 1 for the active version
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(siteworker_cache_hits_total[5m])) /
//   (sum(rate(siteworker_cache_hits_total[5m])) + sum(rate(siteworker_cache_misses_total[5m])))
//
//   # Offline Serving Rate (documents answered from cache)
//   sum(rate(siteworker_agent_requests_total{strategy="network-first",source=~"cache|root-fallback"}[5m]))
//
//   # Origin Error Rate
//   rate(siteworker_fetch_errors_total[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(siteworker_fetch_duration_seconds_bucket[5m]))
