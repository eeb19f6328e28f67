package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for agent operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_agent_requests_total",
		Help: "Requests handled by the agent by strategy and response source",
	}, []string{"strategy", "source"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siteworker_agent_request_duration_seconds",
		Help:    "Time to produce a response by strategy",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"strategy"})

	installsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_agent_installs_total",
		Help: "Install attempts by result",
	}, []string{"result"}) // "ok", "failed"

	activationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_agent_activations_total",
		Help: "Activation attempts by result",
	}, []string{"result"})

	cachesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteworker_agent_caches_deleted_total",
		Help: "Caches of other versions deleted on activation",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_agent_messages_total",
		Help: "Control messages received by type",
	}, []string{"type"})

	storeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteworker_agent_store_failures_total",
		Help: "Responses that could not be written to the cache",
	})
)
