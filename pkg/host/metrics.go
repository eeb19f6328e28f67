package host

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "siteworker_host_clients",
		Help: "Open clients known to the host",
	})

	promotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteworker_host_promotions_total",
		Help: "Waiting agents promoted to active",
	})

	activeVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "siteworker_host_active_version",
		Help: "Set to 1 for the version of the active agent",
	}, []string{"version"})
)
