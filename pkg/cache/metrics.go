package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteworker_cache_hits_total",
			Help: "Total number of cache store hits",
		},
		[]string{"backend"}, // "memory", "redis", "sqlite"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteworker_cache_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"backend"},
	)

	// CacheStoredBytes tracks bytes written to the cache store
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteworker_cache_stored_bytes_total",
			Help: "Total number of encoded bytes written to the cache store",
		},
		[]string{"backend"},
	)

	// CacheDrops tracks deleted named caches
	CacheDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteworker_cache_drops_total",
			Help: "Total number of named caches deleted",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteworker_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "get", "set", "delete", "drop", "keys", "list", "has"
	)
)
