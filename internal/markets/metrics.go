package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MetaCacheHitsTotal tracks metadata cache hits.
	MetaCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_markets_meta_cache_hits_total",
		Help: "Total number of market metadata cache hits",
	})

	// MetaCacheMissesTotal tracks metadata cache misses.
	MetaCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_markets_meta_cache_misses_total",
		Help: "Total number of market metadata cache misses",
	})
)
