package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var IndexOps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "index_ops_total",
		Help: "Index operations by index type and operation",
	},
	[]string{"index_type", "op"},
)

var NodeCacheHits = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_node_cache_hits_total",
		Help: "Node cache hits",
	},
)

var NodeCacheMisses = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_node_cache_misses_total",
		Help: "Node cache misses",
	},
)

var NodeWriteBacks = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_node_writebacks_total",
		Help: "Node pages written back to disk",
	},
)

var NodeWriteBackFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_node_writeback_failures_total",
		Help: "Node page write-backs that failed",
	},
)

var FileCacheEvictions = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_file_cache_evictions_total",
		Help: "Data files evicted from the file cache",
	},
)
