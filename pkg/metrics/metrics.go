// Package metrics holds the prometheus collectors shared by the handler, the artifact
// cache and the model loaders. Collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modelfn"

var (
	Invocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invocations_total",
		Help:      "Handled invocations partitioned by response status code.",
	}, []string{"status"})

	InvocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "invocation_duration_seconds",
		Help:      "End to end handler latency.",
		Buckets:   prometheus.DefBuckets,
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "artifact_cache",
		Name:      "hits_total",
		Help:      "Artifact lookups served from the local cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "artifact_cache",
		Name:      "misses_total",
		Help:      "Artifact lookups that required a download.",
	})

	FetchedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "artifact_cache",
		Name:      "fetched_bytes_total",
		Help:      "Bytes downloaded from object storage into the cache.",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "artifact_cache",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent downloading an artifact.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_loads_total",
		Help:      "Artifact deserializations partitioned by format and result.",
	}, []string{"format", "result"})
)
