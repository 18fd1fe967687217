package telemetry

import "github.com/prometheus/client_golang/prometheus"

var OrdersProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "orderenrich",
		Subsystem: "pipeline",
		Name:      "processed_total",
		Help:      "Total number of order intents processed, by terminal outcome.",
	},
	[]string{"outcome"},
)

var PipelineDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "orderenrich",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Time to drive a single order intent through the pipeline.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"outcome"},
)

var EnrichmentFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "orderenrich",
		Subsystem: "enrichment",
		Name:      "failures_total",
		Help:      "Total number of enrichment failures by classification.",
	},
	[]string{"kind"},
)

var CacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "orderenrich",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of cache lookups by resource and hit/miss.",
	},
	[]string{"resource", "result"},
)

var LockContentionTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "orderenrich",
		Subsystem: "lock",
		Name:      "contention_total",
		Help:      "Total number of lock acquisition attempts that found the order already locked.",
	},
)

var LedgerRecordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "orderenrich",
		Subsystem: "ledger",
		Name:      "records_total",
		Help:      "Total number of failure-ledger writes by outcome.",
	},
	[]string{"status"},
)

// All returns every orderenrich-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		OrdersProcessedTotal,
		PipelineDuration,
		EnrichmentFailuresTotal,
		CacheHitsTotal,
		LockContentionTotal,
		LedgerRecordsTotal,
	}
}
