package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	JobsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sploot_cluster_jobs_enqueued_total",
			Help: "Total number of cluster jobs appended to the stream",
		},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sploot_cluster_jobs_processed_total",
			Help: "Total number of cluster jobs processed by outcome",
		},
		[]string{"outcome"},
	)

	JobsDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sploot_cluster_jobs_dead_lettered_total",
			Help: "Total number of cluster jobs moved to the dead-letter stream by reason",
		},
		[]string{"reason"},
	)

	JobsReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sploot_cluster_jobs_reclaimed_total",
			Help: "Total number of idle messages claimed from other consumers",
		},
	)

	JobProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sploot_cluster_job_processing_seconds",
			Help:    "Time taken to process one cluster job in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkerPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sploot_cluster_worker_pending",
			Help: "Messages held but not yet acknowledged per consumer",
		},
		[]string{"consumer"},
	)

	// Cache metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sploot_cluster_cache_hits_total",
			Help: "Total number of cluster state cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sploot_cluster_cache_misses_total",
			Help: "Total number of cluster state cache misses",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sploot_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sploot_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sploot_api_auth_failures_total",
			Help: "Total number of internal requests rejected for a bad token",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsEnqueued)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobsDeadLettered)
	prometheus.MustRegister(JobsReclaimed)
	prometheus.MustRegister(JobProcessingDuration)
	prometheus.MustRegister(WorkerPending)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(AuthFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
