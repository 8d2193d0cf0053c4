/*
Package metrics provides Prometheus instrumentation for the clustering pipeline.

The metrics package defines counters, gauges, and histograms for every stage
of the pipeline: enqueue, processing, reclaim, dead-lettering, cache traffic,
and the HTTP surface. Metrics register on the default registry at package
init and are served by a dedicated listener gated by the worker metrics
settings.

# Metrics Exposed

Pipeline:
  - sploot_cluster_jobs_enqueued_total: Jobs appended to the stream
  - sploot_cluster_jobs_processed_total{outcome}: Processing outcomes
    (ok, retry, dead_letter)
  - sploot_cluster_jobs_dead_lettered_total{reason}: Dead-letters by reason
    (decode, max_attempts)
  - sploot_cluster_jobs_reclaimed_total: Idle messages claimed from dead
    consumers
  - sploot_cluster_job_processing_seconds: Per-job processing latency
  - sploot_cluster_worker_pending{consumer}: Unacknowledged messages held
    per consumer, the backpressure signal

Cache:
  - sploot_cluster_cache_hits_total / sploot_cluster_cache_misses_total

HTTP surface:
  - sploot_api_requests_total{route,status}
  - sploot_api_request_duration_seconds{route}
  - sploot_api_auth_failures_total: Requests rejected for a bad token

# Usage

Counters are incremented at the call site:

	metrics.JobsProcessed.WithLabelValues("ok").Inc()
	metrics.WorkerPending.WithLabelValues(consumer).Set(float64(pending))

The scrape endpoint runs on its own server so worker-only deployments expose
metrics without the API:

	srv := metrics.NewServer(settings.MetricsListenAddr())
	srv.Start()
	defer srv.Stop(ctx)
*/
package metrics
