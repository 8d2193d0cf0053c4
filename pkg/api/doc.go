/*
Package api implements the token-authenticated internal HTTP surface.

The api package exposes the pipeline to trusted first-party services: job
submission, cluster state reads, cache invalidation, and health probes. It is
an internal surface with a single shared-secret scheme; it performs no user
authentication and is not meant to face the public internet.

# Endpoints

	GET  /healthz                              liveness, no auth
	POST /internal/cluster-jobs                enqueue one job      → 202
	GET  /internal/pets/{pet_id}/clusters      read cached state    → 200 | 404
	POST /internal/pets/{pet_id}/invalidate    drop cached state    → 202
	GET  /internal/health/redis                broker probe         → 200 | 503

All /internal routes require the X-Internal-Token header. The token check is
a constant-time compare and runs before any body read; a mismatch yields a
fixed 401 body that does not distinguish missing from wrong.

# Error Policy

  - 400: unparseable request body
  - 401: bad or missing internal token
  - 404: no cached state for the pet (a first-class outcome, not an error)
  - 422: structurally valid body missing pet_id
  - 503: broker unavailable
  - 500: anything else, with no internal detail leaked

Enqueue returns 202 as soon as the append is durable. It deliberately does
not wait for processing; callers poll the read endpoint for the outcome.

# Instrumentation

Every route is wrapped with a per-request deadline, a structured request log
(route, method, status, pet_id, latency), and the request counter/duration
metrics. 5xx responses log at error level, everything else at info.

# Usage

	server := api.NewServer(service, api.Config{
		ListenAddr:     ":8000",
		InternalToken:  settings.InternalToken,
		RequestTimeout: 10 * time.Second,
	})
	go server.Start()
	defer server.Stop(ctx)

Handler() exposes the routed mux for httptest-based tests.
*/
package api
