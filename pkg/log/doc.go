/*
Package log provides structured logging for the clustering service using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and support
filtering by severity for production debugging.

# Architecture

A single global logger is initialized once at startup and handed out as child
loggers carrying contextual fields:

	┌──────────────── LOGGING SYSTEM ────────────────┐
	│                                                  │
	│  ┌──────────────────────────────────┐          │
	│  │         Global Logger             │          │
	│  │  - Zerolog instance               │          │
	│  │  - Initialized via log.Init()     │          │
	│  │  - Thread-safe concurrent writes  │          │
	│  └───────────────┬──────────────────┘          │
	│                  │                               │
	│  ┌───────────────▼──────────────────┐          │
	│  │        Child Loggers              │          │
	│  │  - WithComponent("worker-pool")   │          │
	│  │  - WithConsumer("worker-3")       │          │
	│  │  - WithPetID("pet-abc123")        │          │
	│  │  - WithJobID("job-def456")        │          │
	│  └───────────────┬──────────────────┘          │
	│                  │                               │
	│  ┌───────────────▼──────────────────┐          │
	│  │          Log Output               │          │
	│  │  JSON (production):               │          │
	│  │  {"level":"info",                 │          │
	│  │   "component":"broker",           │          │
	│  │   "time":"2026-08-26T10:30:00Z",  │          │
	│  │   "message":"message dead-lettered"}│        │
	│  │                                    │          │
	│  │  Console (local):                 │          │
	│  │  10:30AM INF message dead-lettered │         │
	│  └──────────────────────────────────┘          │
	└────────────────────────────────────────────────┘

# Usage

Initialize once in main:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Create component loggers:

	logger := log.WithComponent("api")
	logger.Info().Str("addr", ":8000").Msg("http surface listening")

Pipeline events carry their entity ids:

	logger := log.WithConsumer("media-clustering-worker-1")
	logger.Warn().Err(err).Str("message_id", id).Msg("ack failed after cache write")

# Log Levels

  - debug: per-message processing detail, reclaim pagination
  - info: lifecycle events, enqueue/process/invalidate outcomes
  - warn: transient broker errors, backpressure, dead-letters
  - error: decode failures, unrecoverable broker conditions

LOG_LEVEL selects the threshold; LOG_JSON picks the output format and defaults
to JSON everywhere except the local environment.
*/
package log
