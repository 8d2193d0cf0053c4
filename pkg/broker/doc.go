/*
Package broker wraps the redis stream primitive behind the pipeline's
delivery semantics.

The broker package owns everything that touches the stream directly: group
creation, appends with trimming, blocking group reads, idle-message claims,
acknowledgements, dead-lettering, and the pending bookkeeping that drives
retries and backpressure. Consumers above it (pkg/worker, pkg/cluster) never
issue a raw stream command.

# Stream Layout

One main stream carries cluster jobs, one dead-letter stream collects
messages that will never succeed:

	streams:media.cluster               XADD ← producers
	  └─ group media-clustering-workers
	       ├─ consumer worker-1          XREADGROUP / XACK
	       └─ consumer worker-2          XAUTOCLAIM (reclaim)
	streams:media.cluster.deadletter    dead-lettered copies

The consumer group is created with MKSTREAM anchored at $, so the group only
sees messages appended after first startup. Creation is idempotent; a
BUSYGROUP reply is not an error, and a NOGROUP on read self-heals by
recreating the group.

# Delivery Bookkeeping

The broker's per-message delivery counter (XPENDING) is the authoritative
attempts record. Claims and redeliveries increment it; DeliveryCount exposes
it so the worker can dead-letter after the configured maximum. PendingCount
reports one consumer's unacked backlog and drives the backpressure decision.

Dead-lettering copies the original fields onto the dead-letter stream plus
three extras (dead_letter_reason, dead_letter_attempts,
dead_letter_origin_id), then acknowledges the original. Dead-lettered jobs
stay inspectable and replayable.

# Failure Surface

Every operation wraps broker failures in ErrUnavailable so callers can map
them uniformly: the HTTP surface to 503, the worker to its capped backoff
loop. A blocking read that times out with no messages is an empty result,
not an error.
*/
package broker
