/*
Package worker implements the stream consumers that turn cluster jobs into
cached per-pet state.

The worker package is the consuming side of the pipeline. Each worker is a
long-lived member of the shared consumer group: it reads job batches from the
stream, dispatches them to the clustering strategy, commits the resulting
descriptor to the cache, acknowledges the message, and periodically reclaims
messages abandoned by dead consumers.

# Architecture

	┌───────────────────── WORKER ──────────────────────┐
	│                                                     │
	│  ┌─────────────────────────────────────┐          │
	│  │            Tick Loop                 │          │
	│  │  - XPENDING count (backpressure)     │          │
	│  │  - XREADGROUP > (new messages)       │          │
	│  │  - XAUTOCLAIM (reclaim pass)         │          │
	│  └──────┬───────────────────┬──────────┘          │
	│         │                   │                      │
	│  ┌──────▼───────┐   ┌──────▼────────────┐        │
	│  │   handle()    │   │    reclaim()      │        │
	│  │  - decode     │   │  - claim idle     │        │
	│  │  - strategy   │   │  - delivery count │        │
	│  │  - cache Put  │   │  - retry or DLQ   │        │
	│  │  - XACK       │   └───────────────────┘        │
	│  └──────────────┘                                  │
	│                                                     │
	│  States: starting → consuming ⇄ reclaiming         │
	│          → draining → stopped | failed             │
	└────────────────────────────────────────────────────┘

Workers are single-threaded internally. Parallelism comes from running more
instances in the same consumer group, each with a unique consumer name; the
Pool type manages N such instances in one process.

# Delivery Semantics

Processing is at-least-once with idempotent overwrite:

 1. Decode the message. A decode failure is terminal: the message goes to
    the dead-letter stream with reason "decode" and is acknowledged.
 2. Run the strategy. Strategies are pure and deterministic, so a replay of
    the same job produces an identical descriptor.
 3. Put the descriptor into the cache. On failure the message stays pending
    and the reclaim path retries it later.
 4. Acknowledge. A crash between Put and Ack replays into an identical
    overwrite, which is why the Put-then-Ack order is load-bearing.

Messages idle past the retry threshold are claimed with XAUTOCLAIM. The
broker's per-message delivery counter doubles as the attempts record: once it
reaches the configured maximum the message is copied to the dead-letter
stream, stamped with the reason and attempts, and acknowledged.

# Failure Handling

Message-level errors never terminate the loop. Broker-level errors back off
exponentially from 500ms to 30s; after ten consecutive failures the worker
stores the failed state and returns ErrFatal so the process exits non-zero
for its supervisor. Cancellation of the run context drains cleanly: the
current message finishes, nothing new is read, and unacked messages are left
pending for the next owner.

# Usage

	pool := worker.NewPool(stream, store, strat, worker.Config{
		Consumer:    "media-clustering-worker",
		ReadCount:   16,
		ReadBlock:   5 * time.Second,
		RetryIdle:   time.Minute,
		MaxAttempts: 5,
		MaxPending:  64,
		CacheTTL:    24 * time.Hour,
	}, 4)

	if err := pool.Run(ctx); err != nil {
		// ErrFatal: broker unreachable beyond the failure cap
	}
*/
package worker
