/*
Package cluster is the producer-and-reader facade over the pipeline.

The Service type bundles the operations the HTTP surface and the CLI need:
enqueueing jobs onto the stream (stamping job id, emitted_at, and a zero
attempts count), reading and invalidating cached per-pet state, preparing
the consumer group at startup, and probing broker health with a ping plus a
consumer-group lookup. The consuming side lives in pkg/worker; the two meet
only at the stream and the cache.
*/
package cluster
