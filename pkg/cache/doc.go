/*
Package cache stores per-pet cluster descriptors with a TTL.

The cache is the pipeline's only materialized state. Each pet has exactly one
key holding one JSON blob:

	{namespace}:pets:{pet_id}:cluster

Put is a full atomic overwrite with the TTL restarted on every write, which
is what makes replays of a deterministic job idempotent. Get returns
ErrMissing as a first-class outcome when the key is absent or expired; the
HTTP surface maps it to 404 and nothing logs it as an error. Delete reports
whether a value existed so invalidation can distinguish removed from noop.

The Store interface exists so tests and future backends can swap in; the
production implementation is RedisStore over the shared connection pool.
*/
package cache
