/*
Package types defines the core data structures of the media clustering pipeline.

This package contains the fundamental entities that travel between the HTTP
surface, the stream broker, and the worker fleet: jobs, job payloads, clusters,
and the per-pet cluster descriptor. All other packages depend on it for wire
encoding, cache serialization, and the invariants that make replays safe.

# Core Types

Job flow:
  - Job: One unit of clustering work for a single pet
  - JobPayload: Source image ids, grouping labels, coverage, quality score

Cluster state:
  - ClusterDescriptor: The cached per-pet artifact, replaced wholesale on
    every successful job
  - Cluster: One group of images with a chosen hero
  - Member: A single image with its score and rank position
  - ClusterMetrics: Aggregate signals (coverage, quality, processed_at,
    strategy version)

# Wire Encoding

Jobs travel on the stream as flat string-to-string field maps. Nested
structures (payload, metadata) are embedded as JSON strings so the broker
never needs to understand them:

	fields, err := job.StreamFields()
	// job_id, pet_id, force, payload, attempts, emitted_at, ...

	job, err := types.JobFromStreamFields(msg.Values)
	if errors.Is(err, types.ErrDecode) {
		// poison message: dead-letter, never retry
	}

ErrDecode is terminal. A message that cannot be decoded will never decode on
retry, so consumers route it straight to the dead-letter stream.

Descriptors are stored as single JSON blobs:

	raw, err := descriptor.Encode()
	descriptor, err := types.DecodeDescriptor(raw)

# Invariants

  - A descriptor's Members are ordered by non-increasing score; Position
    matches the slice index
  - HeroImageID, when set, is always one of the cluster's members
  - JobPayload.Normalize deduplicates image ids and labels preserving first
    occurrence and input order, and clamps quality into [0,1]
  - Attempts on a freshly enqueued job is always zero; the broker's delivery
    counter is the authoritative attempts record afterwards
*/
package types
