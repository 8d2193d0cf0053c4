/*
Package strategy derives cluster descriptors from job payloads.

Strategies are pure functions behind a narrow interface: no I/O, no failure
paths, and identical output for identical inputs (given a pinned clock).
Determinism is the property the rest of the pipeline leans on: an
at-least-once replay after a crash overwrites the cache with the same bytes.

# Heuristic Strategy

The default implementation (version "heuristic-v1") works in three steps:

 1. Partition: images are assigned round-robin over the payload labels in
    input order. A payload with no labels gets a single synthesized "All"
    group.
 2. Score: each image's score blends the payload quality (weight 0.7) with
    a recency bias over its input position (weight 0.3), clamped to [0,1].
 3. Rank: members sort by descending score with ascending input index as
    the tiebreak, truncate to the cluster size bound, and the top member
    becomes the hero.

Empty or malformed payloads normalize to a descriptor with zero clusters and
the payload's metrics echoed; the strategy never fails.

An embedding-backed strategy slots in behind the same interface by replacing
the partition and scoring steps with nearest-centroid assignment.
*/
package strategy
