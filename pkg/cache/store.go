package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// ErrMissing is the first-class outcome of reading a key that holds no
// committed value. It is not logged as an error anywhere.
var ErrMissing = errors.New("cluster state missing")

// Store defines the keyed descriptor store with TTL and explicit delete.
// Implementations must make Put a full atomic overwrite so that replays of a
// deterministic job are idempotent.
type Store interface {
	// Put replaces the descriptor for its pet atomically. The TTL is
	// absolute from write time.
	Put(ctx context.Context, descriptor types.ClusterDescriptor, ttl time.Duration) error

	// Get returns the committed descriptor or ErrMissing.
	Get(ctx context.Context, petID string) (types.ClusterDescriptor, error)

	// Delete removes the descriptor and reports whether one existed, so
	// callers can distinguish removed from noop.
	Delete(ctx context.Context, petID string) (bool, error)
}
