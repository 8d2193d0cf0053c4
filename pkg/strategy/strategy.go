package strategy

import (
	"time"

	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// Strategy turns a job payload into a cluster descriptor. Implementations
// are pure: no I/O, no failure paths, and byte-identical output for
// identical inputs. Determinism is what makes at-least-once replay safe;
// a crash between cache write and ack replays into an identical overwrite.
//
// The default binding is the heuristic strategy. An embedding-backed
// strategy swaps in behind the same contract, replacing the partition and
// scoring steps with nearest-centroid assignment.
type Strategy interface {
	// Cluster produces the descriptor for one pet. The descriptor's
	// UpdatedAt and metrics ProcessedAt come from the strategy's clock.
	Cluster(petID string, payload types.JobPayload) types.ClusterDescriptor

	// Version identifies the strategy for metrics stamping and future
	// routing.
	Version() string
}

// Params tunes a strategy instance.
type Params struct {
	// MaxClusterSize bounds the members kept per cluster.
	MaxClusterSize int

	// Clock supplies processed_at timestamps. Defaults to time.Now;
	// tests pin it for byte-identical output.
	Clock func() time.Time
}

func (p Params) clock() func() time.Time {
	if p.Clock != nil {
		return p.Clock
	}
	return time.Now
}
