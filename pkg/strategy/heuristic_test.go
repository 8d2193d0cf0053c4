package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

func pinnedClock() func() time.Time {
	at := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestHeuristicRoundRobinPartition(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{
		ImageIDs:     []string{"a", "b", "c", "d", "e"},
		Labels:       []string{"outdoor", "indoor"},
		QualityScore: 0.8,
	})

	require.Len(t, descriptor.Clusters, 2)

	outdoor := descriptor.Clusters[0]
	indoor := descriptor.Clusters[1]
	assert.Equal(t, "pet-1-cluster-0", outdoor.ID)
	assert.Equal(t, "outdoor", outdoor.Label)
	assert.Equal(t, "indoor", indoor.Label)

	// Round-robin over input order: even indices to group 0, odd to group 1
	ids := func(members []types.Member) []string {
		out := make([]string, len(members))
		for i, m := range members {
			out[i] = m.ImageID
		}
		return out
	}
	assert.Equal(t, []string{"a", "c", "e"}, ids(outdoor.Members))
	assert.Equal(t, []string{"b", "d"}, ids(indoor.Members))
}

func TestHeuristicHeroIsTopMember(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{
		ImageIDs:     []string{"a", "b", "c"},
		QualityScore: 0.9,
	})

	require.Len(t, descriptor.Clusters, 1)
	cluster := descriptor.Clusters[0]
	require.NotEmpty(t, cluster.Members)
	assert.Equal(t, cluster.Members[0].ImageID, cluster.HeroImageID)

	// Earlier input positions carry the recency bias, so "a" wins
	assert.Equal(t, "a", cluster.HeroImageID)
}

func TestHeuristicScoresNonIncreasing(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{
		ImageIDs:     []string{"a", "b", "c", "d", "e", "f"},
		QualityScore: 0.6,
	})

	require.Len(t, descriptor.Clusters, 1)
	members := descriptor.Clusters[0].Members
	for i := 1; i < len(members); i++ {
		assert.GreaterOrEqual(t, members[i-1].Score, members[i].Score)
		assert.Equal(t, i, members[i].Position)
	}
	for _, m := range members {
		assert.GreaterOrEqual(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
	}
}

func TestHeuristicTruncatesToClusterSize(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 3, Clock: pinnedClock()})

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}

	descriptor := h.Cluster("pet-1", types.JobPayload{ImageIDs: ids, QualityScore: 0.5})

	require.Len(t, descriptor.Clusters, 1)
	assert.Len(t, descriptor.Clusters[0].Members, 3)
}

func TestHeuristicNoLabelsFallsBackToAll(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{
		ImageIDs:     []string{"a", "b"},
		QualityScore: 0.7,
	})

	require.Len(t, descriptor.Clusters, 1)
	assert.Equal(t, "All", descriptor.Clusters[0].Label)
	assert.Len(t, descriptor.Clusters[0].Members, 2)
}

func TestHeuristicEmptyPayload(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{QualityScore: 0.4})

	assert.Equal(t, "pet-1", descriptor.PetID)
	assert.Empty(t, descriptor.Clusters)
	assert.NotNil(t, descriptor.Clusters)
	assert.Equal(t, 0.4, descriptor.Metrics.QualityScore)
	assert.Equal(t, HeuristicVersion, descriptor.Metrics.StrategyVersion)
	assert.False(t, descriptor.UpdatedAt.IsZero())
}

func TestHeuristicMoreLabelsThanImages(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	descriptor := h.Cluster("pet-1", types.JobPayload{
		ImageIDs:     []string{"a"},
		Labels:       []string{"x", "y", "z"},
		QualityScore: 0.5,
	})

	// Every label still yields a cluster; empty ones carry no hero
	require.Len(t, descriptor.Clusters, 3)
	assert.Len(t, descriptor.Clusters[0].Members, 1)
	assert.Empty(t, descriptor.Clusters[1].Members)
	assert.Empty(t, descriptor.Clusters[1].HeroImageID)
	assert.Empty(t, descriptor.Clusters[2].Members)
}

func TestHeuristicDeterministic(t *testing.T) {
	h := NewHeuristic(Params{MaxClusterSize: 24, Clock: pinnedClock()})

	payload := types.JobPayload{
		ImageIDs:     []string{"a", "b", "c", "d"},
		Labels:       []string{"outdoor", "indoor"},
		Coverage:     map[string]float64{"outdoor": 0.5, "indoor": 0.5},
		QualityScore: 0.8,
	}

	first := h.Cluster("pet-1", payload)
	second := h.Cluster("pet-1", payload)

	rawFirst, err := first.Encode()
	require.NoError(t, err)
	rawSecond, err := second.Encode()
	require.NoError(t, err)

	// Byte-identical replays are what make at-least-once overwrite safe
	assert.Equal(t, rawFirst, rawSecond)
}

func TestHeuristicVersionStamp(t *testing.T) {
	h := NewHeuristic(Params{})
	assert.Equal(t, HeuristicVersion, h.Version())

	descriptor := h.Cluster("pet-1", types.JobPayload{ImageIDs: []string{"a"}})
	assert.Equal(t, HeuristicVersion, descriptor.Metrics.StrategyVersion)
}
