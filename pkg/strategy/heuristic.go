package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// HeuristicVersion is stamped into descriptor metrics by the default
// strategy.
const HeuristicVersion = "heuristic-v1"

// fallbackGroup is the synthesized group name when a payload carries no
// labels.
const fallbackGroup = "All"

// Score blend weights: payload-level quality dominates, with a recency bias
// favouring earlier input positions.
const (
	qualityWeight = 0.7
	recencyWeight = 0.3
)

// Heuristic is the default quality-weighted grouping strategy. Images are
// partitioned round-robin over the payload labels in input order, scored by
// a blend of the payload quality and input position, and ranked descending
// within each group.
type Heuristic struct {
	maxClusterSize int
	now            func() time.Time
}

// NewHeuristic builds the default strategy from params.
func NewHeuristic(params Params) *Heuristic {
	size := params.MaxClusterSize
	if size <= 0 {
		size = 24
	}
	return &Heuristic{
		maxClusterSize: size,
		now:            params.clock(),
	}
}

// Version implements Strategy.
func (h *Heuristic) Version() string { return HeuristicVersion }

// Cluster implements Strategy. Malformed payloads normalize to empty
// output; the method never fails.
func (h *Heuristic) Cluster(petID string, payload types.JobPayload) types.ClusterDescriptor {
	payload = payload.Normalize()
	now := h.now().UTC()

	descriptor := types.ClusterDescriptor{
		PetID:    petID,
		Clusters: []types.Cluster{},
		Metrics: types.ClusterMetrics{
			Coverage:        payload.Coverage,
			QualityScore:    payload.QualityScore,
			ProcessedAt:     now,
			StrategyVersion: HeuristicVersion,
		},
		UpdatedAt: now,
	}

	if len(payload.ImageIDs) == 0 {
		return descriptor
	}

	groups := payload.Labels
	if len(groups) == 0 {
		groups = []string{fallbackGroup}
	}

	total := len(payload.ImageIDs)
	for k, label := range groups {
		members := h.assign(payload, k, len(groups), total)
		if len(members) == 0 {
			descriptor.Clusters = append(descriptor.Clusters, types.Cluster{
				ID:      clusterID(petID, k),
				Label:   label,
				Members: []types.Member{},
			})
			continue
		}
		descriptor.Clusters = append(descriptor.Clusters, types.Cluster{
			ID:          clusterID(petID, k),
			Label:       label,
			HeroImageID: members[0].ImageID,
			Members:     members,
		})
	}

	return descriptor
}

// assign collects group k's round-robin share of the images, scores them,
// ranks by descending score with ascending input index as tiebreak, and
// truncates to the cluster size bound.
func (h *Heuristic) assign(payload types.JobPayload, k, groupCount, total int) []types.Member {
	type candidate struct {
		imageID string
		score   float64
		index   int
	}

	var candidates []candidate
	for i := k; i < total; i += groupCount {
		candidates = append(candidates, candidate{
			imageID: payload.ImageIDs[i],
			score:   memberScore(payload.QualityScore, i, total),
			index:   i,
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].index < candidates[b].index
	})

	if len(candidates) > h.maxClusterSize {
		candidates = candidates[:h.maxClusterSize]
	}

	members := make([]types.Member, len(candidates))
	for pos, c := range candidates {
		members[pos] = types.Member{
			ImageID:  c.imageID,
			Score:    c.score,
			Position: pos,
		}
	}
	return members
}

// memberScore blends payload quality with a recency bias over the image's
// original input index.
func memberScore(quality float64, index, total int) float64 {
	recency := 1 - float64(index)/float64(total)
	score := quality*qualityWeight + recency*recencyWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func clusterID(petID string, index int) string {
	return fmt.Sprintf("%s-cluster-%d", petID, index)
}
