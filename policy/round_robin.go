package policy

import (
	"github.com/segmentflow/rebalancer/types"
)

// RoundRobin is a reference types.AssignmentPolicy that distributes each
// segment's replicas evenly across its candidate instance pool in
// round-robin order. It trades the minimal-movement property
// ConsistentHash offers for a simpler, perfectly even distribution —
// useful for small or short-lived tables where reshuffle cost on
// instance-set changes doesn't matter.
type RoundRobin struct{}

var _ types.AssignmentPolicy = (*RoundRobin)(nil)

// NewRoundRobin builds a RoundRobin policy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// IsStrictRealtime reports false: like ConsistentHash, this policy does
// not require a full re-plan when realtime segment states change underfoot.
func (rr *RoundRobin) IsStrictRealtime() bool { return false }

// Rebalance computes the target placement by walking each segment's
// candidate pool in round-robin order, offsetting the starting index by
// the segment's position in the sorted segment list so consecutive
// segments don't all land on the same first replica.
func (rr *RoundRobin) Rebalance(
	current types.PlacementMap,
	instancePartitionsByCategory map[types.InstancePartitionsCategory]types.InstancePartitions,
	sortedTiers []string,
	tierPartitions map[string]types.InstancePartitions,
	cfg types.PolicyConfig,
) (types.PlacementMap, error) {
	if cfg.NumReplicas <= 0 {
		return nil, errInvalidNumReplicas(cfg.NumReplicas)
	}

	target := make(types.PlacementMap, len(current))

	for segIdx, segment := range current.SortedSegmentIDs() {
		pool, _, err := resolvePool(segment, current[segment], instancePartitionsByCategory, sortedTiers, tierPartitions)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return nil, errNoCandidates(segment)
		}

		instances := make(types.InstanceStateMap, cfg.NumReplicas)
		n := min(cfg.NumReplicas, len(pool))
		for i := 0; i < n; i++ {
			inst := pool[(segIdx+i)%len(pool)]
			instances[types.InstanceID(inst)] = types.Online
		}

		target[segment] = instances
	}

	return target, nil
}
