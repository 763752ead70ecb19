package partitions

import (
	"fmt"
	"sort"

	"github.com/segmentflow/rebalancer/types"
)

// DefaultDriver assigns replicas by round-robining the sorted, filtered
// instance pool across partitions with a rotating start offset, so
// consecutive partitions don't pile their first replica onto the same
// instance. It has no teacher analogue: the driver function is an
// explicitly pluggable seam (§4.2), and this is one reference
// implementation of it, not a grounded translation.
func DefaultDriver(category types.InstancePartitionsCategory, instances []types.InstanceConfig, cfg Config) (types.InstancePartitions, error) {
	if cfg.NumReplicas <= 0 {
		return types.InstancePartitions{}, fmt.Errorf("%w: NumReplicas must be positive, got %d", types.ErrInvalidConfig, cfg.NumReplicas)
	}
	if cfg.NumPartitions <= 0 {
		return types.InstancePartitions{}, fmt.Errorf("%w: NumPartitions must be positive, got %d", types.ErrInvalidConfig, cfg.NumPartitions)
	}

	pool := filterInstances(instances, cfg.RequiredTags)
	if len(pool) < cfg.NumReplicas {
		return types.InstancePartitions{}, fmt.Errorf("%w: only %d eligible instances for %d replicas", types.ErrInvalidConfig, len(pool), cfg.NumReplicas)
	}

	groups := make(map[int][]types.InstanceID, cfg.NumPartitions)
	for partition := 0; partition < cfg.NumPartitions; partition++ {
		groups[partition] = nextReplicaSet(pool, partition*cfg.NumReplicas, cfg.NumReplicas)
	}

	return types.InstancePartitions{
		Category:      category,
		Tier:          cfg.Tier,
		ReplicaGroups: groups,
	}, nil
}

func filterInstances(instances []types.InstanceConfig, requiredTags []string) []types.InstanceID {
	out := make([]types.InstanceID, 0, len(instances))
	for _, inst := range instances {
		if !inst.Enabled {
			continue
		}
		if !hasAllTags(inst.Tags, requiredTags) {
			continue
		}
		out = append(out, inst.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	haveSet := make(map[string]struct{}, len(have))
	for _, t := range have {
		haveSet[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := haveSet[t]; !ok {
			return false
		}
	}

	return true
}

// nextReplicaSet returns n distinct instances from pool starting at
// offset, wrapping around. Panics-free even when n == len(pool).
func nextReplicaSet(pool []types.InstanceID, offset, n int) []types.InstanceID {
	out := make([]types.InstanceID, n)
	for i := 0; i < n; i++ {
		out[i] = pool[(offset+i)%len(pool)]
	}

	return out
}
