package policy

import (
	"fmt"

	"github.com/segmentflow/rebalancer/internal/hash"
	"github.com/segmentflow/rebalancer/types"
)

// defaultVirtualNodes matches the teacher's strategy.ConsistentHash
// default: enough virtual nodes for even distribution without excessive
// ring-build cost.
const defaultVirtualNodes = 150

// ConsistentHash is a reference types.AssignmentPolicy built on a
// consistent hash ring per (category, tier). Each segment's replicas are
// chosen by walking NumReplicas independently-seeded rings and excluding
// instances already picked for an earlier replica of the same segment,
// so a segment never lands on the same instance twice and adding or
// removing an instance reshuffles only the segments that hashed near it.
type ConsistentHash struct {
	virtualNodes int
	hashSeed     uint64
}

// Option configures a ConsistentHash policy.
type Option func(*ConsistentHash)

// WithVirtualNodes overrides the number of virtual nodes per instance
// (default 150).
func WithVirtualNodes(n int) Option {
	return func(c *ConsistentHash) { c.virtualNodes = n }
}

// WithHashSeed overrides the base hash seed used to derive each replica
// index's ring seed.
func WithHashSeed(seed uint64) Option {
	return func(c *ConsistentHash) { c.hashSeed = seed }
}

// NewConsistentHash builds a ConsistentHash policy.
func NewConsistentHash(opts ...Option) *ConsistentHash {
	c := &ConsistentHash{virtualNodes: defaultVirtualNodes}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ types.AssignmentPolicy = (*ConsistentHash)(nil)

// IsStrictRealtime reports false: this policy does not require a full
// re-plan when the IdealState's realtime segment states change underfoot.
func (c *ConsistentHash) IsStrictRealtime() bool { return false }

// Rebalance computes the target placement. It is total over current's
// segment set, deterministic given identical inputs, and assigns
// cfg.NumReplicas distinct instances to every segment, or every instance
// of the segment's candidate pool when the pool is smaller than that.
func (c *ConsistentHash) Rebalance(
	current types.PlacementMap,
	instancePartitionsByCategory map[types.InstancePartitionsCategory]types.InstancePartitions,
	sortedTiers []string,
	tierPartitions map[string]types.InstancePartitions,
	cfg types.PolicyConfig,
) (types.PlacementMap, error) {
	if cfg.NumReplicas <= 0 {
		return nil, errInvalidNumReplicas(cfg.NumReplicas)
	}

	rings := make(map[string][]*hash.Ring)
	target := make(types.PlacementMap, len(current))

	for _, segment := range current.SortedSegmentIDs() {
		candidatePool, poolKey, err := resolvePool(segment, current[segment], instancePartitionsByCategory, sortedTiers, tierPartitions)
		if err != nil {
			return nil, err
		}
		if len(candidatePool) == 0 {
			return nil, errNoCandidates(segment)
		}

		segRings := rings[poolKey]
		if segRings == nil {
			segRings = c.buildReplicaRings(candidatePool, cfg.NumReplicas)
			rings[poolKey] = segRings
		}

		instances := make(types.InstanceStateMap, cfg.NumReplicas)
		chosen := make(map[string]struct{}, cfg.NumReplicas)
		for replicaIdx := 0; replicaIdx < cfg.NumReplicas && len(chosen) < len(candidatePool); replicaIdx++ {
			inst := segRings[replicaIdx].GetNodeExcluding(string(segment), chosen)
			if inst == "" {
				break
			}
			chosen[inst] = struct{}{}
			instances[types.InstanceID(inst)] = types.Online
		}

		target[segment] = instances
	}

	return target, nil
}

// buildReplicaRings builds one ring per replica index, each seeded
// distinctly from the policy's base seed so that different replicas of
// the same segment land on different points of their respective rings
// rather than always walking forward from a single shared ring.
func (c *ConsistentHash) buildReplicaRings(candidatePool []string, numReplicas int) []*hash.Ring {
	rings := make([]*hash.Ring, numReplicas)
	for i := 0; i < numReplicas; i++ {
		seed := c.hashSeed ^ (uint64(i)+1)*0x9E3779B97F4A7C15 //nolint:gomnd // splitmix64 constant, not a magic number
		rings[i] = hash.NewRing(candidatePool, c.virtualNodes, seed)
	}

	return rings
}

// resolvePool picks the candidate instance pool for segment: the tier's
// replica-group instances if segment matches a tier, otherwise the
// category resolved from the segment's current observed state. Shared
// across every reference AssignmentPolicy in this package.
func resolvePool(
	segment types.SegmentID,
	current types.InstanceStateMap,
	byCategory map[types.InstancePartitionsCategory]types.InstancePartitions,
	sortedTiers []string,
	tierPartitions map[string]types.InstancePartitions,
) ([]string, string, error) {
	for _, tier := range sortedTiers {
		ip, ok := tierPartitions[tier]
		if !ok {
			continue
		}
		if _, matches := tierPartitions[tier]; matches && tierApplies(segment, ip) {
			return instancesAsStrings(ip.Instances()), "tier:" + tier, nil
		}
	}

	category := categoryForSegment(current, byCategory)
	ip, ok := byCategory[category]
	if !ok {
		return nil, "", fmt.Errorf("%w: no instance partitions resolved for category %s", types.ErrInvalidConfig, category.String())
	}

	return instancesAsStrings(ip.Instances()), fmt.Sprintf("category:%d", category), nil
}

// tierApplies is a placeholder hook for tier-eligibility rules (segment
// age, size, or other storage-tier criteria); this reference policy has
// no tier-eligibility source of its own, so it defers entirely to
// category-based placement unless a future caller wires one in.
func tierApplies(types.SegmentID, types.InstancePartitions) bool { return false }

func categoryForSegment(current types.InstanceStateMap, byCategory map[types.InstancePartitionsCategory]types.InstancePartitions) types.InstancePartitionsCategory {
	for _, st := range current {
		if st == types.Consuming {
			if _, ok := byCategory[types.CategoryConsuming]; ok {
				return types.CategoryConsuming
			}
		}
	}
	if _, ok := byCategory[types.CategoryCompleted]; ok {
		return types.CategoryCompleted
	}

	return types.CategoryOffline
}

func instancesAsStrings(ids []types.InstanceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}

	return out
}

func errInvalidNumReplicas(n int) error {
	return fmt.Errorf("%w: NumReplicas must be positive, got %d", types.ErrInvalidConfig, n)
}

func errNoCandidates(segment types.SegmentID) error {
	return fmt.Errorf("%w: no candidate instances for segment %q", types.ErrInvalidConfig, segment)
}
