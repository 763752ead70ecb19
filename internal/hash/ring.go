package hash

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"
)

// Ring is a consistent hash ring with virtual nodes. It maps an arbitrary
// string key to one of a fixed set of instances, with the property that
// adding or removing an instance only reshuffles the keys that hashed to
// that instance's virtual nodes.
type Ring struct {
	nodes     []virtualNode
	instances []string
	seed      uint64
}

type virtualNode struct {
	hash        uint64
	instance    string
	instanceIdx int
}

// NewRing builds a ring from instances, placing virtualNodesPerInstance
// virtual nodes for each. seed of 0 uses xxh3's unseeded hash; any other
// value makes the ring's layout deterministic and distinct from a ring
// built with a different seed, which the replica-walk in policy uses to
// give each replica index its own, non-correlated ring.
func NewRing(instances []string, virtualNodesPerInstance int, seed uint64) *Ring {
	seen := make(map[string]struct{}, len(instances))
	uniq := make([]string, 0, len(instances))
	for _, inst := range instances {
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		uniq = append(uniq, inst)
	}

	r := &Ring{
		nodes:     make([]virtualNode, 0, len(uniq)*virtualNodesPerInstance),
		instances: uniq,
		seed:      seed,
	}

	for idx, inst := range uniq {
		r.addInstance(inst, idx, virtualNodesPerInstance)
	}

	slices.SortFunc(r.nodes, func(a, b virtualNode) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return 0
		}
	})

	return r
}

// GetNode returns the instance responsible for key, or "" if the ring has
// no instances.
func (r *Ring) GetNode(key string) string {
	if len(r.nodes) == 0 {
		return ""
	}

	return r.nodeAt(r.hashKey(key))
}

// GetNodeExcluding returns the instance responsible for key, walking
// clockwise past any virtual node whose instance is in exclude. Used to
// pick a segment's Nth replica without repeating an instance already
// chosen for an earlier replica of the same segment.
func (r *Ring) GetNodeExcluding(key string, exclude map[string]struct{}) string {
	if len(r.nodes) == 0 {
		return ""
	}
	if len(exclude) >= len(r.instances) {
		return ""
	}

	start := r.indexAt(r.hashKey(key))
	for i := 0; i < len(r.nodes); i++ {
		node := r.nodes[(start+i)%len(r.nodes)]
		if _, excluded := exclude[node.instance]; !excluded {
			return node.instance
		}
	}

	return ""
}

// Instances returns the deduplicated instance list the ring was built
// with, in the order first seen.
func (r *Ring) Instances() []string {
	return append([]string(nil), r.instances...)
}

// Size returns the number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}

func (r *Ring) addInstance(instance string, instanceIdx int, virtualNodes int) {
	for i := 0; i < virtualNodes; i++ {
		h := r.hashKey(instance)

		var ib [8]byte
		binary.LittleEndian.PutUint64(ib[:], uint64(i)) //nolint:gosec // i is bounded by virtualNodes, no overflow risk
		h = xxh3.HashSeed(ib[:], h)

		r.nodes = append(r.nodes, virtualNode{hash: h, instance: instance, instanceIdx: instanceIdx})
	}
}

func (r *Ring) hashKey(key string) uint64 {
	if r.seed != 0 {
		return xxh3.HashStringSeed(key, r.seed)
	}

	return xxh3.HashString(key)
}

func (r *Ring) nodeAt(target uint64) string {
	return r.nodes[r.indexAt(target)].instance
}

func (r *Ring) indexAt(target uint64) int {
	idx, found := slices.BinarySearchFunc(r.nodes, target, func(node virtualNode, t uint64) int {
		switch {
		case node.hash < t:
			return -1
		case node.hash > t:
			return 1
		default:
			return 0
		}
	})
	if !found && idx >= len(r.nodes) {
		idx = 0
	}

	return idx
}
