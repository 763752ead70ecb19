package planner

import (
	"sort"
	"strings"

	"github.com/segmentflow/rebalancer/types"
)

// Config configures one Step.
type Config struct {
	MinAvailableReplicas int
	StrictReplicaGroup   bool
	LowDiskMode          bool
	// BatchSizePerServer of 0 disables the per-server batch ceiling.
	BatchSizePerServer int
	// Oracle resolves a segment's partition id; required when
	// StrictReplicaGroup is set, unused otherwise.
	Oracle PartitionIDOracle
}

// Step holds the per-step local state the shared subroutine and both
// planning modes mutate: the assignment cache that gives co-routed
// segments mirror-consistent instance sets, the pending-offload counters
// used to break extension ties, and the batch quota counters.
type Step struct {
	cfg Config

	assignmentCache map[pairKey]map[types.InstanceID]struct{}
	pendingOffloads map[types.InstanceID]int
	batchUsed       map[types.InstanceID]int
	warnings        []string
}

type pairKey string

// NewStep allocates fresh per-step state for one driver iteration.
// pendingOffloads is seeded globally from current and target: an
// instance's count starts at (segments holding it in current) minus
// (segments holding it in target), the net number of segments that will
// eventually need to drop it.
func NewStep(current, target types.PlacementMap, cfg Config) *Step {
	s := &Step{
		cfg:             cfg,
		assignmentCache: make(map[pairKey]map[types.InstanceID]struct{}),
		pendingOffloads: make(map[types.InstanceID]int),
		batchUsed:       make(map[types.InstanceID]int),
	}

	for _, instances := range current {
		for i := range instances {
			s.pendingOffloads[i]++
		}
	}
	for _, instances := range target {
		for i := range instances {
			s.pendingOffloads[i]--
		}
	}

	return s
}

// Warnings returns the diagnostic messages accumulated during this step,
// e.g. a strict-mode group that exceeded the batch quota to admit a full
// partition.
func (s *Step) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

func instanceSetKey(set map[types.InstanceID]struct{}) string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	return strings.Join(ids, ",")
}

func canonicalPairKey(current, target map[types.InstanceID]struct{}) pairKey {
	return pairKey(instanceSetKey(current) + "|" + instanceSetKey(target))
}

func setDifference(a, b map[types.InstanceID]struct{}) map[types.InstanceID]struct{} {
	out := make(map[types.InstanceID]struct{})
	for i := range a {
		if _, inB := b[i]; !inB {
			out[i] = struct{}{}
		}
	}

	return out
}

// sortByPendingOffloads orders candidates ascending by pending-offload
// count, breaking ties lexicographically by instance id.
func (s *Step) sortByPendingOffloads(candidates map[types.InstanceID]struct{}) []types.InstanceID {
	out := make([]types.InstanceID, 0, len(candidates))
	for i := range candidates {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		pa, pb := s.pendingOffloads[out[a]], s.pendingOffloads[out[b]]
		if pa != pb {
			return pa < pb
		}

		return out[a] < out[b]
	})

	return out
}

// nextInstanceSet returns the chosen instance key set for the (current,
// target) instance-set pair, computing it once per step (steps 1-3 of the
// shared subroutine) and reusing it for every later segment sharing the
// same pair, which is what gives co-routed segments identical instance
// sets.
func (s *Step) nextInstanceSet(curSet, tgtSet map[types.InstanceID]struct{}) map[types.InstanceID]struct{} {
	key := canonicalPairKey(curSet, tgtSet)
	if cached, ok := s.assignmentCache[key]; ok {
		out := make(map[types.InstanceID]struct{}, len(cached))
		for i := range cached {
			out[i] = struct{}{}
		}

		return out
	}

	next := make(map[types.InstanceID]struct{})
	for i := range curSet {
		if _, inTarget := tgtSet[i]; inTarget {
			next[i] = struct{}{}
		}
	}

	if len(next) < s.cfg.MinAvailableReplicas {
		for _, i := range s.sortByPendingOffloads(setDifference(curSet, tgtSet)) {
			if len(next) >= s.cfg.MinAvailableReplicas {
				break
			}
			next[i] = struct{}{}
		}
	}

	if !(s.cfg.LowDiskMode && len(next) < len(curSet)) {
		for _, i := range s.sortByPendingOffloads(setDifference(tgtSet, curSet)) {
			if len(next) >= len(tgtSet) {
				break
			}
			next[i] = struct{}{}
		}
	}

	stored := make(map[types.InstanceID]struct{}, len(next))
	for i := range next {
		stored[i] = struct{}{}
	}
	s.assignmentCache[key] = stored

	return next
}

// singleSegmentNextAssignment is the shared subroutine of §4.5: given one
// segment's current and target InstanceStateMap, it returns the next
// intermediate InstanceStateMap and the subset of its keys that are also
// in current (the "available" set — instances that can serve this
// segment immediately, without waiting for a new replica to load).
func (s *Step) singleSegmentNextAssignment(current, target types.InstanceStateMap) (types.InstanceStateMap, map[types.InstanceID]struct{}) {
	curSet := current.InstanceSet()
	tgtSet := target.InstanceSet()

	nextKeys := s.nextInstanceSet(curSet, tgtSet)

	next := make(types.InstanceStateMap, len(nextKeys))
	for i := range nextKeys {
		if _, inTarget := tgtSet[i]; inTarget {
			next[i] = target[i]
		} else {
			next[i] = current[i]
		}
	}

	available := make(map[types.InstanceID]struct{})
	for i := range nextKeys {
		if _, inCurrent := curSet[i]; inCurrent {
			available[i] = struct{}{}
		}
	}

	return next, available
}

// applyDrops decrements pendingOffloads for every instance in current
// that the accepted next assignment excludes — an actual offload
// completing this step, as opposed to one merely deferred by extension.
func (s *Step) applyDrops(current types.InstanceStateMap, next types.InstanceStateMap) {
	for i := range current {
		if _, kept := next[i]; !kept {
			s.pendingOffloads[i]--
		}
	}
}

func newlyIntroduced(current types.InstanceStateMap, next types.InstanceStateMap) []types.InstanceID {
	var out []types.InstanceID
	for i := range next {
		if _, present := current[i]; !present {
			out = append(out, i)
		}
	}

	return out
}
