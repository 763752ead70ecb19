package types

import "sort"

// SegmentID identifies a segment uniquely within a table.
//
// It is treated as an opaque string by the core; no component parses it.
type SegmentID string

// InstanceID identifies a server.
//
// Like SegmentID, it is an opaque handle; equality is the only operation
// the core relies on.
type InstanceID string

// SegmentState is the state of a single (segment, instance) replica.
//
// ERROR is terminal for a given (segment, instance) pair: once observed,
// the predicate either raises StuckInError or, in best-effort mode, treats
// it as converged. OFFLINE means "do not serve" when it appears in an
// IdealState, and "not loaded" when it appears in an ExternalView.
type SegmentState int

const (
	// Online means the replica is fully loaded and serving queries.
	Online SegmentState = iota
	// Consuming means the replica is a tail-of-stream segment still
	// appending from a realtime stream.
	Consuming
	// Offline means the replica should not serve (IdealState) or has not
	// been loaded (ExternalView).
	Offline
	// Error is a terminal failure state for the (segment, instance) pair.
	Error
	// Dropped marks a replica that is being removed and never needs to
	// converge.
	Dropped
)

// String returns the wire-compatible name of the state.
func (s SegmentState) String() string {
	switch s {
	case Online:
		return "ONLINE"
	case Consuming:
		return "CONSUMING"
	case Offline:
		return "OFFLINE"
	case Error:
		return "ERROR"
	case Dropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// InstanceStateMap maps an InstanceID to the SegmentState it holds for one
// segment. Keys are unique by construction (it's a Go map).
type InstanceStateMap map[InstanceID]SegmentState

// Clone returns a shallow copy, safe to mutate independently of the
// original.
func (m InstanceStateMap) Clone() InstanceStateMap {
	out := make(InstanceStateMap, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// Instances returns the instance set as a slice, in no particular order.
func (m InstanceStateMap) Instances() []InstanceID {
	out := make([]InstanceID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}

// Equal reports whether m and other contain exactly the same
// (instance, state) pairs.
func (m InstanceStateMap) Equal(other InstanceStateMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}

	return true
}

// InstanceSet returns the set of instances as a map[InstanceID]struct{},
// the representation the planner's single-segment subroutine operates on
// (C and T in §4.5 of the specification).
func (m InstanceStateMap) InstanceSet() map[InstanceID]struct{} {
	out := make(map[InstanceID]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}

	return out
}

// PlacementMap maps a SegmentID to the InstanceStateMap describing where
// (and in what state) that segment's replicas live.
//
// The iteration order of a Go map is not stable across runs, but next-step
// planning requires a deterministic order; use SortedSegmentIDs for any
// loop whose outcome must be reproducible.
type PlacementMap map[SegmentID]InstanceStateMap

// SortedSegmentIDs returns the segment IDs in lexicographic order.
func (p PlacementMap) SortedSegmentIDs() []SegmentID {
	out := make([]SegmentID, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Clone returns a deep copy of the placement map.
func (p PlacementMap) Clone() PlacementMap {
	out := make(PlacementMap, len(p))
	for seg, m := range p {
		out[seg] = m.Clone()
	}

	return out
}

// Equal reports whether p and other describe the same placement: same
// segment set, and for each segment, the same InstanceStateMap.
func (p PlacementMap) Equal(other PlacementMap) bool {
	if len(p) != len(other) {
		return false
	}
	for seg, m := range p {
		om, ok := other[seg]
		if !ok || !m.Equal(om) {
			return false
		}
	}

	return true
}
