package planner

import (
	"fmt"

	"github.com/segmentflow/rebalancer/types"
)

// Plan computes the next intermediate placement from current toward
// target, dispatching to non-strict or strict-replica-group mode per
// cfg.StrictReplicaGroup. s must have been built with NewStep(current,
// target, cfg) and is mutated in place; callers should discard it once
// Plan returns.
func (s *Step) Plan(current, target types.PlacementMap) (types.PlacementMap, error) {
	if s.cfg.StrictReplicaGroup {
		return s.planStrict(current, target)
	}

	return s.planNonStrict(current, target)
}

// planNonStrict implements §4.5's non-strict mode: segments are visited in
// lexicographic order; a move that would push any newly introduced server
// over its per-server batch quota is skipped for this step (current is
// kept), otherwise it is accepted and the server's quota is charged.
func (s *Step) planNonStrict(current, target types.PlacementMap) (types.PlacementMap, error) {
	next := make(types.PlacementMap, len(current))

	for _, segment := range current.SortedSegmentIDs() {
		cur := current[segment]
		tgt, ok := target[segment]
		if !ok {
			return nil, fmt.Errorf("%w: segment %q missing from target placement", types.ErrInvalidConfig, segment)
		}

		candidate, _ := s.singleSegmentNextAssignment(cur, tgt)

		if s.cfg.BatchSizePerServer > 0 {
			overQuota := false
			for _, srv := range newlyIntroduced(cur, candidate) {
				if s.batchUsed[srv]+1 > s.cfg.BatchSizePerServer {
					overQuota = true
					break
				}
			}
			if overQuota {
				next[segment] = cur.Clone()
				continue
			}
			for _, srv := range newlyIntroduced(cur, candidate) {
				s.batchUsed[srv]++
			}
		}

		s.applyDrops(cur, candidate)
		next[segment] = candidate
	}

	return next, nil
}

// segmentGroup is a strict-replica-group batch: every segment sharing the
// same (current instance set, target instance set, partition id).
type segmentGroup struct {
	segments []types.SegmentID
}

// planStrict implements §4.5's strict-replica-group mode: segments are
// grouped by (C, T, partitionId); each group is admitted or rejected as a
// whole, so co-routed replicas of the same partition always move
// together.
func (s *Step) planStrict(current, target types.PlacementMap) (types.PlacementMap, error) {
	if s.cfg.Oracle == nil {
		return nil, fmt.Errorf("%w: strict replica group mode requires a PartitionIDOracle", types.ErrInvalidConfig)
	}

	groups := make(map[string]*segmentGroup)
	var order []string

	for _, segment := range current.SortedSegmentIDs() {
		cur := current[segment]
		tgt, ok := target[segment]
		if !ok {
			return nil, fmt.Errorf("%w: segment %q missing from target placement", types.ErrInvalidConfig, segment)
		}

		partitionID, err := s.cfg.Oracle.PartitionID(segment)
		if err != nil {
			return nil, fmt.Errorf("resolving partition id for segment %q: %w", segment, err)
		}

		key := fmt.Sprintf("%s|%s|%d", instanceSetKey(cur.InstanceSet()), instanceSetKey(tgt.InstanceSet()), partitionID)
		g, ok := groups[key]
		if !ok {
			g = &segmentGroup{}
			groups[key] = g
			order = append(order, key)
		}
		g.segments = append(g.segments, segment)
	}

	next := make(types.PlacementMap, len(current))

	for _, key := range order {
		group := groups[key]
		s.admitGroup(group, current, target, next)
	}

	return next, nil
}

// admitGroup decides whether group's segments move this step, mutating
// next with either the accepted candidate assignment for every segment in
// the group, or each segment's unchanged current assignment.
func (s *Step) admitGroup(group *segmentGroup, current, target, next types.PlacementMap) {
	probe := group.segments[0]
	candidateProbe, _ := s.singleSegmentNextAssignment(current[probe], target[probe])

	introduced := newlyIntroduced(current[probe], candidateProbe)

	admitted := true
	if s.cfg.BatchSizePerServer > 0 {
		for _, srv := range introduced {
			used := s.batchUsed[srv]
			fitsDirectly := used+len(group.segments) <= s.cfg.BatchSizePerServer
			isFirstAdmission := used == 0
			if !(isFirstAdmission || fitsDirectly) {
				admitted = false
				break
			}
		}
	}

	if admitted && s.cfg.BatchSizePerServer > 0 {
		// Re-check the post-admission minAvailableReplicas floor: a full
		// partition may exceed the server quota to make progress, but it
		// must not drop any segment in the group below the floor.
		for _, seg := range group.segments {
			_, available := s.singleSegmentNextAssignment(current[seg], target[seg])
			if len(available) < s.cfg.MinAvailableReplicas {
				admitted = false
				break
			}
		}
	}

	if !admitted {
		for _, seg := range group.segments {
			next[seg] = current[seg].Clone()
		}

		return
	}

	for _, srv := range introduced {
		s.batchUsed[srv] += len(group.segments)
	}
	if len(introduced) > 0 && s.batchUsed[introduced[0]] > s.cfg.BatchSizePerServer && s.cfg.BatchSizePerServer > 0 {
		s.warnings = append(s.warnings, fmt.Sprintf(
			"strict replica group for partition admitted %d segments onto server %q, exceeding batch size %d to keep the partition together",
			len(group.segments), introduced[0], s.cfg.BatchSizePerServer))
	}

	for _, seg := range group.segments {
		candidate, _ := s.singleSegmentNextAssignment(current[seg], target[seg])
		s.applyDrops(current[seg], candidate)
		next[seg] = candidate
	}
}
