package predicate

import (
	"github.com/segmentflow/rebalancer/types"
)

// RemainingReplicas counts how many (segment, instance) replicas in is have
// not yet converged to ev.
//
// monitored restricts the scan to a subset of segments (nil means all
// segments in is). For each segment, every instance whose idealState entry
// is OFFLINE is skipped: OFFLINE in the IdealState means "should not
// serve", so no convergence is owed for it. An ERROR state observed in ev
// is terminal for that replica: with bestEffort=false it raises
// types.ErrStuckInError via a *types.StuckInErrorDetail; with
// bestEffort=true it is treated as converged (the replica is presumed
// permanently failed and excluded from the count rather than blocking
// forward progress forever).
//
// When lowDiskMode is set, instances present in ev for a segment but absent
// from is are also counted (excluding ERROR): low-disk-mode moves must
// drop old replicas before new ones load, so a straggling old replica
// still counts as unconverged.
//
// earlyReturn short-circuits at the first nonzero contribution, returning
// 1 immediately instead of the full count. IsConverged uses this to avoid
// scanning the whole table just to learn "not yet".
func RemainingReplicas(
	ev, is types.PlacementMap,
	lowDiskMode, bestEffort bool,
	monitored map[types.SegmentID]struct{},
	earlyReturn bool,
) (int, error) {
	remaining := 0

	for _, segment := range is.SortedSegmentIDs() {
		if monitored != nil {
			if _, ok := monitored[segment]; !ok {
				continue
			}
		}

		idealInstances := is[segment]
		evInstances := ev[segment]

		for instance, idealState := range idealInstances {
			if idealState == types.Offline {
				continue
			}

			evState, present := evInstances[instance]
			switch {
			case !present:
				remaining++
			case evState == types.Error:
				if !bestEffort {
					return remaining, &types.StuckInErrorDetail{Segment: segment, Instance: instance}
				}
				// bestEffort: presumed permanently failed, not counted.
			case evState != idealState:
				remaining++
			}

			if earlyReturn && remaining > 0 {
				return remaining, nil
			}
		}

		if lowDiskMode {
			for instance, evState := range evInstances {
				if _, stillIdeal := idealInstances[instance]; stillIdeal {
					continue
				}
				if evState == types.Error {
					continue
				}
				remaining++
				if earlyReturn && remaining > 0 {
					return remaining, nil
				}
			}
		}
	}

	return remaining, nil
}

// IsConverged reports whether ev has fully caught up with is, for the
// restriction named by monitored (nil for the whole table). An ERROR
// replica with bestEffort=false surfaces as an error rather than false,
// since the driver must distinguish "still converging" from "stuck".
func IsConverged(ev, is types.PlacementMap, lowDiskMode, bestEffort bool, monitored map[types.SegmentID]struct{}) (bool, error) {
	remaining, err := RemainingReplicas(ev, is, lowDiskMode, bestEffort, monitored, true)
	if err != nil {
		return false, err
	}

	return remaining == 0, nil
}
