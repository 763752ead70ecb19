package driver

import (
	"context"
	"time"

	"github.com/segmentflow/rebalancer/types"
)

// runDowntime is the Downtime path of §4.7: commit consuming segments if
// asked, then replace the IdealState with target in a single CAS write.
// Unlike the no-downtime loop, a version collision here is not retried;
// the caller asked for downtime specifically to avoid the complexity of
// a converging, multi-step replace, so a collision is reported as a
// fatal error rather than rolled back and replanned.
func (d *Driver) runDowntime(
	ctx context.Context,
	table string,
	cfg Config,
	isDoc types.IdealStateDocument,
	current, target types.PlacementMap,
	result RebalanceResult,
	start time.Time,
) RebalanceResult {
	if cfg.ForceCommit {
		segments := movingToConsuming(current, target)
		if len(segments) > 0 {
			if _, err := d.forceCommit.Run(ctx, table, segments, current, target, cfg.forceCommitBatchConfig()); err != nil {
				return d.finishError(table, result, err, start)
			}
		}
	}

	if d.observer.IsStopped() {
		return d.finishStopped(table, result, start)
	}

	if _, err := d.gateway.CASUpdateIdealState(ctx, table, target, isDoc.Revision); err != nil {
		return d.finishError(table, result, err, start)
	}

	return d.finishDone(table, result, start)
}

// movingToConsuming returns every segment that next introduces a
// CONSUMING replica on an instance that was not already CONSUMING for it
// in current, i.e. the set that a force commit needs to settle before
// those instances can safely start consuming somewhere new.
func movingToConsuming(current, next types.PlacementMap) []types.SegmentID {
	var out []types.SegmentID

	for _, segment := range next.SortedSegmentIDs() {
		nextStates := next[segment]
		curStates := current[segment]

		for instance, state := range nextStates {
			if state != types.Consuming {
				continue
			}
			if curStates[instance] == types.Consuming {
				continue
			}

			out = append(out, segment)

			break
		}
	}

	return out
}
