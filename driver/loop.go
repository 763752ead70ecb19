package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentflow/rebalancer/internal/planner"
	"github.com/segmentflow/rebalancer/internal/predicate"
	"github.com/segmentflow/rebalancer/types"
)

// runNoDowntimeLoop is the no-downtime loop of §4.7: wait for the
// external view to converge, check for an underfoot IdealState change,
// optionally force-commit once, and otherwise compute and CAS-write the
// next intermediate placement, repeating until current equals target.
func (d *Driver) runNoDowntimeLoop(
	ctx context.Context,
	table string,
	cfg Config,
	isDoc types.IdealStateDocument,
	current, target types.PlacementMap,
	result RebalanceResult,
	start time.Time,
) RebalanceResult {
	revision := isDoc.Revision
	forceCommitDone := false
	var monitored map[types.SegmentID]struct{}

	for {
		if err := d.waitForConvergence(ctx, table, current, monitored, cfg); err != nil {
			return d.finishError(table, result, err, start)
		}
		d.observer.OnTrigger(ctx, types.TriggerEVToISConvergence, current, target)
		if d.observer.IsStopped() {
			return d.finishStopped(table, result, start)
		}

		latestDoc, err := d.gateway.ReadIdealState(ctx, table)
		if err != nil {
			return d.finishError(table, result, err, start)
		}

		if latestDoc.Revision != revision {
			previousCurrent := current
			current = latestDoc.Placement
			revision = latestDoc.Revision
			d.observer.OnTrigger(ctx, types.TriggerIdealStateChange, current, target)
			if d.observer.IsStopped() {
				return d.finishStopped(table, result, start)
			}

			if d.policy.IsStrictRealtime() || monitoredSegmentsChanged(monitored, previousCurrent, current) {
				newTarget, err := d.policy.Rebalance(current, result.Partitions, cfg.Tiers, result.Tiers, policyConfig(cfg))
				if err != nil {
					return d.finishError(table, result, err, start)
				}
				target = newTarget
				result.Target = target
			}
		}

		if cfg.ForceCommit && !forceCommitDone {
			current, target, revision, err = d.forceCommitOnce(ctx, table, cfg, current, target, revision, &result)
			if err != nil {
				return d.finishError(table, result, err, start)
			}
			forceCommitDone = true
			if d.observer.IsStopped() {
				return d.finishStopped(table, result, start)
			}
		}

		if current.Equal(target) {
			return d.finishDone(table, result, start)
		}

		step := planner.NewStep(current, target, plannerConfig(cfg, d.partitionOracle))
		next, err := step.Plan(current, target)
		if err != nil {
			return d.finishError(table, result, err, start)
		}
		result.Warnings = append(result.Warnings, step.Warnings()...)
		d.metrics.RecordStep(table, len(diffSegments(current, next)), 0)

		d.observer.OnTrigger(ctx, types.TriggerNextAssignmentCalculation, current, next)
		if d.observer.IsStopped() {
			return d.finishStopped(table, result, start)
		}

		newRev, err := d.gateway.CASUpdateIdealState(ctx, table, next, revision)
		if err != nil {
			if errors.Is(err, types.ErrVersionMismatch) {
				d.observer.OnRollback()
				d.metrics.RecordRollback(table)

				continue
			}

			return d.finishError(table, result, err, start)
		}

		monitored = diffSet(diffSegments(current, next))
		current = next
		revision = newRev
	}
}

// forceCommitOnce runs the force-commit coordinator exactly once for the
// segments that a probe of the next planner step would newly move into
// CONSUMING, then re-reads the IdealState and recomputes target against
// whatever the commit settled. It returns the (possibly refreshed)
// current, target, and revision.
func (d *Driver) forceCommitOnce(
	ctx context.Context,
	table string,
	cfg Config,
	current, target types.PlacementMap,
	revision uint64,
	result *RebalanceResult,
) (types.PlacementMap, types.PlacementMap, uint64, error) {
	probe := planner.NewStep(current, target, plannerConfig(cfg, d.partitionOracle))
	probeNext, err := probe.Plan(current, target)
	if err != nil {
		return current, target, revision, err
	}

	segments := movingToConsuming(current, probeNext)
	if len(segments) == 0 {
		return current, target, revision, nil
	}

	if _, err := d.forceCommit.Run(ctx, table, segments, current, target, cfg.forceCommitBatchConfig()); err != nil {
		return current, target, revision, err
	}

	latestDoc, err := d.gateway.ReadIdealState(ctx, table)
	if err != nil {
		return current, target, revision, err
	}
	current = latestDoc.Placement

	newTarget, err := d.policy.Rebalance(current, result.Partitions, cfg.Tiers, result.Tiers, policyConfig(cfg))
	if err != nil {
		return current, target, revision, err
	}
	target = newTarget
	result.Target = target

	return current, target, latestDoc.Revision, nil
}

// monitoredSegmentsChanged reports whether any segment in monitored has a
// different InstanceStateMap between previous and latest. A nil or empty
// monitored set (no segments tracked yet) reports false.
func monitoredSegmentsChanged(monitored map[types.SegmentID]struct{}, previous, latest types.PlacementMap) bool {
	for seg := range monitored {
		if !previous[seg].Equal(latest[seg]) {
			return true
		}
	}

	return false
}

// waitForConvergence blocks until the external view converges to is over
// monitored (nil means the whole placement), extending the stabilization
// deadline each time remaining shrinks, and either downgrading a timeout
// to a warning (bestEffort) or returning types.ErrConvergenceTimeout.
func (d *Driver) waitForConvergence(ctx context.Context, table string, is types.PlacementMap, monitored map[types.SegmentID]struct{}, cfg Config) error {
	interval := cfg.ExternalViewCheckInterval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := cfg.ExternalViewStabilizationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	deadline := time.Now().Add(timeout)
	lastRemaining := -1

	for {
		ev, present, err := d.gateway.ReadExternalView(ctx, table)
		if err != nil {
			return err
		}
		var evMap types.PlacementMap
		if present {
			evMap = types.PlacementMap(ev)
		}

		remaining, err := predicate.RemainingReplicas(evMap, is, cfg.LowDiskMode, cfg.BestEffort, monitored, false)
		if err != nil {
			return err
		}
		d.metrics.RecordRemainingReplicas(table, remaining)

		if remaining == 0 {
			return nil
		}

		if lastRemaining == -1 || remaining < lastRemaining {
			deadline = time.Now().Add(timeout)
		}
		lastRemaining = remaining

		if time.Now().After(deadline) {
			if cfg.BestEffort {
				d.logger.Warn("external view convergence timed out, continuing under best effort", "table", table, "remaining", remaining)
				d.metrics.RecordConvergenceTimeout(table, true)

				return nil
			}
			d.metrics.RecordConvergenceTimeout(table, false)

			return fmt.Errorf("%w: table %q has %d replicas remaining", types.ErrConvergenceTimeout, table, remaining)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func policyConfig(cfg Config) types.PolicyConfig {
	return types.PolicyConfig{NumReplicas: cfg.NumReplicas, MinimizeDataMovement: cfg.MinimizeDataMovement}
}

func plannerConfig(cfg Config, oracle planner.PartitionIDOracle) planner.Config {
	return planner.Config{
		MinAvailableReplicas: cfg.resolvedMinAvailableReplicas(),
		StrictReplicaGroup:   cfg.StrictReplicaGroup,
		LowDiskMode:          cfg.LowDiskMode,
		BatchSizePerServer:   cfg.plannerBatchSize(),
		Oracle:               oracle,
	}
}

// diffSegments returns every segment whose InstanceStateMap differs
// between current and next.
func diffSegments(current, next types.PlacementMap) []types.SegmentID {
	var out []types.SegmentID

	for _, seg := range next.SortedSegmentIDs() {
		if !current[seg].Equal(next[seg]) {
			out = append(out, seg)
		}
	}
	for _, seg := range current.SortedSegmentIDs() {
		if _, ok := next[seg]; !ok {
			out = append(out, seg)
		}
	}

	return out
}

func diffSet(segments []types.SegmentID) map[types.SegmentID]struct{} {
	out := make(map[types.SegmentID]struct{}, len(segments))
	for _, seg := range segments {
		out[seg] = struct{}{}
	}

	return out
}
