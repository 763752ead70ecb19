package forcecommit

import (
	"context"
	"fmt"
	"time"

	metricsPkg "github.com/segmentflow/rebalancer/internal/metrics"
	"github.com/segmentflow/rebalancer/observer"
	"github.com/segmentflow/rebalancer/types"
)

// Coordinator drives one force-commit round: request a commit, then poll
// until the manager reports everything committed or the batch's status
// check timeout elapses.
type Coordinator struct {
	manager  types.RealtimeManager
	observer types.Observer
	metrics  types.MetricsCollector
}

// NewCoordinator builds a Coordinator. obs and metrics may be nil, in
// which case observer.Nop and metrics.NopMetrics-equivalent no-ops are
// used so the coordinator stays total.
func NewCoordinator(manager types.RealtimeManager, obs types.Observer, metrics types.MetricsCollector) *Coordinator {
	if obs == nil {
		obs = observer.Nop{}
	}
	if metrics == nil {
		metrics = metricsPkg.NewNop()
	}

	return &Coordinator{manager: manager, observer: obs, metrics: metrics}
}

// Run commits segments and waits for them to settle. current/target are
// passed through only so the FORCE_COMMIT_START/END observer triggers
// carry the same placement context as every other trigger in the run.
func (c *Coordinator) Run(
	ctx context.Context,
	table string,
	segments []types.SegmentID,
	current, target types.PlacementMap,
	cfg types.ForceCommitBatchConfig,
) ([]types.SegmentID, error) {
	start := time.Now()
	c.observer.OnTrigger(ctx, types.TriggerForceCommitStart, current, target)

	committed, err := c.manager.ForceCommit(ctx, table, segments, cfg)
	if err != nil {
		c.finish(ctx, table, current, target, len(segments), false, start)

		return nil, fmt.Errorf("%w: %w", types.ErrForceCommitFailed, err)
	}

	if err := c.waitUntilCommitted(ctx, table, committed, cfg); err != nil {
		c.finish(ctx, table, current, target, len(committed), false, start)

		return nil, err
	}

	c.finish(ctx, table, current, target, len(committed), true, start)

	return committed, nil
}

func (c *Coordinator) finish(ctx context.Context, table string, current, target types.PlacementMap, n int, success bool, start time.Time) {
	c.observer.OnTrigger(ctx, types.TriggerForceCommitEnd, current, target)
	c.metrics.RecordForceCommit(table, n, success, time.Since(start).Seconds())
}

func (c *Coordinator) waitUntilCommitted(ctx context.Context, table string, set []types.SegmentID, cfg types.ForceCommitBatchConfig) error {
	if len(set) == 0 {
		return nil
	}

	interval := time.Duration(cfg.StatusCheckInterval) * time.Millisecond
	timeout := time.Duration(cfg.StatusCheckTimeout) * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		remaining, err := c.manager.GetSegmentsYetToBeCommitted(ctx, table, set)
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrForceCommitFailed, err)
		}
		if len(remaining) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d segments still uncommitted after %s", types.ErrForceCommitFailed, len(remaining), len(set), timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
