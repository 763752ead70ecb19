package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentflow/rebalancer/internal/partitions"
	"github.com/segmentflow/rebalancer/summary"
	"github.com/segmentflow/rebalancer/types"
)

// plan is the Plan state of §4.7: read the authoritative IdealState,
// resolve instance partitions for every applicable category and tier,
// compute a target placement, and decide whether any further work is
// needed at all.
func (d *Driver) plan(ctx context.Context, table string, cfg Config, result RebalanceResult, start time.Time) RebalanceResult {
	isDoc, err := d.gateway.ReadIdealState(ctx, table)
	if err != nil {
		return d.finishError(table, result, err, start)
	}

	if !isDoc.Enabled && !cfg.Downtime {
		return d.finishFailedAt(table, result, types.ErrDisabledTable, start)
	}

	d.observer.OnTrigger(ctx, types.TriggerStart, isDoc.Placement, nil)

	byCategory, tierPartitions, sortedTiers, partitionsChanged, err := d.resolvePartitions(ctx, table, cfg)
	if err != nil {
		return d.finishError(table, result, err, start)
	}
	result.Partitions = byCategory
	result.Tiers = tierPartitions

	current := isDoc.Placement
	target, err := d.policy.Rebalance(current, byCategory, sortedTiers, tierPartitions, types.PolicyConfig{
		NumReplicas:          cfg.NumReplicas,
		MinimizeDataMovement: cfg.MinimizeDataMovement,
	})
	if err != nil {
		return d.finishError(table, result, err, start)
	}
	result.Target = target

	if target.Equal(current) && !partitionsChanged {
		return d.finishNoOp(table, result, start)
	}

	if cfg.DryRun {
		sum := summary.Summarize(ctx, table, current, target, summary.Options{})
		result.Summary = &sum

		return d.finishDryRun(table, result, start)
	}

	if d.observer.IsStopped() {
		return d.finishStopped(table, result, start)
	}

	if cfg.Downtime || !isDoc.Enabled {
		return d.runDowntime(ctx, table, cfg, isDoc, current, target, result, start)
	}

	return d.runNoDowntimeLoop(ctx, table, cfg, isDoc, current, target, result, start)
}

// resolvePartitions resolves every category and tier this table needs.
// partitionsChanged is a refinement of the resolver's per-call advisory
// "unchanged" flag: a category that stays inapplicable across runs
// reports unchanged=false every time (nothing was ever persisted for it
// to compare against), which would otherwise make partitionsChanged
// permanently true for any table lacking a realtime component or tiers.
// Only an applicable category's change is counted.
func (d *Driver) resolvePartitions(ctx context.Context, table string, cfg Config) (
	map[types.InstancePartitionsCategory]types.InstancePartitions,
	map[string]types.InstancePartitions,
	[]string,
	bool,
	error,
) {
	byCategory := make(map[types.InstancePartitionsCategory]types.InstancePartitions)
	changed := false

	resolve := func(category types.InstancePartitionsCategory, tier string, applicable bool, requiredTags []string) (types.InstancePartitions, error) {
		ip, unchanged, err := d.resolver.Resolve(ctx, table, category, partitions.Config{
			NumReplicas:   cfg.NumReplicas,
			NumPartitions: cfg.NumPartitions,
			Tier:          tier,
			RequiredTags:  requiredTags,
		}, partitions.Options{
			Applicable:        applicable,
			ReassignInstances: cfg.ReassignInstances,
			Bootstrap:         cfg.Bootstrap,
			DryRun:            cfg.DryRun,
		})
		if err != nil {
			return types.InstancePartitions{}, err
		}
		if applicable && !unchanged {
			changed = true
		}

		return ip, nil
	}

	offline, err := resolve(types.CategoryOffline, "", true, cfg.RequiredTags)
	if err != nil {
		return nil, nil, nil, false, fmt.Errorf("resolve OFFLINE instance partitions: %w", err)
	}
	byCategory[types.CategoryOffline] = offline

	if cfg.IncludeConsuming {
		consuming, err := resolve(types.CategoryConsuming, "", true, cfg.RequiredTags)
		if err != nil {
			return nil, nil, nil, false, fmt.Errorf("resolve CONSUMING instance partitions: %w", err)
		}
		byCategory[types.CategoryConsuming] = consuming

		completed, err := resolve(types.CategoryCompleted, "", true, cfg.RequiredTags)
		if err != nil {
			return nil, nil, nil, false, fmt.Errorf("resolve COMPLETED instance partitions: %w", err)
		}
		byCategory[types.CategoryCompleted] = completed
	}

	tierPartitions := make(map[string]types.InstancePartitions, len(cfg.Tiers))
	for _, tier := range cfg.Tiers {
		requiredTags := append(append([]string{}, cfg.RequiredTags...), tier)

		ip, err := resolve(types.CategoryTier, tier, true, requiredTags)
		if err != nil {
			return nil, nil, nil, false, fmt.Errorf("resolve tier %q instance partitions: %w", tier, err)
		}
		tierPartitions[tier] = ip
	}

	return byCategory, tierPartitions, cfg.Tiers, changed, nil
}
