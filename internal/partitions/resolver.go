package partitions

import (
	"context"
	"fmt"

	"github.com/segmentflow/rebalancer/internal/store"
	"github.com/segmentflow/rebalancer/types"
)

// Config describes how one category's InstancePartitions document should
// be shaped when it needs recomputing.
type Config struct {
	NumReplicas   int
	NumPartitions int
	// Tier is non-empty only when the category being resolved is
	// types.CategoryTier.
	Tier string
	// RequiredTags restricts the candidate pool to instances carrying
	// every listed tag (e.g. a storage-tier's dedicated hardware class).
	RequiredTags []string
}

// Options controls a single Resolve call, mirroring the core's
// reassignInstances/bootstrap/dryRun configuration (§4.2 of the
// specification's instance-partitions contract).
type Options struct {
	// Applicable reports whether this category currently applies to the
	// table. When false, any persisted document for it is removed.
	Applicable bool
	// ReassignInstances forces recomputation from current instance
	// configs even when a persisted document already exists.
	ReassignInstances bool
	// Bootstrap forces recomputation and ignores the persisted document
	// entirely (fresh allocation).
	Bootstrap bool
	// DryRun skips persistence; the computed document is still returned.
	DryRun bool
}

// Driver computes a fresh InstancePartitions document for category from
// the coordination service's currently known instance configs. It is the
// pluggable "driver" function §4.2 references.
type Driver func(category types.InstancePartitionsCategory, instances []types.InstanceConfig, cfg Config) (types.InstancePartitions, error)

// Resolver is the Instance Partitions Resolver (§4.2).
type Resolver struct {
	gateway store.Gateway
	ipStore store.InstancePartitionsStore
	driver  Driver
}

// NewResolver builds a Resolver. driver is typically DefaultDriver but
// may be any function of type Driver.
func NewResolver(gateway store.Gateway, ipStore store.InstancePartitionsStore, driver Driver) *Resolver {
	return &Resolver{gateway: gateway, ipStore: ipStore, driver: driver}
}

// Resolve returns the InstancePartitions document for category, recomputing
// it when necessary and persisting the result unless opts.DryRun is set.
// unchanged is advisory only: callers must not depend on it for
// correctness (§4.2).
func (r *Resolver) Resolve(
	ctx context.Context,
	table string,
	category types.InstancePartitionsCategory,
	cfg Config,
	opts Options,
) (types.InstancePartitions, bool, error) {
	existing, found, err := r.ipStore.ReadInstancePartitions(ctx, table, category, cfg.Tier)
	if err != nil {
		return types.InstancePartitions{}, false, fmt.Errorf("read instance partitions: %w", err)
	}

	if !opts.Applicable {
		if found && !opts.DryRun {
			if err := r.ipStore.DeleteInstancePartitions(ctx, table, category, cfg.Tier); err != nil {
				return types.InstancePartitions{}, false, fmt.Errorf("delete inapplicable instance partitions: %w", err)
			}
		}

		return types.InstancePartitions{}, false, nil
	}

	if found && !opts.Bootstrap && !opts.ReassignInstances {
		return existing, true, nil
	}

	instances, err := r.gateway.ReadInstanceConfigs(ctx)
	if err != nil {
		return types.InstancePartitions{}, false, fmt.Errorf("read instance configs: %w", err)
	}

	computed, err := r.driver(category, instances, cfg)
	if err != nil {
		return types.InstancePartitions{}, false, fmt.Errorf("compute instance partitions: %w", err)
	}

	unchanged := found && existing.Equal(computed)

	if !opts.DryRun {
		if err := r.ipStore.WriteInstancePartitions(ctx, table, computed); err != nil {
			return types.InstancePartitions{}, false, fmt.Errorf("write instance partitions: %w", err)
		}
	}

	return computed, unchanged, nil
}
