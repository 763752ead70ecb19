package store

import (
	"context"

	"github.com/segmentflow/rebalancer/types"
)

// Gateway is the Placement Store Gateway contract (§4.1). All reads are
// point-in-time; implementations must not cache.
type Gateway interface {
	// ReadIdealState fails with types.ErrNotFound or types.ErrTransient.
	ReadIdealState(ctx context.Context, table string) (types.IdealStateDocument, error)

	// ReadExternalView returns (view, false, nil) when the table has no
	// external view yet (a newly created table may lack one, per §4.1).
	ReadExternalView(ctx context.Context, table string) (view types.ExternalView, present bool, err error)

	// CASUpdateIdealState writes next as the table's new placement,
	// succeeding only if the store's current revision equals
	// expectedRevision. On success it returns the new revision. On a
	// collision it returns types.ErrVersionMismatch wrapped in a
	// *types.VersionMismatchDetail.
	CASUpdateIdealState(ctx context.Context, table string, next types.PlacementMap, expectedRevision uint64) (newRevision uint64, err error)

	// ReadInstanceConfigs lists the coordination service's known server
	// configs, used by the Instance Partitions Resolver to resolve tags.
	ReadInstanceConfigs(ctx context.Context) ([]types.InstanceConfig, error)
}

// InstancePartitionsStore is the narrower CAS-free store the Instance
// Partitions Resolver uses to persist or remove InstancePartitions
// documents (§4.2). It is split from Gateway because instance-partitions
// documents are not versioned the way IdealState is: the Resolver simply
// overwrites or deletes them.
type InstancePartitionsStore interface {
	ReadInstancePartitions(ctx context.Context, table string, category types.InstancePartitionsCategory, tier string) (types.InstancePartitions, bool, error)
	WriteInstancePartitions(ctx context.Context, table string, ip types.InstancePartitions) error
	DeleteInstancePartitions(ctx context.Context, table string, category types.InstancePartitionsCategory, tier string) error
}
