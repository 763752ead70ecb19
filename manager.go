package rebalancer

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/segmentflow/rebalancer/driver"
	"github.com/segmentflow/rebalancer/internal/partitions"
	"github.com/segmentflow/rebalancer/internal/store"
)

// Rebalancer is the primary entry point of this module. It wires a
// placement store, an assignment policy, and an instance-partitions
// driver into a driver.Driver and forwards Run calls to it.
//
// Thread Safety:
//   - Run is safe for concurrent use across different tables.
//   - Two concurrent Run calls for the same table race on the same
//     IdealState document; the caller is responsible for serializing
//     rebalances of one table.
type Rebalancer struct {
	d *driver.Driver
}

// New builds a Rebalancer over an already-constructed store.Gateway.
// Use NewJetStream for the common case of a NATS JetStream-backed store.
func New(
	gateway store.Gateway,
	ipStore store.InstancePartitionsStore,
	policy AssignmentPolicy,
	ipDriver partitions.Driver,
	opts ...Option,
) *Rebalancer {
	return &Rebalancer{d: driver.New(gateway, ipStore, policy, ipDriver, opts...)}
}

// NewJetStream builds a Rebalancer backed by four JetStream KeyValue
// buckets under "<namespace>_IDEALSTATE", "..._EXTERNALVIEW",
// "..._INSTANCEPARTITIONS", and "..._INSTANCECONFIG", creating any that
// do not already exist.
func NewJetStream(
	ctx context.Context,
	js jetstream.JetStream,
	namespace string,
	policy AssignmentPolicy,
	ipDriver partitions.Driver,
	opts ...Option,
) (*Rebalancer, error) {
	cfg, err := store.EnsureBuckets(ctx, js, namespace)
	if err != nil {
		return nil, fmt.Errorf("ensure jetstream buckets: %w", err)
	}
	gateway := store.NewJetStreamGateway(cfg)

	return New(gateway, gateway, policy, ipDriver, opts...), nil
}

// Run executes one rebalance of table under cfg. See driver.Driver.Run
// for the full state machine this drives.
func (r *Rebalancer) Run(ctx context.Context, table string, cfg Config) driver.RebalanceResult {
	return r.d.Run(ctx, table, cfg)
}

// InProgressCount returns the number of Run calls currently executing
// across every Rebalancer in this process.
func InProgressCount() int {
	return driver.InProgressCount()
}
