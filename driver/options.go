package driver

import (
	"github.com/segmentflow/rebalancer/forcecommit"
	"github.com/segmentflow/rebalancer/internal/planner"
	"github.com/segmentflow/rebalancer/types"
)

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithObserver attaches an Observer for progress reporting and
// cooperative stop. The default is observer.Nop.
func WithObserver(obs types.Observer) Option {
	return func(d *Driver) { d.observer = obs }
}

// WithForceCommitCoordinator attaches the coordinator Run uses when
// Config.ForceCommit is set. Without one, a Run with ForceCommit set is
// rejected as a config error at Init, even for a streaming table, before
// the IdealState is read.
func WithForceCommitCoordinator(c *forcecommit.Coordinator) Option {
	return func(d *Driver) { d.forceCommit = c }
}

// WithMetrics attaches a MetricsCollector. The default discards
// everything.
func WithMetrics(m types.MetricsCollector) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithLogger attaches a Logger. The default discards everything.
func WithLogger(l types.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithPartitionIDOracle attaches the oracle strict-replica-group planning
// needs to group segments by partition id. Required only when a run's
// Config.StrictReplicaGroup is true.
func WithPartitionIDOracle(o planner.PartitionIDOracle) Option {
	return func(d *Driver) { d.partitionOracle = o }
}
