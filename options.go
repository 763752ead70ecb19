package rebalancer

import (
	"github.com/segmentflow/rebalancer/driver"
	"github.com/segmentflow/rebalancer/forcecommit"
	"github.com/segmentflow/rebalancer/internal/planner"
)

// Option configures a Rebalancer at construction time, re-exported from
// package driver.
type Option = driver.Option

// WithObserver attaches an Observer for progress reporting and
// cooperative stop. The default is observer.Nop.
func WithObserver(obs Observer) Option { return driver.WithObserver(obs) }

// WithForceCommitCoordinator attaches the coordinator Run uses when a
// call's Config.ForceCommit is set.
func WithForceCommitCoordinator(c *forcecommit.Coordinator) Option {
	return driver.WithForceCommitCoordinator(c)
}

// WithMetrics attaches a MetricsCollector. The default discards
// everything.
func WithMetrics(m MetricsCollector) Option { return driver.WithMetrics(m) }

// WithLogger attaches a Logger. The default discards everything.
func WithLogger(l Logger) Option { return driver.WithLogger(l) }

// WithPartitionIDOracle attaches the oracle strict-replica-group
// planning needs to group segments by partition id.
func WithPartitionIDOracle(o planner.PartitionIDOracle) Option {
	return driver.WithPartitionIDOracle(o)
}
