package metrics

import "github.com/segmentflow/rebalancer/types"

// NopMetrics implements a no-op metrics collector. All metrics are
// discarded. Useful for testing or when no metrics backend is wired up.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordRun discards the terminal-classification metric.
func (n *NopMetrics) RecordRun(_ string, _ types.TerminalStatus, _ float64) {}

// RecordRollback discards the CAS-collision metric.
func (n *NopMetrics) RecordRollback(_ string) {}

// RecordForceCommit discards the force-commit round metric.
func (n *NopMetrics) RecordForceCommit(_ string, _ int, _ bool, _ float64) {}

// RecordConvergenceTimeout discards the EV stabilization timeout metric.
func (n *NopMetrics) RecordConvergenceTimeout(_ string, _ bool) {}

// SetInProgress discards the in-progress job count metric.
func (n *NopMetrics) SetInProgress(_ int) {}

// RecordStep discards the planner step metric.
func (n *NopMetrics) RecordStep(_ string, _ int, _ int) {}

// RecordBatchOverride discards the strict-mode batch-override metric.
func (n *NopMetrics) RecordBatchOverride(_ string, _ string) {}

// RecordRemainingReplicas discards the convergence predicate's result.
func (n *NopMetrics) RecordRemainingReplicas(_ string, _ int) {}

// RecordStoreOperation discards the placement store gateway call metric.
func (n *NopMetrics) RecordStoreOperation(_ string, _ float64, _ error) {}
