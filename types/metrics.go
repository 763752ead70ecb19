package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations must be non-blocking and safe for concurrent use; all
// methods may be called from the driver goroutine of any number of
// concurrently running rebalance jobs.
type MetricsCollector interface {
	DriverMetrics
	PlannerMetrics
	StoreMetrics
}

// DriverMetrics covers the top-level state machine (§4.7).
type DriverMetrics interface {
	// RecordRun records a terminal classification for a completed run.
	RecordRun(table string, status TerminalStatus, duration float64)
	// RecordRollback records a CAS version collision.
	RecordRollback(table string)
	// RecordForceCommit records a force-commit round, successful or not.
	RecordForceCommit(table string, segments int, success bool, duration float64)
	// RecordConvergenceTimeout records an EV stabilization timeout,
	// noting whether bestEffort downgraded it to a warning.
	RecordConvergenceTimeout(table string, downgraded bool)
	// SetInProgress sets the count of concurrently running jobs.
	SetInProgress(count int)
}

// PlannerMetrics covers the next-step planner (§4.5).
type PlannerMetrics interface {
	// RecordStep records one planner invocation: how many segments moved,
	// and in strict mode how many replica groups were admitted.
	RecordStep(table string, segmentsMoved int, groupsAdmitted int)
	// RecordBatchOverride records a strict-mode admission that exceeded
	// batchSizePerServer because it was the server's first partition of
	// the step (§4.5, invariant 5).
	RecordBatchOverride(table string, server string)
	// RecordRemainingReplicas records the convergence predicate's result
	// for the current monitored set.
	RecordRemainingReplicas(table string, remaining int)
}

// StoreMetrics covers the placement store gateway (§4.1).
type StoreMetrics interface {
	// RecordStoreOperation records one gateway call's latency and outcome.
	RecordStoreOperation(op string, duration float64, err error)
}
