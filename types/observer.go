package types

import "context"

// TriggerKind identifies the point in the rebalance state machine an
// observer trigger fires at (§4.8).
type TriggerKind int

const (
	// TriggerStart fires once, on entry to the Plan state.
	TriggerStart TriggerKind = iota
	// TriggerEVToISConvergence fires on each external-view stabilization
	// check.
	TriggerEVToISConvergence
	// TriggerIdealStateChange fires after the driver observes the
	// IdealState's version has changed underfoot.
	TriggerIdealStateChange
	// TriggerNextAssignmentCalculation fires after the planner computes
	// the next intermediate placement.
	TriggerNextAssignmentCalculation
	// TriggerForceCommitStart fires before the force-commit coordinator
	// begins committing consuming segments.
	TriggerForceCommitStart
	// TriggerForceCommitEnd fires after force-commit completes (or fails).
	TriggerForceCommitEnd
)

// String returns a human-readable name for the trigger kind.
func (k TriggerKind) String() string {
	switch k {
	case TriggerStart:
		return "START"
	case TriggerEVToISConvergence:
		return "EV_TO_IS_CONVERGENCE"
	case TriggerIdealStateChange:
		return "IDEAL_STATE_CHANGE"
	case TriggerNextAssignmentCalculation:
		return "NEXT_ASSIGNMENT_CALCULATION"
	case TriggerForceCommitStart:
		return "FORCE_COMMIT_START"
	case TriggerForceCommitEnd:
		return "FORCE_COMMIT_END"
	default:
		return "UNKNOWN"
	}
}

// TerminalStatus is the caller-facing classification of how a rebalance
// run ended (§6).
type TerminalStatus int

const (
	// StatusNoOp means the target already equals current and the
	// instance partitions are unchanged; no write occurred.
	StatusNoOp TerminalStatus = iota
	// StatusDone means the rebalance converged successfully.
	StatusDone
	// StatusFailed means a fatal error ended the run.
	StatusFailed
	// StatusAborted means the observer requested a stop and the driver
	// honored it before making any further placement change.
	StatusAborted
	// StatusCancelled is like StatusAborted but distinguishes an
	// externally-cancelled context from an observer-requested stop.
	StatusCancelled
	// StatusDryRun means planning completed but no write was attempted,
	// because the run was configured as dry-run.
	StatusDryRun
)

// String returns the wire-compatible name of the terminal status.
func (s TerminalStatus) String() string {
	switch s {
	case StatusNoOp:
		return "NO_OP"
	case StatusDone:
		return "DONE"
	case StatusFailed:
		return "FAILED"
	case StatusAborted:
		return "ABORTED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusDryRun:
		return "DONE" // dry-run is reported as Done with DryRun detail; see RebalanceResult.
	default:
		return "UNKNOWN"
	}
}

// Observer is the capability set the driver calls into for progress
// reporting, error reporting, and cooperative stop (§4.8).
//
// A no-op implementation (observer.Nop, package observer) is supplied by
// default so the driver remains total even when the caller provides none.
type Observer interface {
	// OnTrigger is called at each checkpoint named by TriggerKind, with
	// the current and (possibly still being computed) target placement.
	OnTrigger(ctx context.Context, kind TriggerKind, current, target PlacementMap)

	// OnNoop is called exactly once, when the run terminates NoOp.
	OnNoop(message string)

	// OnSuccess is called exactly once, when the run terminates Done.
	OnSuccess(message string)

	// OnError is called exactly once, when the run terminates Failed.
	OnError(err error)

	// OnRollback is called each time a CAS write collides with a
	// concurrent IdealState mutation, before the driver re-reads and
	// re-plans.
	OnRollback()

	// IsStopped is polled at the checkpoints named in §4.8: before each
	// IdealState write, immediately after external-view convergence, and
	// after each IdealStateChange/NextAssignmentCalculation trigger.
	IsStopped() bool

	// GetStopStatus returns the terminal status to report when IsStopped
	// returns true (StatusAborted or StatusCancelled).
	GetStopStatus() TerminalStatus
}
