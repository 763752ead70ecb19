package rebalancer

import "github.com/segmentflow/rebalancer/types"

// Re-exported from package types, so a caller that only needs the public
// surface does not have to import both this package and its types
// subpackage.
type (
	PlacementMap               = types.PlacementMap
	InstanceStateMap           = types.InstanceStateMap
	SegmentID                  = types.SegmentID
	InstanceID                 = types.InstanceID
	SegmentState               = types.SegmentState
	InstanceConfig             = types.InstanceConfig
	InstancePartitions         = types.InstancePartitions
	InstancePartitionsCategory = types.InstancePartitionsCategory
	TerminalStatus             = types.TerminalStatus
	MinimizeDataMovement       = types.MinimizeDataMovement
)

// Re-exported interfaces every caller wiring a Rebalancer needs to
// implement or supply an implementation of.
type (
	AssignmentPolicy = types.AssignmentPolicy
	Observer         = types.Observer
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	RealtimeManager  = types.RealtimeManager
)

const (
	Online    = types.Online
	Consuming = types.Consuming
	Offline   = types.Offline
	Error     = types.Error
	Dropped   = types.Dropped
)

const (
	StatusNoOp      = types.StatusNoOp
	StatusDone      = types.StatusDone
	StatusFailed    = types.StatusFailed
	StatusAborted   = types.StatusAborted
	StatusCancelled = types.StatusCancelled
	StatusDryRun    = types.StatusDryRun
)
