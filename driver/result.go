package driver

import (
	"github.com/segmentflow/rebalancer/summary"
	"github.com/segmentflow/rebalancer/types"
)

// RebalanceResult is what Driver.Run returns: the terminal classification
// plus enough of the run's state for a caller to understand what
// happened or, for a dry run, what would happen.
type RebalanceResult struct {
	Table  string
	Status types.TerminalStatus

	// DryRun marks a dry-run completion, which carries Status ==
	// types.StatusDryRun; a real Done carries types.StatusDone. Both
	// statuses stringify to "DONE", so DryRun is what tells them apart in
	// rendered output.
	DryRun bool

	Message string
	Err     error

	Partitions map[types.InstancePartitionsCategory]types.InstancePartitions
	Tiers      map[string]types.InstancePartitions
	Target     types.PlacementMap

	// Summary is non-nil only for a dry run or a preCheck, where it is
	// computed instead of actually writing the placement.
	Summary *summary.Result

	Warnings []string
}
