package observer

import (
	"context"

	"github.com/segmentflow/rebalancer/types"
)

// Nop implements types.Observer with no side effects and never requests
// a stop. It is the driver's default so that a caller that supplies no
// observer still gets a total, well-defined run.
type Nop struct{}

var _ types.Observer = Nop{}

// NewNop returns an Observer that does nothing and never stops the run.
func NewNop() Nop { return Nop{} }

func (Nop) OnTrigger(_ context.Context, _ types.TriggerKind, _, _ types.PlacementMap) {}
func (Nop) OnNoop(_ string)                                                           {}
func (Nop) OnSuccess(_ string)                                                        {}
func (Nop) OnError(_ error)                                                           {}
func (Nop) OnRollback()                                                               {}
func (Nop) IsStopped() bool                                                           { return false }
func (Nop) GetStopStatus() types.TerminalStatus                                       { return types.StatusAborted }
