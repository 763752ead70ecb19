package policy

import "github.com/segmentflow/rebalancer/types"

// StrictRealtimeConsistentHash is ConsistentHash with IsStrictRealtime set,
// for deployments where the realtime (consuming) segment's IdealState
// entry is expected to change state underfoot (e.g. a stream processor
// promoting CONSUMING to ONLINE independently of any rebalance) and the
// driver must re-plan against a fresh read rather than reuse a stale one.
type StrictRealtimeConsistentHash struct {
	*ConsistentHash
}

// NewStrictRealtimeConsistentHash builds a StrictRealtimeConsistentHash
// policy with the same options as ConsistentHash.
func NewStrictRealtimeConsistentHash(opts ...Option) *StrictRealtimeConsistentHash {
	return &StrictRealtimeConsistentHash{ConsistentHash: NewConsistentHash(opts...)}
}

var _ types.AssignmentPolicy = (*StrictRealtimeConsistentHash)(nil)

// IsStrictRealtime reports true.
func (c *StrictRealtimeConsistentHash) IsStrictRealtime() bool { return true }
