package rebalancer

import "github.com/segmentflow/rebalancer/types"

// Sentinel errors returned by Run, re-exported from package types.
var (
	ErrNotFound           = types.ErrNotFound
	ErrDisabledTable      = types.ErrDisabledTable
	ErrInvalidConfig      = types.ErrInvalidConfig
	ErrStuckInError       = types.ErrStuckInError
	ErrConvergenceTimeout = types.ErrConvergenceTimeout
	ErrVersionMismatch    = types.ErrVersionMismatch
	ErrForceCommitFailed  = types.ErrForceCommitFailed
	ErrTransient          = types.ErrTransient
)
