// Package planner computes the next intermediate PlacementMap on the path
// from a current placement to a target placement, in non-strict or
// strict-replica-group mode, respecting a minimum-available-replicas floor
// and a per-server batch ceiling.
//
// All state here (assignment cache, pending-offload counters, batch
// quotas) is scoped to a single Step and must be discarded once the
// driver has CAS-written the result; reusing a Step across driver
// iterations would bleed one step's batching decisions into the next.
package planner
