// Package driver implements the Rebalance Driver (§4.7): the top-level
// state machine that resolves instance partitions, computes a target
// placement via an AssignmentPolicy, and drives the authoritative
// IdealState toward that target in CAS-safe steps, either as a single
// downtime replace or as a no-downtime loop that waits for the external
// view to converge between writes.
//
// Driver.Run is the single entry point; everything else in this package
// is plumbing it owns for the duration of one call. Concurrent calls to
// Run (for different tables, in the same process) share only the
// package-level in-progress counter exposed by InProgressCount, per the
// specification's "global in-progress counter" shared resource.
package driver
