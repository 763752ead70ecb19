// Package forcecommit implements the Force-Commit Coordinator (§4.6): it
// asks an external types.RealtimeManager to commit a set of
// tail-of-stream segments, then polls until the manager reports them all
// committed or a timeout elapses. NATSRealtimeManager is a reference
// types.RealtimeManager over NATS request/reply, so the coordinator is
// runnable end-to-end without a bespoke realtime manager.
package forcecommit
