// Package partitions resolves, per category, the InstancePartitions
// document that an AssignmentPolicy reads its candidate pool from. It is
// the bridge between the coordination service's current instance
// configs and the policy's (current, target) rebalance call: persisted
// replica-group assignments only change when asked to (reassignInstances
// or bootstrap), so a policy call made between two Resolve calls sees a
// stable pool even if instances flap in the coordination service.
package partitions
