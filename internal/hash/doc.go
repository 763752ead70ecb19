// Package hash implements a consistent hash ring with virtual nodes, used
// by the reference AssignmentPolicy implementations in package policy to
// pick instances for a segment's replicas with minimal movement when
// the instance set changes.
package hash
