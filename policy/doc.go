// Package policy provides reference types.AssignmentPolicy implementations
// so the module is runnable and testable end-to-end without an external
// policy dependency. The core treats AssignmentPolicy as an external
// collaborator (types.AssignmentPolicy); these implementations are not
// part of that contract, just one concrete satisfaction of it.
package policy
