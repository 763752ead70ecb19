// Package observer provides reference types.Observer implementations:
// Nop, the driver's default when the caller supplies none, and Logging,
// a decorator that logs every trigger and terminal call through a
// types.Logger while delegating everything else to a wrapped Observer.
package observer
