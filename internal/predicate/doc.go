// Package predicate implements the convergence predicate: the pure
// comparison between an observed ExternalView and a target PlacementMap
// that the driver polls while waiting for servers to catch up with an
// IdealState write.
package predicate
