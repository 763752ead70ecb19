// Package types holds the core data model and capability interfaces shared
// across the rebalancer's internal packages.
//
// It mirrors the role of a library's top-level "model" package: concrete
// value types (SegmentState, PlacementMap, IdealStateDocument) that every
// component reads and writes, plus small capability interfaces
// (Logger, MetricsCollector, Observer, AssignmentPolicy) that let the
// driver depend on behavior rather than concrete implementations.
//
// Keeping these in their own package avoids import cycles: internal
// packages (store, planner, predicate, driver, ...) all depend on types,
// but types depends on none of them.
package types
