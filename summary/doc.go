// Package summary computes an advisory diff between a current and target
// PlacementMap for dry runs and pre-checks (§4.9): per-server movement
// counts and tag breakdown, replication factor before/after, and,
// when the optional oracles are supplied, estimated data movement and
// top-N consuming-segment age/offset lag. A failing oracle never fails
// Summarize; it degrades that one field to a -1 sentinel.
package summary
