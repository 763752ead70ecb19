// Package store implements the Placement Store Gateway (§4.1): versioned
// read/compare-and-set access to the authoritative IdealState document,
// and read access to the externally reported ExternalView and the
// coordination service's instance configs.
//
// Gateway is the interface the driver depends on. JetStreamGateway backs
// it with a NATS JetStream KeyValue bucket per document kind, whose native
// per-key revision is exactly the CAS token §4.1 calls for. Fake backs it
// with an in-memory map for deterministic unit tests.
package store
