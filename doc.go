// Package rebalancer computes and drives segment-to-server placement for
// a table-oriented, CAS-versioned coordination store, in the style of
// Apache Pinot's table rebalancer.
//
// # Quick Start
//
//	js, _ := jetstream.New(natsConn)
//	rb, err := rebalancer.NewJetStream(ctx, js, "prod", policy.NewConsistentHash(), partitions.DefaultDriver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := rebalancer.DefaultConfig()
//	cfg.NumReplicas = 3
//	cfg.NumPartitions = 12
//	result := rb.Run(ctx, "events", cfg)
//	if result.Status == rebalancer.StatusFailed {
//	    log.Fatal(result.Err)
//	}
//
// # Architecture
//
// A Rebalance Driver run reads the authoritative IdealState for one
// table, resolves instance partitions, asks an AssignmentPolicy for a
// target placement, and drives the IdealState toward that target either
// as a single downtime replace or as a no-downtime loop that waits for
// the external view to converge between CAS-versioned writes. See
// package driver for the state machine itself; this package is a thin
// construction facade over driver, store, and the reference policy
// implementations in package policy.
package rebalancer
