package rebalancer

import "github.com/segmentflow/rebalancer/driver"

// Config is the full configuration for one Run call, re-exported from
// package driver so a caller only needs to import this package.
type Config = driver.Config

// DefaultConfig returns a Config with the timing defaults the
// no-downtime loop and force-commit coordinator need to make forward
// progress; the caller still must set NumReplicas and NumPartitions.
func DefaultConfig() Config {
	return driver.DefaultConfig()
}
