package driver

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/segmentflow/rebalancer/types"
)

// Config is the full configuration for one Driver.Run call (§6). It is
// yaml-tag-annotated so a caller can load it from the same configuration
// file as the rest of the service.
type Config struct {
	NumReplicas   int `yaml:"numReplicas"`
	NumPartitions int `yaml:"numPartitions"`

	// Tiers lists storage tier names in priority order. Each tier's
	// instance partitions are restricted to instances tagged with the
	// tier's own name, in addition to RequiredTags.
	Tiers        []string `yaml:"tiers,omitempty"`
	RequiredTags []string `yaml:"requiredTags,omitempty"`

	DryRun            bool `yaml:"dryRun"`
	PreChecks         bool `yaml:"preChecks"`
	ReassignInstances bool `yaml:"reassignInstances"`
	// IncludeConsuming marks the table as having a realtime tail
	// (CONSUMING/COMPLETED categories are resolved, and tail segments are
	// included in planned movement) rather than being purely offline.
	// ForceCommit on a table with IncludeConsuming false is a config
	// error.
	IncludeConsuming bool `yaml:"includeConsuming"`
	Bootstrap        bool `yaml:"bootstrap"`
	Downtime         bool `yaml:"downtime"`

	// MinAvailableReplicas, if negative, is interpreted as "NumReplicas
	// minus this many" (a max-unavailable count) rather than an absolute
	// floor.
	MinAvailableReplicas int  `yaml:"minAvailableReplicas"`
	LowDiskMode          bool `yaml:"lowDiskMode"`
	BestEffort           bool `yaml:"bestEffort"`
	StrictReplicaGroup   bool `yaml:"strictReplicaGroup"`

	// BatchSizePerServer is >= 1, or -1 to disable the per-server batch
	// ceiling. 0 is invalid.
	BatchSizePerServer int `yaml:"batchSizePerServer"`

	ExternalViewCheckInterval        time.Duration `yaml:"externalViewCheckInterval"`
	ExternalViewStabilizationTimeout time.Duration `yaml:"externalViewStabilizationTimeout"`

	MinimizeDataMovement types.MinimizeDataMovement `yaml:"minimizeDataMovement"`

	ForceCommit                         bool          `yaml:"forceCommit"`
	ForceCommitBatchSize                int           `yaml:"forceCommitBatchSize"`
	ForceCommitBatchStatusCheckInterval time.Duration `yaml:"forceCommitBatchStatusCheckInterval"`
	ForceCommitBatchStatusCheckTimeout  time.Duration `yaml:"forceCommitBatchStatusCheckTimeout"`
}

// DefaultConfig returns a Config with the timing defaults the no-downtime
// loop and force-commit coordinator need to make forward progress; the
// caller still must set NumReplicas and NumPartitions.
func DefaultConfig() Config {
	return Config{
		NumReplicas:                         1,
		BatchSizePerServer:                  1,
		ExternalViewCheckInterval:           time.Second,
		ExternalViewStabilizationTimeout:    5 * time.Minute,
		ForceCommitBatchSize:                100,
		ForceCommitBatchStatusCheckInterval: time.Second,
		ForceCommitBatchStatusCheckTimeout:  time.Minute,
	}
}

// LoadConfigYAML decodes a Config from its YAML representation, using the
// same `yaml:"..."` tags an external configuration file would follow
// (triggering, loading, and watching that file are the caller's concern;
// this only does the decode). It does not run validate — call Run, which
// validates at Init.
func LoadConfigYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	return c, nil
}

// EncodeYAML serializes c back to YAML, the inverse of LoadConfigYAML.
// Useful for a caller persisting the effective Config a Run was invoked
// with alongside its result.
func (c Config) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}

	return data, nil
}

// resolvedMinAvailableReplicas turns the negative "max unavailable"
// shorthand into an absolute floor, clamped to zero.
func (c Config) resolvedMinAvailableReplicas() int {
	if c.MinAvailableReplicas >= 0 {
		return c.MinAvailableReplicas
	}

	v := c.NumReplicas + c.MinAvailableReplicas
	if v < 0 {
		return 0
	}

	return v
}

// validate runs the Init-state checks of §7: everything that must be
// caught before any side effect occurs.
func (c Config) validate() error {
	if c.NumReplicas <= 0 {
		return fmt.Errorf("%w: numReplicas must be positive, got %d", types.ErrInvalidConfig, c.NumReplicas)
	}
	if c.BatchSizePerServer == 0 {
		return fmt.Errorf("%w: batchSizePerServer must be >= 1 or -1 to disable, got 0", types.ErrInvalidConfig)
	}
	if c.PreChecks && !c.DryRun {
		return fmt.Errorf("%w: preChecks requires dryRun", types.ErrInvalidConfig)
	}
	if c.ForceCommit && !c.IncludeConsuming {
		return fmt.Errorf("%w: forceCommit requires includeConsuming (non-streaming table)", types.ErrInvalidConfig)
	}
	if c.resolvedMinAvailableReplicas() >= c.NumReplicas {
		return fmt.Errorf("%w: minAvailableReplicas (%d) must be less than numReplicas (%d)",
			types.ErrInvalidConfig, c.resolvedMinAvailableReplicas(), c.NumReplicas)
	}

	return nil
}

// plannerBatchSize converts the -1-disables convention this package uses
// into the planner's own 0-disables convention.
func (c Config) plannerBatchSize() int {
	if c.BatchSizePerServer < 0 {
		return 0
	}

	return c.BatchSizePerServer
}

func (c Config) forceCommitBatchConfig() types.ForceCommitBatchConfig {
	return types.ForceCommitBatchConfig{
		BatchSize:           c.ForceCommitBatchSize,
		StatusCheckInterval: int(c.ForceCommitBatchStatusCheckInterval / time.Millisecond),
		StatusCheckTimeout:  int(c.ForceCommitBatchStatusCheckTimeout / time.Millisecond),
	}
}
