package rebalancer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer"
	"github.com/segmentflow/rebalancer/internal/partitions"
	"github.com/segmentflow/rebalancer/internal/store"
	"github.com/segmentflow/rebalancer/policy"
	"github.com/segmentflow/rebalancer/types"
)

func TestNew_RunDelegatesToDriver(t *testing.T) {
	fake := store.NewFake()
	fake.SetInstanceConfigs([]rebalancer.InstanceConfig{
		{ID: "i1", Enabled: true},
		{ID: "i2", Enabled: true},
	})
	placement := rebalancer.PlacementMap{"s1": {"i1": rebalancer.Online, "i2": rebalancer.Online}}
	rev := fake.SeedIdealState("events", types.IdealStateDocument{
		Placement: placement, NumReplicas: 2, NumPartitions: 1, Enabled: true,
	})
	// Pre-seed the instance partitions DefaultDriver would compute anyway,
	// so the resolver's advisory "unchanged" flag is true and this run
	// exercises the no-op path rather than a first-ever bootstrap.
	require.NoError(t, fake.WriteInstancePartitions(context.Background(), "events", types.InstancePartitions{
		Category:      types.CategoryOffline,
		ReplicaGroups: map[int][]types.InstanceID{0: {"i1", "i2"}},
	}))

	rb := rebalancer.New(fake, fake, policy.NewConsistentHash(), partitions.DefaultDriver)

	result := rb.Run(context.Background(), "events", rebalancer.Config{
		NumReplicas: 2, NumPartitions: 1, BatchSizePerServer: 1,
	})

	assert.Equal(t, rebalancer.StatusNoOp, result.Status)

	doc, err := fake.ReadIdealState(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, rev, doc.Revision)
}

func TestInProgressCount_ZeroWhenNoRunIsExecuting(t *testing.T) {
	assert.Equal(t, 0, rebalancer.InProgressCount())
}
