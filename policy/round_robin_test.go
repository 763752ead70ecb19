package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer/policy"
	"github.com/segmentflow/rebalancer/types"
)

func TestRoundRobin_DistributesEvenlyAcrossPool(t *testing.T) {
	p := policy.NewRoundRobin()
	current := basicCurrent("seg-0", "seg-1", "seg-2", "seg-3", "seg-4", "seg-5")
	byCategory := offlinePartitions("i1", "i2", "i3")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)

	counts := map[types.InstanceID]int{}
	for _, instances := range target {
		for id := range instances {
			counts[id]++
		}
	}
	for _, id := range []types.InstanceID{"i1", "i2", "i3"} {
		assert.Equal(t, 2, counts[id])
	}
}

func TestRoundRobin_TotalOverSameSegmentSet(t *testing.T) {
	p := policy.NewRoundRobin()
	current := basicCurrent("seg-0", "seg-1", "seg-2")
	byCategory := offlinePartitions("i1", "i2")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, current.SortedSegmentIDs(), target.SortedSegmentIDs())
}

func TestRoundRobin_AssignsExactlyNumReplicas(t *testing.T) {
	p := policy.NewRoundRobin()
	current := basicCurrent("seg-0", "seg-1")
	byCategory := offlinePartitions("i1", "i2", "i3", "i4")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 3})
	require.NoError(t, err)
	for seg, instances := range target {
		assert.Lenf(t, instances, 3, "segment %s", seg)
	}
}

func TestRoundRobin_DeterministicGivenSameInputs(t *testing.T) {
	p := policy.NewRoundRobin()
	current := basicCurrent("seg-0", "seg-1", "seg-2", "seg-3")
	byCategory := offlinePartitions("i1", "i2", "i3")

	first, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 2})
	require.NoError(t, err)
	second, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 2})
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestRoundRobin_RejectsNonPositiveReplicaCount(t *testing.T) {
	p := policy.NewRoundRobin()
	current := basicCurrent("seg-0")

	_, err := p.Rebalance(current, offlinePartitions("i1"), nil, nil, types.PolicyConfig{NumReplicas: 0})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRoundRobin_IsNotStrictRealtime(t *testing.T) {
	assert.False(t, policy.NewRoundRobin().IsStrictRealtime())
}
