package policy_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer/policy"
	"github.com/segmentflow/rebalancer/types"
)

func TestWeightedConsistentHash_EqualWeightsAssignsExactlyNumReplicas(t *testing.T) {
	p := policy.NewWeightedConsistentHash(policy.WithWeightedHashSeed(42))
	current := basicCurrent("seg-0", "seg-1", "seg-2", "seg-3")
	byCategory := offlinePartitions("i1", "i2", "i3")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 2})
	require.NoError(t, err)
	for seg, instances := range target {
		assert.Lenf(t, instances, 2, "segment %s", seg)
	}
}

func TestWeightedConsistentHash_TotalOverSameSegmentSet(t *testing.T) {
	p := policy.NewWeightedConsistentHash()
	current := basicCurrent("seg-0", "seg-1", "seg-2")
	byCategory := offlinePartitions("i1", "i2")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, current.SortedSegmentIDs(), target.SortedSegmentIDs())
}

func TestWeightedConsistentHash_DeterministicGivenSameInputs(t *testing.T) {
	weights := map[types.SegmentID]int64{"seg-0": 10, "seg-1": 500, "seg-2": 20, "seg-3": 15}
	weightFn := func(seg types.SegmentID) int64 { return weights[seg] }

	p := policy.NewWeightedConsistentHash(
		policy.WithWeightedHashSeed(7),
		policy.WithSegmentWeightFunc(weightFn),
	)
	current := basicCurrent("seg-0", "seg-1", "seg-2", "seg-3")
	byCategory := offlinePartitions("i1", "i2", "i3")

	first, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)
	second, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestWeightedConsistentHash_SpreadsExtremeSegmentsAcrossInstances(t *testing.T) {
	segments := make([]types.SegmentID, 0, 20)
	weights := make(map[types.SegmentID]int64, 20)
	for i := 0; i < 20; i++ {
		seg := types.SegmentID(fmt.Sprintf("seg-%d", i))
		segments = append(segments, seg)
		weights[seg] = 10
	}
	// Three segments are an order of magnitude heavier than the rest.
	weights["seg-0"] = 1000
	weights["seg-1"] = 1000
	weights["seg-2"] = 1000

	p := policy.NewWeightedConsistentHash(
		policy.WithWeightedHashSeed(3),
		policy.WithSegmentWeightFunc(func(seg types.SegmentID) int64 { return weights[seg] }),
	)
	current := basicCurrent(segments...)
	byCategory := offlinePartitions("i1", "i2", "i3")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)

	extremeInstances := map[types.InstanceID]struct{}{}
	for _, seg := range []types.SegmentID{"seg-0", "seg-1", "seg-2"} {
		for id := range target[seg] {
			extremeInstances[id] = struct{}{}
		}
	}
	assert.Len(t, extremeInstances, 3, "each heavy segment should land on a distinct instance")
}

func TestWeightedConsistentHash_RejectsNonPositiveReplicaCount(t *testing.T) {
	p := policy.NewWeightedConsistentHash()
	current := basicCurrent("seg-0")

	_, err := p.Rebalance(current, offlinePartitions("i1"), nil, nil, types.PolicyConfig{NumReplicas: 0})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestWeightedConsistentHash_ClampsInvalidThresholds(t *testing.T) {
	p := policy.NewWeightedConsistentHash(
		policy.WithOverloadThreshold(0.1),
		policy.WithExtremeThreshold(0.1),
		policy.WithWeightedVirtualNodes(0),
		policy.WithDefaultWeight(-5),
	)

	current := basicCurrent("seg-0", "seg-1")
	byCategory := offlinePartitions("i1", "i2")

	target, err := p.Rebalance(current, byCategory, nil, nil, types.PolicyConfig{NumReplicas: 1})
	require.NoError(t, err)
	assert.Len(t, target, 2)
}

func TestWeightedConsistentHash_IsNotStrictRealtime(t *testing.T) {
	assert.False(t, policy.NewWeightedConsistentHash().IsStrictRealtime())
}
