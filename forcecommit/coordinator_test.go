package forcecommit_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer/forcecommit"
	"github.com/segmentflow/rebalancer/types"
)

type fakeRealtimeManager struct {
	mu sync.Mutex

	forceCommitReturn []types.SegmentID
	forceCommitErr    error

	// remainingPerCall pops one entry per GetSegmentsYetToBeCommitted
	// call, simulating a segment set that drains over a few polls.
	remainingPerCall [][]types.SegmentID
	remainingErr     error
}

func (f *fakeRealtimeManager) ForceCommit(_ context.Context, _ string, _ []types.SegmentID, _ types.ForceCommitBatchConfig) ([]types.SegmentID, error) {
	if f.forceCommitErr != nil {
		return nil, f.forceCommitErr
	}

	return f.forceCommitReturn, nil
}

func (f *fakeRealtimeManager) GetSegmentsYetToBeCommitted(_ context.Context, _ string, _ []types.SegmentID) ([]types.SegmentID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.remainingErr != nil {
		return nil, f.remainingErr
	}
	if len(f.remainingPerCall) == 0 {
		return nil, nil
	}
	next := f.remainingPerCall[0]
	f.remainingPerCall = f.remainingPerCall[1:]

	return next, nil
}

func TestCoordinator_Run_SucceedsImmediatelyWhenNothingRemains(t *testing.T) {
	mgr := &fakeRealtimeManager{
		forceCommitReturn: []types.SegmentID{"seg-0", "seg-1"},
		remainingPerCall:  [][]types.SegmentID{{}},
	}
	c := forcecommit.NewCoordinator(mgr, nil, nil)

	committed, err := c.Run(context.Background(), "tbl", []types.SegmentID{"seg-0", "seg-1"}, nil, nil,
		types.ForceCommitBatchConfig{BatchSize: 10, StatusCheckInterval: 1, StatusCheckTimeout: 1000})

	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SegmentID{"seg-0", "seg-1"}, committed)
}

func TestCoordinator_Run_PollsUntilDrained(t *testing.T) {
	mgr := &fakeRealtimeManager{
		forceCommitReturn: []types.SegmentID{"seg-0"},
		remainingPerCall: [][]types.SegmentID{
			{"seg-0"},
			{"seg-0"},
			{},
		},
	}
	c := forcecommit.NewCoordinator(mgr, nil, nil)

	committed, err := c.Run(context.Background(), "tbl", []types.SegmentID{"seg-0"}, nil, nil,
		types.ForceCommitBatchConfig{BatchSize: 1, StatusCheckInterval: 1, StatusCheckTimeout: 1000})

	require.NoError(t, err)
	assert.Equal(t, []types.SegmentID{"seg-0"}, committed)
}

func TestCoordinator_Run_TimesOutWhenNeverDrained(t *testing.T) {
	c := forcecommit.NewCoordinator(alwaysOutstanding{}, nil, nil)

	_, err := c.Run(context.Background(), "tbl", []types.SegmentID{"seg-0"}, nil, nil,
		types.ForceCommitBatchConfig{BatchSize: 1, StatusCheckInterval: 1, StatusCheckTimeout: 5})

	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrForceCommitFailed)
}

type alwaysOutstanding struct{}

func (alwaysOutstanding) ForceCommit(_ context.Context, _ string, segments []types.SegmentID, _ types.ForceCommitBatchConfig) ([]types.SegmentID, error) {
	return segments, nil
}

func (alwaysOutstanding) GetSegmentsYetToBeCommitted(_ context.Context, _ string, set []types.SegmentID) ([]types.SegmentID, error) {
	return set, nil
}

func TestCoordinator_Run_PropagatesForceCommitError(t *testing.T) {
	mgr := &fakeRealtimeManager{forceCommitErr: errors.New("manager unavailable")}
	c := forcecommit.NewCoordinator(mgr, nil, nil)

	_, err := c.Run(context.Background(), "tbl", []types.SegmentID{"seg-0"}, nil, nil,
		types.ForceCommitBatchConfig{StatusCheckInterval: 1, StatusCheckTimeout: 10})

	require.ErrorIs(t, err, types.ErrForceCommitFailed)
}

func TestCoordinator_Run_EmptySegmentSetNeedsNoPolling(t *testing.T) {
	mgr := &fakeRealtimeManager{forceCommitReturn: nil}
	c := forcecommit.NewCoordinator(mgr, nil, nil)

	committed, err := c.Run(context.Background(), "tbl", nil, nil, nil, types.ForceCommitBatchConfig{StatusCheckInterval: 1, StatusCheckTimeout: 10})
	require.NoError(t, err)
	assert.Empty(t, committed)
}
