package forcecommit_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer/forcecommit"
	"github.com/segmentflow/rebalancer/internal/testutil"
	"github.com/segmentflow/rebalancer/types"
)

type fcRequest struct {
	Table     string   `json:"table"`
	Segments  []string `json:"segments"`
	BatchSize int      `json:"batchSize"`
}

type fcReply struct {
	Committed []string `json:"committed"`
}

type ytbcRequest struct {
	Table    string   `json:"table"`
	Segments []string `json:"segments"`
}

type ytbcReply struct {
	Remaining []string `json:"remaining"`
}

// startResponder subscribes a fake server under the given subject prefix:
// it accepts every requested segment as committed and reports nothing
// left outstanding, mirroring a realtime manager that settles instantly.
func startResponder(t *testing.T, nc *nats.Conn, prefix string) {
	t.Helper()

	subFC, err := nc.Subscribe(prefix+".forceCommit", func(msg *nats.Msg) {
		var req fcRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("responder: decode force commit request: %v", err)

			return
		}

		reply, err := json.Marshal(fcReply{Committed: req.Segments})
		if err != nil {
			t.Errorf("responder: encode force commit reply: %v", err)

			return
		}
		if err := msg.Respond(reply); err != nil {
			t.Errorf("responder: respond to force commit: %v", err)
		}
	})
	require.NoError(t, err)

	subYTBC, err := nc.Subscribe(prefix+".segmentsYetToBeCommitted", func(msg *nats.Msg) {
		var req ytbcRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("responder: decode status request: %v", err)

			return
		}

		reply, err := json.Marshal(ytbcReply{Remaining: nil})
		if err != nil {
			t.Errorf("responder: encode status reply: %v", err)

			return
		}
		if err := msg.Respond(reply); err != nil {
			t.Errorf("responder: respond to status request: %v", err)
		}
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = subFC.Unsubscribe()
		_ = subYTBC.Unsubscribe()
	})
}

func TestNATSRealtimeManager_ForceCommitRoundTrips(t *testing.T) {
	_, nc := testutil.StartEmbeddedNATS(t)
	startResponder(t, nc, "rebalancer.test")

	mgr := forcecommit.NewNATSRealtimeManager(nc, "rebalancer.test")

	committed, err := mgr.ForceCommit(context.Background(), "tbl", []types.SegmentID{"seg-0", "seg-1"}, types.ForceCommitBatchConfig{BatchSize: 2})
	require.NoError(t, err)
	require.ElementsMatch(t, []types.SegmentID{"seg-0", "seg-1"}, committed)
}

func TestNATSRealtimeManager_GetSegmentsYetToBeCommittedRoundTrips(t *testing.T) {
	_, nc := testutil.StartEmbeddedNATS(t)
	startResponder(t, nc, "rebalancer.test")

	mgr := forcecommit.NewNATSRealtimeManager(nc, "rebalancer.test")

	remaining, err := mgr.GetSegmentsYetToBeCommitted(context.Background(), "tbl", []types.SegmentID{"seg-0"})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestNATSRealtimeManager_CoordinatorEndToEnd(t *testing.T) {
	_, nc := testutil.StartEmbeddedNATS(t)
	startResponder(t, nc, "rebalancer.test")

	mgr := forcecommit.NewNATSRealtimeManager(nc, "rebalancer.test")
	coord := forcecommit.NewCoordinator(mgr, nil, nil)

	committed, err := coord.Run(context.Background(), "tbl", []types.SegmentID{"seg-0", "seg-1"}, nil, nil,
		types.ForceCommitBatchConfig{BatchSize: 2, StatusCheckInterval: 5, StatusCheckTimeout: 1000})
	require.NoError(t, err)
	require.ElementsMatch(t, []types.SegmentID{"seg-0", "seg-1"}, committed)
}
