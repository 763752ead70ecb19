package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/segmentflow/rebalancer/internal/store"
	"github.com/segmentflow/rebalancer/internal/testutil"
	"github.com/segmentflow/rebalancer/types"
)

// gatewayUnderTest names the two Gateway implementations exercised by the
// shared contract checks below: the in-memory Fake and a JetStreamGateway
// backed by an embedded NATS server.
type gatewayUnderTest struct {
	name string
	new  func(t *testing.T) store.Gateway
}

func gatewaysUnderTest() []gatewayUnderTest {
	return []gatewayUnderTest{
		{
			name: "Fake",
			new: func(t *testing.T) store.Gateway {
				t.Helper()
				return store.NewFake()
			},
		},
		{
			name: "JetStream",
			new: func(t *testing.T) store.Gateway {
				t.Helper()
				return newJetStreamGateway(t)
			},
		},
	}
}

func newJetStreamGateway(t *testing.T) *store.JetStreamGateway {
	t.Helper()

	_, nc := testutil.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cfg, err := store.EnsureBuckets(context.Background(), js, "TESTSTORE")
	require.NoError(t, err)

	return store.NewJetStreamGateway(cfg)
}

func TestGateway_ReadIdealState_NotFound(t *testing.T) {
	for _, impl := range gatewaysUnderTest() {
		t.Run(impl.name, func(t *testing.T) {
			gw := impl.new(t)

			_, err := gw.ReadIdealState(context.Background(), "missingTable")
			require.Error(t, err)
			require.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}

func TestGateway_ReadExternalView_AbsentIsNotAnError(t *testing.T) {
	for _, impl := range gatewaysUnderTest() {
		t.Run(impl.name, func(t *testing.T) {
			gw := impl.new(t)

			view, present, err := gw.ReadExternalView(context.Background(), "noViewYet")
			require.NoError(t, err)
			require.False(t, present)
			require.Nil(t, view)
		})
	}
}

func TestGateway_CASUpdateIdealState_SucceedsOnMatchingRevision(t *testing.T) {
	for _, impl := range gatewaysUnderTest() {
		t.Run(impl.name, func(t *testing.T) {
			gw := impl.new(t)
			seedTable(t, gw, "tbl", basicPlacement())

			doc, err := gw.ReadIdealState(context.Background(), "tbl")
			require.NoError(t, err)

			next := doc.Placement.Clone()
			next["seg1"] = types.InstanceStateMap{"server2": types.Online}

			newRev, err := gw.CASUpdateIdealState(context.Background(), "tbl", next, doc.Revision)
			require.NoError(t, err)
			require.Greater(t, newRev, doc.Revision)

			after, err := gw.ReadIdealState(context.Background(), "tbl")
			require.NoError(t, err)
			require.Equal(t, newRev, after.Revision)
			require.True(t, next.Equal(after.Placement))
		})
	}
}

func TestGateway_CASUpdateIdealState_RejectsStaleRevision(t *testing.T) {
	for _, impl := range gatewaysUnderTest() {
		t.Run(impl.name, func(t *testing.T) {
			gw := impl.new(t)
			seedTable(t, gw, "tbl", basicPlacement())

			doc, err := gw.ReadIdealState(context.Background(), "tbl")
			require.NoError(t, err)

			// A concurrent writer lands first.
			_, err = gw.CASUpdateIdealState(context.Background(), "tbl", doc.Placement.Clone(), doc.Revision)
			require.NoError(t, err)

			// Our own write, still carrying the now-stale revision, must be
			// rejected with a VersionMismatchDetail.
			_, err = gw.CASUpdateIdealState(context.Background(), "tbl", doc.Placement.Clone(), doc.Revision)
			require.Error(t, err)
			require.ErrorIs(t, err, types.ErrVersionMismatch)

			var detail *types.VersionMismatchDetail
			require.True(t, errors.As(err, &detail))
			require.Equal(t, "tbl", detail.Table)
			require.Equal(t, doc.Revision, detail.Expected)
		})
	}
}

func TestGateway_InstancePartitions_RoundTrip(t *testing.T) {
	stores := []struct {
		name string
		new  func(t *testing.T) store.InstancePartitionsStore
	}{
		{name: "Fake", new: func(t *testing.T) store.InstancePartitionsStore { return store.NewFake() }},
		{name: "JetStream", new: func(t *testing.T) store.InstancePartitionsStore { return newJetStreamGateway(t) }},
	}

	for _, impl := range stores {
		t.Run(impl.name, func(t *testing.T) {
			ips := impl.new(t)
			ctx := context.Background()

			_, present, err := ips.ReadInstancePartitions(ctx, "tbl", types.CategoryConsuming, "")
			require.NoError(t, err)
			require.False(t, present)

			want := types.InstancePartitions{
				Category:      types.CategoryConsuming,
				ReplicaGroups: map[int][]types.InstanceID{0: {"server1", "server2"}},
			}
			require.NoError(t, ips.WriteInstancePartitions(ctx, "tbl", want))

			got, present, err := ips.ReadInstancePartitions(ctx, "tbl", types.CategoryConsuming, "")
			require.NoError(t, err)
			require.True(t, present)
			require.True(t, want.Equal(got))

			require.NoError(t, ips.DeleteInstancePartitions(ctx, "tbl", types.CategoryConsuming, ""))

			_, present, err = ips.ReadInstancePartitions(ctx, "tbl", types.CategoryConsuming, "")
			require.NoError(t, err)
			require.False(t, present)
		})
	}
}

func basicPlacement() types.PlacementMap {
	return types.PlacementMap{
		"seg1": types.InstanceStateMap{"server1": types.Online},
	}
}

func seedTable(t *testing.T, gw store.Gateway, table string, placement types.PlacementMap) {
	t.Helper()

	switch impl := gw.(type) {
	case *store.Fake:
		impl.SeedIdealState(table, types.IdealStateDocument{
			Placement:     placement,
			NumReplicas:   1,
			NumPartitions: len(placement),
			Enabled:       true,
		})
	case *store.JetStreamGateway:
		// expectedRevision 0 against a brand-new key is JetStream KV's
		// create semantics: the key has no prior revision to collide with.
		_, err := impl.CASUpdateIdealState(context.Background(), table, placement, 0)
		require.NoError(t, err)
	default:
		t.Fatalf("unsupported gateway type %T", gw)
	}
}
