package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/segmentflow/rebalancer/internal/kvutil"
	"github.com/segmentflow/rebalancer/types"
)

// JetStreamGateway implements Gateway and InstancePartitionsStore over
// four NATS JetStream KeyValue buckets. The IdealState bucket's native
// per-key revision is used directly as the CAS token §4.1 requires:
// CASUpdateIdealState is a single jetstream.KeyValue.Update call.
type JetStreamGateway struct {
	idealState     jetstream.KeyValue
	externalView   jetstream.KeyValue
	instancePart   jetstream.KeyValue
	instanceConfig jetstream.KeyValue
	metrics        types.MetricsCollector
}

// JetStreamGatewayConfig names the four buckets the gateway uses.
type JetStreamGatewayConfig struct {
	IdealState     jetstream.KeyValue
	ExternalView   jetstream.KeyValue
	InstancePart   jetstream.KeyValue
	InstanceConfig jetstream.KeyValue
	Metrics        types.MetricsCollector
}

// NewJetStreamGateway wraps already-opened KV buckets. Use
// kvutil.EnsureKVBucketWithRetry to create or open each bucket before
// calling this constructor.
func NewJetStreamGateway(cfg JetStreamGatewayConfig) *JetStreamGateway {
	return &JetStreamGateway{
		idealState:     cfg.IdealState,
		externalView:   cfg.ExternalView,
		instancePart:   cfg.InstancePart,
		instanceConfig: cfg.InstanceConfig,
		metrics:        cfg.Metrics,
	}
}

var _ Gateway = (*JetStreamGateway)(nil)
var _ InstancePartitionsStore = (*JetStreamGateway)(nil)

func (g *JetStreamGateway) ReadIdealState(ctx context.Context, table string) (types.IdealStateDocument, error) {
	entry, err := g.idealState.Get(ctx, table)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.IdealStateDocument{}, fmt.Errorf("%w: table %q", types.ErrNotFound, table)
		}

		return types.IdealStateDocument{}, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	doc, err := decodeIdealState(entry.Value())
	if err != nil {
		return types.IdealStateDocument{}, fmt.Errorf("%w: decoding ideal state: %v", types.ErrTransient, err)
	}
	doc.Revision = entry.Revision()

	return doc, nil
}

func (g *JetStreamGateway) ReadExternalView(ctx context.Context, table string) (types.ExternalView, bool, error) {
	entry, err := g.externalView.Get(ctx, table)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	view, err := decodeExternalView(entry.Value())
	if err != nil {
		return nil, false, fmt.Errorf("%w: decoding external view: %v", types.ErrTransient, err)
	}

	return view, true, nil
}

func (g *JetStreamGateway) CASUpdateIdealState(ctx context.Context, table string, next types.PlacementMap, expectedRevision uint64) (uint64, error) {
	current, err := g.idealState.Get(ctx, table)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	numReplicas, numPartitions, enabled := 0, 0, true
	if err == nil {
		if doc, derr := decodeIdealState(current.Value()); derr == nil {
			numReplicas, numPartitions, enabled = doc.NumReplicas, doc.NumPartitions, doc.Enabled
		}
	}

	payload, err := encodeIdealState(types.IdealStateDocument{
		Placement:     next,
		NumReplicas:   numReplicas,
		NumPartitions: numPartitions,
		Enabled:       enabled,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: encoding ideal state: %v", types.ErrTransient, err)
	}

	rev, err := g.idealState.Update(ctx, table, payload, expectedRevision)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) || isWrongLastSequence(err) {
			actual := uint64(0)
			if current != nil {
				actual = current.Revision()
			}

			return 0, &types.VersionMismatchDetail{Table: table, Expected: expectedRevision, Actual: actual}
		}

		return 0, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	return rev, nil
}

// isWrongLastSequence detects the JetStream "wrong last sequence" error
// returned by Update on a revision mismatch, which jetstream.go does not
// expose as a typed sentinel.
func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

func (g *JetStreamGateway) ReadInstanceConfigs(ctx context.Context) ([]types.InstanceConfig, error) {
	keys, err := g.instanceConfig.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	out := make([]types.InstanceConfig, 0, len(keys))
	for _, key := range keys {
		entry, err := g.instanceConfig.Get(ctx, key)
		if err != nil {
			continue
		}
		out = append(out, types.InstanceConfig{ID: types.InstanceID(key), Enabled: true, Tags: splitTags(entry.Value())})
	}

	return out, nil
}

func splitTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	start := 0
	for i, b := range raw {
		if b == ',' {
			if i > start {
				tags = append(tags, string(raw[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(raw) {
		tags = append(tags, string(raw[start:]))
	}

	return tags
}

func instancePartitionsKey(table string, category types.InstancePartitionsCategory, tier string) string {
	if category == types.CategoryTier {
		return fmt.Sprintf("%s.TIER.%s", table, tier)
	}

	return fmt.Sprintf("%s.%s", table, category.String())
}

func (g *JetStreamGateway) ReadInstancePartitions(ctx context.Context, table string, category types.InstancePartitionsCategory, tier string) (types.InstancePartitions, bool, error) {
	entry, err := g.instancePart.Get(ctx, instancePartitionsKey(table, category, tier))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.InstancePartitions{}, false, nil
		}

		return types.InstancePartitions{}, false, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	ip, err := decodeInstancePartitions(entry.Value())
	if err != nil {
		return types.InstancePartitions{}, false, fmt.Errorf("%w: decoding instance partitions: %v", types.ErrTransient, err)
	}

	return ip, true, nil
}

func (g *JetStreamGateway) WriteInstancePartitions(ctx context.Context, table string, ip types.InstancePartitions) error {
	payload, err := encodeInstancePartitions(ip)
	if err != nil {
		return fmt.Errorf("%w: encoding instance partitions: %v", types.ErrTransient, err)
	}

	if _, err := g.instancePart.Put(ctx, instancePartitionsKey(table, ip.Category, ip.Tier), payload); err != nil {
		return fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	return nil
}

func (g *JetStreamGateway) DeleteInstancePartitions(ctx context.Context, table string, category types.InstancePartitionsCategory, tier string) error {
	if err := g.instancePart.Delete(ctx, instancePartitionsKey(table, category, tier)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("%w: %v", types.ErrTransient, err)
	}

	return nil
}

// EnsureBuckets creates (or opens) the four buckets a JetStreamGateway
// needs, grounded on kvutil.EnsureKVBucketWithRetry.
func EnsureBuckets(ctx context.Context, js jetstream.JetStream, namespace string) (JetStreamGatewayConfig, error) {
	is, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: namespace + "_IDEALSTATE"}, 3)
	if err != nil {
		return JetStreamGatewayConfig{}, err
	}
	ev, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: namespace + "_EXTERNALVIEW"}, 3)
	if err != nil {
		return JetStreamGatewayConfig{}, err
	}
	ip, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: namespace + "_INSTANCEPARTITIONS"}, 3)
	if err != nil {
		return JetStreamGatewayConfig{}, err
	}
	ic, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: namespace + "_INSTANCECONFIG"}, 3)
	if err != nil {
		return JetStreamGatewayConfig{}, err
	}

	return JetStreamGatewayConfig{IdealState: is, ExternalView: ev, InstancePart: ip, InstanceConfig: ic}, nil
}
