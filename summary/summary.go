package summary

import (
	"context"
	"sort"
	"time"

	"github.com/segmentflow/rebalancer/types"
)

// ServerSummary is one server's movement between current and target.
type ServerSummary struct {
	Added        int
	Removed      int
	Unchanged    int
	NewSegments  int
	TagBreakdown map[string]int
}

// SegmentMovementSize pairs a segment that moves (gains or loses a
// replica) with its estimated size. Bytes is unknown when SizeOracle
// errored (or reported a negative size) for that segment; without a
// SizeOracle no SegmentMovementSize entries are produced at all.
type SegmentMovementSize struct {
	Segment types.SegmentID
	Bytes   int64
}

// DataMovementEstimate summarizes SizeOracle lookups across every segment
// that moves. TotalBytes is unknown when no SizeOracle was supplied;
// otherwise it is the sum of the segments that did resolve, and
// UnknownCount records how many did not.
type DataMovementEstimate struct {
	PerSegment   []SegmentMovementSize
	TotalBytes   int64
	UnknownCount int
}

// ConsumingSegmentLag is one consuming segment's age and offset lag.
// AgeSeconds is unknown (-1) when SegmentMetadataOracle is absent or
// errors for that segment; OffsetLag is unknown when either oracle is
// absent or errors for that segment.
type ConsumingSegmentLag struct {
	Segment    types.SegmentID
	AgeSeconds int64
	OffsetLag  int64
}

// Result is the full advisory diff produced by Summarize.
type Result struct {
	Servers           map[types.InstanceID]ServerSummary
	ReplicationBefore float64
	ReplicationAfter  float64
	DataMovement      DataMovementEstimate
	ConsumingLag      []ConsumingSegmentLag
}

// Options configures optional, best-effort enrichment of a Result.
// InstanceConfigs is used for the per-server tag breakdown; the three
// oracles are used for data movement and consuming-segment lag. All are
// optional: omitting any of them degrades only the field it feeds, never
// the rest of the Result, and Summarize never returns an error.
type Options struct {
	InstanceConfigs       map[types.InstanceID]types.InstanceConfig
	SizeOracle            SizeOracle
	SegmentMetadataOracle SegmentMetadataOracle
	StreamMetadataOracle  StreamMetadataOracle
	StreamOffsetTimeout   time.Duration
	TopN                  int
}

// Summarize computes the advisory diff between current and target for
// table (§4.9). It is read-only and safe to call against a dry-run plan
// before anything is written back to the placement store.
func Summarize(ctx context.Context, table string, current, target types.PlacementMap, opts Options) Result {
	currentServers, currentSegments := invert(current)
	targetServers, _ := invert(target)

	servers := make(map[types.InstanceID]ServerSummary)
	for server := range union(currentServers, targetServers) {
		servers[server] = diffServer(server, currentServers[server], targetServers[server], currentSegments, opts.InstanceConfigs)
	}

	movedSegments := movedSegmentSet(currentServers, targetServers)

	return Result{
		Servers:           servers,
		ReplicationBefore: averageReplicas(current),
		ReplicationAfter:  averageReplicas(target),
		DataMovement:      estimateDataMovement(ctx, movedSegments, opts.SizeOracle),
		ConsumingLag:      consumingLag(ctx, table, current, target, opts),
	}
}

func diffServer(
	server types.InstanceID,
	currentSet, targetSet map[types.SegmentID]struct{},
	currentSegments map[types.SegmentID]struct{},
	instanceConfigs map[types.InstanceID]types.InstanceConfig,
) ServerSummary {
	s := ServerSummary{}

	for seg := range targetSet {
		if _, ok := currentSet[seg]; ok {
			s.Unchanged++
		} else {
			s.Added++
		}
		if _, existed := currentSegments[seg]; !existed {
			s.NewSegments++
		}
	}
	for seg := range currentSet {
		if _, ok := targetSet[seg]; !ok {
			s.Removed++
		}
	}

	if cfg, ok := instanceConfigs[server]; ok && len(cfg.Tags) > 0 {
		s.TagBreakdown = make(map[string]int, len(cfg.Tags))
		for _, tag := range cfg.Tags {
			s.TagBreakdown[tag] = len(targetSet)
		}
	}

	return s
}

// invert flips a PlacementMap into a per-server view plus the set of
// segment ids it covers.
func invert(p types.PlacementMap) (map[types.InstanceID]map[types.SegmentID]struct{}, map[types.SegmentID]struct{}) {
	servers := make(map[types.InstanceID]map[types.SegmentID]struct{})
	segments := make(map[types.SegmentID]struct{}, len(p))

	for seg, states := range p {
		segments[seg] = struct{}{}
		for instance := range states {
			if servers[instance] == nil {
				servers[instance] = make(map[types.SegmentID]struct{})
			}
			servers[instance][seg] = struct{}{}
		}
	}

	return servers, segments
}

func union(a, b map[types.InstanceID]map[types.SegmentID]struct{}) map[types.InstanceID]struct{} {
	out := make(map[types.InstanceID]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}

	return out
}

func averageReplicas(p types.PlacementMap) float64 {
	if len(p) == 0 {
		return 0
	}

	total := 0
	for _, states := range p {
		total += len(states)
	}

	return float64(total) / float64(len(p))
}

// movedSegmentSet returns every segment whose server set differs between
// current and target, regardless of how many servers it moved across.
func movedSegmentSet(currentServers, targetServers map[types.InstanceID]map[types.SegmentID]struct{}) []types.SegmentID {
	changed := make(map[types.SegmentID]struct{})

	mark := func(servers map[types.InstanceID]map[types.SegmentID]struct{}, other map[types.InstanceID]map[types.SegmentID]struct{}) {
		for server, segs := range servers {
			otherSegs := other[server]
			for seg := range segs {
				if _, ok := otherSegs[seg]; !ok {
					changed[seg] = struct{}{}
				}
			}
		}
	}
	mark(currentServers, targetServers)
	mark(targetServers, currentServers)

	out := make([]types.SegmentID, 0, len(changed))
	for seg := range changed {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func estimateDataMovement(ctx context.Context, moved []types.SegmentID, oracle SizeOracle) DataMovementEstimate {
	if oracle == nil {
		return DataMovementEstimate{TotalBytes: unknown, UnknownCount: len(moved)}
	}

	est := DataMovementEstimate{PerSegment: make([]SegmentMovementSize, 0, len(moved))}
	for _, seg := range moved {
		size, err := oracle.SegmentSizeBytes(ctx, seg)
		if err != nil || size < 0 {
			est.PerSegment = append(est.PerSegment, SegmentMovementSize{Segment: seg, Bytes: unknown})
			est.UnknownCount++

			continue
		}
		est.PerSegment = append(est.PerSegment, SegmentMovementSize{Segment: seg, Bytes: size})
		est.TotalBytes += size
	}

	return est
}

func consumingLag(ctx context.Context, table string, current, target types.PlacementMap, opts Options) []ConsumingSegmentLag {
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	segments := consumingSegmentSet(current, target)
	out := make([]ConsumingSegmentLag, 0, len(segments))
	for _, seg := range segments {
		out = append(out, segmentLag(ctx, table, seg, opts))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OffsetLag != out[j].OffsetLag {
			return out[i].OffsetLag > out[j].OffsetLag
		}

		return out[i].AgeSeconds > out[j].AgeSeconds
	})

	if len(out) > topN {
		out = out[:topN]
	}

	return out
}

func consumingSegmentSet(current, target types.PlacementMap) []types.SegmentID {
	seen := make(map[types.SegmentID]struct{})
	collect := func(p types.PlacementMap) {
		for seg, states := range p {
			for _, state := range states {
				if state == types.Consuming {
					seen[seg] = struct{}{}

					break
				}
			}
		}
	}
	collect(current)
	collect(target)

	out := make([]types.SegmentID, 0, len(seen))
	for seg := range seen {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func segmentLag(ctx context.Context, table string, seg types.SegmentID, opts Options) ConsumingSegmentLag {
	result := ConsumingSegmentLag{Segment: seg, AgeSeconds: unknown, OffsetLag: unknown}

	if opts.SegmentMetadataOracle == nil {
		return result
	}

	meta, err := opts.SegmentMetadataOracle.GetSegmentMetadata(ctx, seg)
	if err != nil {
		return result
	}

	result.AgeSeconds = int64(time.Since(meta.CreationTime).Seconds())

	if opts.StreamMetadataOracle == nil {
		return result
	}

	largest, err := opts.StreamMetadataOracle.FetchLargestOffset(ctx, table, meta.PartitionID, opts.StreamOffsetTimeout)
	if err != nil {
		return result
	}

	lag := largest - meta.StartOffset
	if lag < 0 {
		lag = 0
	}
	result.OffsetLag = lag

	return result
}
