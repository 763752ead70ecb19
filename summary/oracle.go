package summary

import (
	"context"
	"time"

	"github.com/segmentflow/rebalancer/types"
)

// SegmentMetadata is the subset of a consuming segment's ZK metadata (§6
// "Segment ZK metadata oracle") the lag calculation needs.
type SegmentMetadata struct {
	CreationTime time.Time
	StartOffset  int64
	PartitionID  int
}

// SegmentMetadataOracle resolves a consuming segment's creation time,
// start offset, and partition id.
type SegmentMetadataOracle interface {
	GetSegmentMetadata(ctx context.Context, segment types.SegmentID) (SegmentMetadata, error)
}

// SegmentMetadataOracleFunc adapts a plain function to SegmentMetadataOracle.
type SegmentMetadataOracleFunc func(ctx context.Context, segment types.SegmentID) (SegmentMetadata, error)

func (f SegmentMetadataOracleFunc) GetSegmentMetadata(ctx context.Context, segment types.SegmentID) (SegmentMetadata, error) {
	return f(ctx, segment)
}

// StreamMetadataOracle resolves the largest offset currently available for
// a table partition (§6 "Stream metadata oracle"), used to compute a
// consuming segment's offset lag against its start offset.
type StreamMetadataOracle interface {
	FetchLargestOffset(ctx context.Context, table string, partitionID int, timeout time.Duration) (int64, error)
}

// StreamMetadataOracleFunc adapts a plain function to StreamMetadataOracle.
type StreamMetadataOracleFunc func(ctx context.Context, table string, partitionID int, timeout time.Duration) (int64, error)

func (f StreamMetadataOracleFunc) FetchLargestOffset(ctx context.Context, table string, partitionID int, timeout time.Duration) (int64, error) {
	return f(ctx, table, partitionID, timeout)
}

// SizeOracle resolves a segment's on-disk size in bytes, used to estimate
// the data movement a rebalance would cause. It has no dedicated entry in
// the external interfaces list; any component that can answer "how big is
// this segment" (a segment metadata service, a storage listing) can
// implement it.
type SizeOracle interface {
	SegmentSizeBytes(ctx context.Context, segment types.SegmentID) (int64, error)
}

// SizeOracleFunc adapts a plain function to SizeOracle.
type SizeOracleFunc func(ctx context.Context, segment types.SegmentID) (int64, error)

func (f SizeOracleFunc) SegmentSizeBytes(ctx context.Context, segment types.SegmentID) (int64, error) {
	return f(ctx, segment)
}

// unknown is the sentinel returned in place of any oracle-sourced value
// once that oracle is absent or errors.
const unknown int64 = -1
