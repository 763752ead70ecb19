package planner

import (
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/segmentflow/rebalancer/types"
)

// PartitionIDOracle resolves a segment to the partition id strict-mode
// grouping keys on. It is pluggable because partition-id derivation is a
// naming-convention detail of the table, not something the planner
// should hardcode.
type PartitionIDOracle interface {
	PartitionID(segment types.SegmentID) (int, error)
}

// PartitionIDOracleFunc adapts a plain function to PartitionIDOracle.
type PartitionIDOracleFunc func(segment types.SegmentID) (int, error)

func (f PartitionIDOracleFunc) PartitionID(segment types.SegmentID) (int, error) {
	return f(segment)
}

// HashShardedCache wraps an oracle with a cache split across N shards,
// each independently locked, so a large table's worth of concurrent
// lookups within one step don't all serialize through a single mutex.
// Segments are routed to a shard by xxh3.HashString(segment) % N, the
// same hash the teacher's consistent-hash ring uses for partition
// placement, repurposed here for cache sharding rather than assignment.
type HashShardedCache struct {
	oracle PartitionIDOracle
	shards []cacheShard
}

type cacheShard struct {
	mu    sync.Mutex
	cache map[types.SegmentID]int
}

// NewHashShardedCache wraps oracle with shardCount independent cache
// shards. shardCount <= 0 defaults to 16.
func NewHashShardedCache(oracle PartitionIDOracle, shardCount int) *HashShardedCache {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]cacheShard, shardCount)
	for i := range shards {
		shards[i].cache = make(map[types.SegmentID]int)
	}

	return &HashShardedCache{oracle: oracle, shards: shards}
}

func (c *HashShardedCache) shardFor(segment types.SegmentID) *cacheShard {
	idx := xxh3.HashString(string(segment)) % uint64(len(c.shards))

	return &c.shards[idx]
}

// PartitionID returns the cached partition id for segment, resolving it
// from the wrapped oracle on a miss.
func (c *HashShardedCache) PartitionID(segment types.SegmentID) (int, error) {
	shard := c.shardFor(segment)

	shard.mu.Lock()
	if id, ok := shard.cache[segment]; ok {
		shard.mu.Unlock()
		return id, nil
	}
	shard.mu.Unlock()

	id, err := c.oracle.PartitionID(segment)
	if err != nil {
		return 0, err
	}

	shard.mu.Lock()
	shard.cache[segment] = id
	shard.mu.Unlock()

	return id, nil
}
