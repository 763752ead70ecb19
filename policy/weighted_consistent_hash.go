package policy

import (
	"slices"
	"sort"
	"strings"

	"github.com/segmentflow/rebalancer/internal/hash"
	"github.com/segmentflow/rebalancer/internal/logger"
	"github.com/segmentflow/rebalancer/types"
)

const (
	wchDefaultVirtualNodes      = 150
	wchDefaultOverloadThreshold = 1.3
	wchDefaultExtremeThreshold  = 2.0
	wchDefaultWeight            = int64(1)

	wchMinOverloadThreshold = 1.15
	wchMinExtremeThreshold  = 1.5
)

// SegmentWeightFunc reports a segment's relative size (bytes, row count,
// or any other unit the caller's workload uses for balance). Segments the
// func reports zero or negative for fall back to the policy's default
// weight.
type SegmentWeightFunc func(types.SegmentID) int64

// WeightedConsistentHash is a reference types.AssignmentPolicy that
// layers load-aware placement on top of consistent hashing: most segments
// are assigned by a hash ring for cache/data-locality affinity, but
// segments reported as disproportionately heavy are spread round-robin
// across the candidate pool first, and any segment that would push an
// instance over a soft load cap is redirected to the lightest instance
// in that pool instead.
type WeightedConsistentHash struct {
	virtualNodes      int
	hashSeed          uint64
	overloadThreshold float64
	extremeThreshold  float64
	defaultWeight     int64
	weightFunc        SegmentWeightFunc
	logger            types.Logger
}

var _ types.AssignmentPolicy = (*WeightedConsistentHash)(nil)

// WeightedOption configures a WeightedConsistentHash policy.
type WeightedOption func(*WeightedConsistentHash)

type segmentEntry struct {
	segment types.SegmentID
	weight  int64
}

type wchThresholds struct {
	extremeCutoff   float64
	maxInstanceLoad float64
}

// WithWeightedVirtualNodes sets the number of virtual nodes per instance.
func WithWeightedVirtualNodes(n int) WeightedOption {
	return func(w *WeightedConsistentHash) { w.virtualNodes = n }
}

// WithWeightedHashSeed sets the base hash seed used to build the ring.
func WithWeightedHashSeed(seed uint64) WeightedOption {
	return func(w *WeightedConsistentHash) { w.hashSeed = seed }
}

// WithOverloadThreshold sets the soft load-variance cap, expressed as a
// multiplier of the pool's average per-instance weight.
func WithOverloadThreshold(threshold float64) WeightedOption {
	return func(w *WeightedConsistentHash) { w.overloadThreshold = threshold }
}

// WithExtremeThreshold sets the multiplier of average segment weight past
// which a segment is classified extreme and assigned round-robin instead
// of by hash.
func WithExtremeThreshold(threshold float64) WeightedOption {
	return func(w *WeightedConsistentHash) { w.extremeThreshold = threshold }
}

// WithDefaultWeight sets the weight applied to a segment the
// SegmentWeightFunc reports zero or negative for, or when no
// SegmentWeightFunc is configured at all.
func WithDefaultWeight(weight int64) WeightedOption {
	return func(w *WeightedConsistentHash) { w.defaultWeight = weight }
}

// WithSegmentWeightFunc sets the function used to look up a segment's
// relative weight. Without one, every segment uses the default weight and
// this policy degenerates to plain consistent hashing.
func WithSegmentWeightFunc(fn SegmentWeightFunc) WeightedOption {
	return func(w *WeightedConsistentHash) { w.weightFunc = fn }
}

// WithWeightedLogger sets the logger used for clamped-config warnings and
// soft-cap-overflow diagnostics.
func WithWeightedLogger(l types.Logger) WeightedOption {
	return func(w *WeightedConsistentHash) { w.logger = l }
}

// NewWeightedConsistentHash builds a WeightedConsistentHash policy.
func NewWeightedConsistentHash(opts ...WeightedOption) *WeightedConsistentHash {
	w := &WeightedConsistentHash{
		virtualNodes:      wchDefaultVirtualNodes,
		overloadThreshold: wchDefaultOverloadThreshold,
		extremeThreshold:  wchDefaultExtremeThreshold,
		defaultWeight:     wchDefaultWeight,
		logger:            logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.normalize()

	return w
}

// IsStrictRealtime reports false: load-aware placement doesn't change the
// driver's re-plan-on-IS-change rule.
func (w *WeightedConsistentHash) IsStrictRealtime() bool { return false }

// Rebalance computes the target placement the same way ConsistentHash
// resolves each segment's candidate pool, but builds one weighted
// assignment per pool instead of walking independent per-replica rings:
// replica slots within a segment are filled by re-running the same
// weighted pass with the already-chosen instances excluded.
func (w *WeightedConsistentHash) Rebalance(
	current types.PlacementMap,
	instancePartitionsByCategory map[types.InstancePartitionsCategory]types.InstancePartitions,
	sortedTiers []string,
	tierPartitions map[string]types.InstancePartitions,
	cfg types.PolicyConfig,
) (types.PlacementMap, error) {
	if cfg.NumReplicas <= 0 {
		return nil, errInvalidNumReplicas(cfg.NumReplicas)
	}

	pools := make(map[string][]types.SegmentID)
	poolInstances := make(map[string][]string)

	for _, segment := range current.SortedSegmentIDs() {
		pool, poolKey, err := resolvePool(segment, current[segment], instancePartitionsByCategory, sortedTiers, tierPartitions)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return nil, errNoCandidates(segment)
		}
		pools[poolKey] = append(pools[poolKey], segment)
		poolInstances[poolKey] = pool
	}

	target := make(types.PlacementMap, len(current))
	for poolKey, segments := range pools {
		assigned, err := w.assignPool(segments, poolInstances[poolKey], cfg.NumReplicas)
		if err != nil {
			return nil, err
		}
		for seg, instances := range assigned {
			target[seg] = instances
		}
	}

	return target, nil
}

// assignPool runs one weighted-consistent-hash pass per replica slot over
// a single candidate pool, excluding instances a segment already picked
// in an earlier slot so its replicas land on distinct instances.
func (w *WeightedConsistentHash) assignPool(segments []types.SegmentID, instances []string, numReplicas int) (map[types.SegmentID]types.InstanceStateMap, error) {
	sortedInstances := append([]string(nil), instances...)
	sort.Strings(sortedInstances)

	result := make(map[types.SegmentID]types.InstanceStateMap, len(segments))
	chosen := make(map[types.SegmentID]map[string]struct{}, len(segments))
	for _, seg := range segments {
		result[seg] = make(types.InstanceStateMap, numReplicas)
		chosen[seg] = make(map[string]struct{}, numReplicas)
	}

	n := min(numReplicas, len(sortedInstances))
	for slot := 0; slot < n; slot++ {
		assigned, err := w.assignSlot(segments, sortedInstances, chosen, slot)
		if err != nil {
			return nil, err
		}
		for seg, inst := range assigned {
			result[seg][types.InstanceID(inst)] = types.Online
			chosen[seg][inst] = struct{}{}
		}
	}

	return result, nil
}

// assignSlot assigns one replica slot across segments, excluding each
// segment's already-chosen instances from its own ring walk.
func (w *WeightedConsistentHash) assignSlot(
	segments []types.SegmentID,
	instances []string,
	chosen map[types.SegmentID]map[string]struct{},
	slot int,
) (map[types.SegmentID]string, error) {
	seed := w.hashSeed ^ (uint64(slot)+1)*0x9E3779B97F4A7C15 //nolint:gomnd // splitmix64 constant
	ring := hash.NewRing(instances, w.virtualNodes, seed)

	weights := make([]int64, len(segments))
	total := int64(0)
	allEqual := true
	for i, seg := range segments {
		weights[i] = w.weightOf(seg)
		total += weights[i]
		if i > 0 && weights[i] != weights[0] {
			allEqual = false
		}
	}

	load := make(map[string]int64, len(instances))
	for _, inst := range instances {
		load[inst] = 0
	}

	assigned := make(map[types.SegmentID]string, len(segments))
	if allEqual {
		for _, seg := range segments {
			inst := ring.GetNodeExcluding(string(seg), chosen[seg])
			if inst == "" {
				continue
			}
			assigned[seg] = inst
			load[inst] += weights[0]
		}

		return assigned, nil
	}

	thresholds := w.computeThresholds(total, len(segments), len(instances))
	extremes, normals := splitSegments(segments, weights, thresholds.extremeCutoff)

	w.assignExtremeSlot(extremes, instances, chosen, assigned, load)
	w.assignNormalSlot(normals, ring, instances, chosen, assigned, load, thresholds.maxInstanceLoad)

	return assigned, nil
}

func (w *WeightedConsistentHash) assignExtremeSlot(
	extremes []segmentEntry,
	instances []string,
	chosen map[types.SegmentID]map[string]struct{},
	assigned map[types.SegmentID]string,
	load map[string]int64,
) {
	if len(extremes) == 0 {
		return
	}

	slices.SortFunc(extremes, func(a, b segmentEntry) int {
		if a.weight != b.weight {
			if a.weight > b.weight {
				return -1
			}

			return 1
		}

		return strings.Compare(string(a.segment), string(b.segment))
	})

	for idx, entry := range extremes {
		inst := instances[idx%len(instances)]
		for excluded := range chosen[entry.segment] {
			if excluded == inst {
				inst = nextAvailable(instances, idx, chosen[entry.segment])

				break
			}
		}
		if inst == "" {
			continue
		}
		assigned[entry.segment] = inst
		load[inst] += entry.weight
	}
}

func (w *WeightedConsistentHash) assignNormalSlot(
	normals []segmentEntry,
	ring *hash.Ring,
	instances []string,
	chosen map[types.SegmentID]map[string]struct{},
	assigned map[types.SegmentID]string,
	load map[string]int64,
	maxInstanceLoad float64,
) {
	overflow := 0
	for _, entry := range normals {
		inst := ring.GetNodeExcluding(string(entry.segment), chosen[entry.segment])
		if inst == "" {
			continue
		}

		if maxInstanceLoad > 0 && float64(load[inst]+entry.weight) > maxInstanceLoad {
			lightest := w.findLightest(instances, chosen[entry.segment], load)
			if lightest != "" {
				inst = lightest
				if float64(load[inst]+entry.weight) > maxInstanceLoad {
					overflow++
				}
			}
		}

		assigned[entry.segment] = inst
		load[inst] += entry.weight
	}

	if overflow > 0 {
		w.logger.Debug("weighted consistent hash exceeded soft cap", "overflow_count", overflow, "max_instance_load", maxInstanceLoad)
	}
}

func (w *WeightedConsistentHash) findLightest(instances []string, exclude map[string]struct{}, load map[string]int64) string {
	lightest := ""
	var minLoad int64
	for _, inst := range instances {
		if _, excluded := exclude[inst]; excluded {
			continue
		}
		if lightest == "" || load[inst] < minLoad || (load[inst] == minLoad && inst < lightest) {
			lightest = inst
			minLoad = load[inst]
		}
	}

	return lightest
}

func nextAvailable(instances []string, start int, exclude map[string]struct{}) string {
	for i := 0; i < len(instances); i++ {
		inst := instances[(start+i)%len(instances)]
		if _, excluded := exclude[inst]; !excluded {
			return inst
		}
	}

	return ""
}

func (w *WeightedConsistentHash) computeThresholds(total int64, segmentCount, instanceCount int) wchThresholds {
	avgSegmentWeight := float64(0)
	if segmentCount > 0 {
		avgSegmentWeight = float64(total) / float64(segmentCount)
	}
	avgInstanceWeight := float64(0)
	if instanceCount > 0 {
		avgInstanceWeight = float64(total) / float64(instanceCount)
	}

	return wchThresholds{
		extremeCutoff:   avgSegmentWeight * w.extremeThreshold,
		maxInstanceLoad: avgInstanceWeight * w.overloadThreshold,
	}
}

func splitSegments(segments []types.SegmentID, weights []int64, extremeCutoff float64) (extremes, normals []segmentEntry) {
	extremes = make([]segmentEntry, 0)
	normals = make([]segmentEntry, 0, len(segments))
	for i, seg := range segments {
		entry := segmentEntry{segment: seg, weight: weights[i]}
		if extremeCutoff > 0 && float64(entry.weight) > extremeCutoff {
			extremes = append(extremes, entry)

			continue
		}
		normals = append(normals, entry)
	}

	return extremes, normals
}

func (w *WeightedConsistentHash) weightOf(seg types.SegmentID) int64 {
	if w.weightFunc == nil {
		return w.defaultWeight
	}
	if wt := w.weightFunc(seg); wt > 0 {
		return wt
	}

	return w.defaultWeight
}

func (w *WeightedConsistentHash) normalize() {
	if w.logger == nil {
		w.logger = logger.NewNop()
	}
	if w.virtualNodes < 1 {
		w.logger.Warn("virtual nodes must be positive; clamping to 1", "provided", w.virtualNodes, "using", 1)
		w.virtualNodes = 1
	}
	if w.overloadThreshold < wchMinOverloadThreshold {
		w.logger.Warn("overload threshold too low; clamping to minimum", "provided", w.overloadThreshold, "using", wchMinOverloadThreshold)
		w.overloadThreshold = wchMinOverloadThreshold
	}
	if w.extremeThreshold < wchMinExtremeThreshold {
		w.logger.Warn("extreme threshold too low; clamping to minimum", "provided", w.extremeThreshold, "using", wchMinExtremeThreshold)
		w.extremeThreshold = wchMinExtremeThreshold
	}
	if w.defaultWeight < 1 {
		w.logger.Warn("default weight must be positive; clamping to 1", "provided", w.defaultWeight, "using", 1)
		w.defaultWeight = 1
	}
}
