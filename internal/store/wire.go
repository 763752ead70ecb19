package store

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/segmentflow/rebalancer/types"
)

// wireIdealState is the JSON representation stored in the ideal-state KV
// bucket. types.PlacementMap's InstanceStateMap values are encoded via
// SegmentState.String() so the document is human-readable in `nats kv get`.
type wireIdealState struct {
	Placement     map[string]map[string]string `json:"placement"`
	NumReplicas   int                           `json:"numReplicas"`
	NumPartitions int                           `json:"numPartitions"`
	Enabled       bool                          `json:"enabled"`
}

func stateFromString(s string) types.SegmentState {
	switch s {
	case "ONLINE":
		return types.Online
	case "CONSUMING":
		return types.Consuming
	case "ERROR":
		return types.Error
	case "DROPPED":
		return types.Dropped
	default:
		return types.Offline
	}
}

func encodeIdealState(doc types.IdealStateDocument) ([]byte, error) {
	w := wireIdealState{
		Placement:     make(map[string]map[string]string, len(doc.Placement)),
		NumReplicas:   doc.NumReplicas,
		NumPartitions: doc.NumPartitions,
		Enabled:       doc.Enabled,
	}
	for seg, instances := range doc.Placement {
		m := make(map[string]string, len(instances))
		for inst, st := range instances {
			m[string(inst)] = st.String()
		}
		w.Placement[string(seg)] = m
	}

	return json.Marshal(w)
}

func decodeIdealState(data []byte) (types.IdealStateDocument, error) {
	var w wireIdealState
	if err := json.Unmarshal(data, &w); err != nil {
		return types.IdealStateDocument{}, err
	}

	placement := make(types.PlacementMap, len(w.Placement))
	for seg, instances := range w.Placement {
		m := make(types.InstanceStateMap, len(instances))
		for inst, st := range instances {
			m[types.InstanceID(inst)] = stateFromString(st)
		}
		placement[types.SegmentID(seg)] = m
	}

	return types.IdealStateDocument{
		Placement:     placement,
		NumReplicas:   w.NumReplicas,
		NumPartitions: w.NumPartitions,
		Enabled:       w.Enabled,
	}, nil
}

func encodePlacementMap(p types.PlacementMap) map[string]map[string]string {
	w := make(map[string]map[string]string, len(p))
	for seg, instances := range p {
		m := make(map[string]string, len(instances))
		for inst, st := range instances {
			m[string(inst)] = st.String()
		}
		w[string(seg)] = m
	}

	return w
}

func decodeExternalView(data []byte) (types.ExternalView, error) {
	var w map[string]map[string]string
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	view := make(types.ExternalView, len(w))
	for seg, instances := range w {
		m := make(types.InstanceStateMap, len(instances))
		for inst, st := range instances {
			m[types.InstanceID(inst)] = stateFromString(st)
		}
		view[types.SegmentID(seg)] = m
	}

	return view, nil
}

// wireInstancePartitions is the JSON representation stored per category
// (and, for tiers, per tier name).
type wireInstancePartitions struct {
	Category      string             `json:"category"`
	Tier          string             `json:"tier,omitempty"`
	ReplicaGroups map[string][]string `json:"replicaGroups"`
}

func encodeInstancePartitions(ip types.InstancePartitions) ([]byte, error) {
	w := wireInstancePartitions{
		Category:      ip.Category.String(),
		Tier:          ip.Tier,
		ReplicaGroups: make(map[string][]string, len(ip.ReplicaGroups)),
	}
	parts := ip.PartitionIDs()
	sort.Ints(parts)
	for _, p := range parts {
		instances := ip.ReplicaGroups[p]
		list := make([]string, len(instances))
		for i, id := range instances {
			list[i] = string(id)
		}
		w.ReplicaGroups[strconv.Itoa(p)] = list
	}

	return json.Marshal(w)
}

func decodeInstancePartitions(data []byte) (types.InstancePartitions, error) {
	var w wireInstancePartitions
	if err := json.Unmarshal(data, &w); err != nil {
		return types.InstancePartitions{}, err
	}

	ip := types.InstancePartitions{
		Tier:          w.Tier,
		ReplicaGroups: make(map[int][]types.InstanceID, len(w.ReplicaGroups)),
	}
	switch w.Category {
	case "CONSUMING":
		ip.Category = types.CategoryConsuming
	case "COMPLETED":
		ip.Category = types.CategoryCompleted
	case "TIER":
		ip.Category = types.CategoryTier
	default:
		ip.Category = types.CategoryOffline
	}
	for partStr, list := range w.ReplicaGroups {
		p, err := strconv.Atoi(partStr)
		if err != nil {
			return types.InstancePartitions{}, err
		}
		instances := make([]types.InstanceID, len(list))
		for i, id := range list {
			instances[i] = types.InstanceID(id)
		}
		ip.ReplicaGroups[p] = instances
	}

	return ip, nil
}
