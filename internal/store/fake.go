package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentflow/rebalancer/types"
)

// Fake is an in-memory Gateway and InstancePartitionsStore, reproducing
// the same CAS semantics as JetStreamGateway without a NATS server. It is
// the store the driver's unit tests (§8 scenarios S1-S6) run against.
type Fake struct {
	mu sync.Mutex

	idealState map[string]fakeIdealState
	extView    map[string]types.ExternalView
	instParts  map[string]types.InstancePartitions
	configs    []types.InstanceConfig
}

type fakeIdealState struct {
	doc      types.IdealStateDocument
	revision uint64
}

// NewFake returns an empty in-memory store.
func NewFake() *Fake {
	return &Fake{
		idealState: make(map[string]fakeIdealState),
		extView:    make(map[string]types.ExternalView),
		instParts:  make(map[string]types.InstancePartitions),
	}
}

var _ Gateway = (*Fake)(nil)
var _ InstancePartitionsStore = (*Fake)(nil)

// SeedIdealState installs the initial IdealState for table, returning the
// revision assigned (starts at 1, like a freshly-created JetStream key).
func (f *Fake) SeedIdealState(table string, doc types.IdealStateDocument) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.idealState[table] = fakeIdealState{doc: doc.Clone(), revision: 1}

	return 1
}

// SeedExternalView installs the current observed placement for table.
func (f *Fake) SeedExternalView(table string, view types.ExternalView) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.extView[table] = types.ExternalView(types.PlacementMap(view).Clone())
}

// SetInstanceConfigs installs the coordination service's instance list.
func (f *Fake) SetInstanceConfigs(configs []types.InstanceConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = configs
}

// MutateIdealStateExternally simulates a concurrent writer changing the
// IdealState out from under the driver, bumping the revision without the
// driver's involvement (used to test S6's VersionMismatch recovery path).
func (f *Fake) MutateIdealStateExternally(table string, next types.PlacementMap) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.idealState[table]
	entry.doc.Placement = next.Clone()
	entry.revision++
	f.idealState[table] = entry

	return entry.revision
}

func (f *Fake) ReadIdealState(_ context.Context, table string) (types.IdealStateDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.idealState[table]
	if !ok {
		return types.IdealStateDocument{}, fmt.Errorf("%w: table %q", types.ErrNotFound, table)
	}
	doc := entry.doc.Clone()
	doc.Revision = entry.revision

	return doc, nil
}

func (f *Fake) ReadExternalView(_ context.Context, table string) (types.ExternalView, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	view, ok := f.extView[table]
	if !ok {
		return nil, false, nil
	}

	return types.ExternalView(types.PlacementMap(view).Clone()), true, nil
}

func (f *Fake) CASUpdateIdealState(_ context.Context, table string, next types.PlacementMap, expectedRevision uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.idealState[table]
	if !ok {
		return 0, fmt.Errorf("%w: table %q", types.ErrNotFound, table)
	}
	if entry.revision != expectedRevision {
		return 0, &types.VersionMismatchDetail{Table: table, Expected: expectedRevision, Actual: entry.revision}
	}

	entry.doc.Placement = next.Clone()
	entry.revision++
	f.idealState[table] = entry

	return entry.revision, nil
}

func (f *Fake) ReadInstanceConfigs(_ context.Context) ([]types.InstanceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]types.InstanceConfig, len(f.configs))
	copy(out, f.configs)

	return out, nil
}

func (f *Fake) ReadInstancePartitions(_ context.Context, table string, category types.InstancePartitionsCategory, tier string) (types.InstancePartitions, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ip, ok := f.instParts[instancePartitionsKey(table, category, tier)]

	return ip, ok, nil
}

func (f *Fake) WriteInstancePartitions(_ context.Context, table string, ip types.InstancePartitions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.instParts[instancePartitionsKey(table, ip.Category, ip.Tier)] = ip

	return nil
}

func (f *Fake) DeleteInstancePartitions(_ context.Context, table string, category types.InstancePartitionsCategory, tier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.instParts, instancePartitionsKey(table, category, tier))

	return nil
}
