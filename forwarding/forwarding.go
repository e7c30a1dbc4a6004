// Package forwarding defines the dataplane collaborator the state
// manager delegates flow programming to, and a simple in-memory
// reference implementation used to exercise the state manager in
// tests. The real dataplane binding (hardware tables, an OVS bridge, a
// software switch) is explicitly out of scope; this package only fixes
// the call shape the state manager depends on.
package forwarding

import (
	"sync"

	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// Stats is the {packets, bytes} pair forwarding reports for a flow.
type Stats struct {
	PacketCount uint64
	ByteCount   uint64
}

// Forwarding is the dataplane collaborator consumed by the state
// manager's flow mutator and stats assembler.
type Forwarding interface {
	// FlowCreate programs a newly-added entry and returns the table id
	// the dataplane placed it in, or an error (typically Resource, when
	// the target table is full).
	FlowCreate(flowID uint64, entry *flowtable.Entry) (ofp.Table, error)

	// FlowModify updates the dataplane-side actions for an existing flow.
	FlowModify(flowID uint64, entry *flowtable.Entry) error

	// FlowDelete removes a flow from the dataplane. Invoked by the flow
	// table's entry-delete path for every delete reason, including
	// overwrite-on-add.
	FlowDelete(flowID uint64) error

	// FlowStatsGet returns the current counters for a flow.
	FlowStatsGet(flowID uint64) (Stats, error)

	// TableStatsGet answers a table-stats multipart request.
	TableStatsGet() ([]ofp.TableStats, error)

	// FeaturesGet fills in the forwarding-owned fields of a
	// features-reply (the table count and capability bits this
	// collaborator is responsible for).
	FeaturesGet(reply *ofp.SwitchFeatures) error

	// Experimenter handles a vendor/experimenter message. Returns
	// agenterr.NotSupported when the experimenter id/subtype is
	// unrecognized, per the fan-out contract in the component design.
	Experimenter(expType uint32, data []byte) error
}

// Memory is a reference Forwarding implementation backed by an
// in-memory counter map. Tests can poke PacketCounts/ByteCounts
// directly, or set RejectAdd to exercise the forwarding-refuses-add
// path.
type Memory struct {
	mu sync.Mutex

	stats map[uint64]Stats

	// RejectAdd, when non-nil, is returned verbatim by FlowCreate
	// instead of accepting the entry.
	RejectAdd error

	// NextTableID is the table id assigned to each newly-created flow.
	NextTableID ofp.Table

	created int
	deleted int
}

// NewMemory returns an empty Memory forwarding collaborator.
func NewMemory() *Memory {
	return &Memory{stats: make(map[uint64]Stats)}
}

func (m *Memory) FlowCreate(flowID uint64, entry *flowtable.Entry) (ofp.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RejectAdd != nil {
		return 0, m.RejectAdd
	}

	m.stats[flowID] = Stats{}
	m.created++
	return m.NextTableID, nil
}

func (m *Memory) FlowModify(flowID uint64, entry *flowtable.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stats[flowID]; !ok {
		return agenterr.New(agenterr.NotFound, "no such flow")
	}
	return nil
}

func (m *Memory) FlowDelete(flowID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.stats, flowID)
	m.deleted++
	return nil
}

func (m *Memory) FlowStatsGet(flowID uint64) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[flowID]
	if !ok {
		return Stats{}, agenterr.New(agenterr.NotFound, "no such flow")
	}
	return s, nil
}

// SetStats lets tests assign counters for a flow directly.
func (m *Memory) SetStats(flowID uint64, s Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[flowID] = s
}

func (m *Memory) TableStatsGet() ([]ofp.TableStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return []ofp.TableStats{{
		Table:        0,
		ActiveCount:  uint32(len(m.stats)),
		LookupCount:  0,
		MatchedCount: 0,
	}}, nil
}

func (m *Memory) FeaturesGet(reply *ofp.SwitchFeatures) error {
	return nil
}

func (m *Memory) Experimenter(expType uint32, data []byte) error {
	return agenterr.New(agenterr.NotSupported, "memory forwarding has no experimenter extensions")
}

var _ Forwarding = (*Memory)(nil)
