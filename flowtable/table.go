// Package flowtable implements the in-memory flow table container the
// state manager mutates and scans. It is an explicit, concrete
// collaborator: the wire protocol and the component design leave the
// table's storage policy out of scope, but something has to back the
// query builder, flow mutator and stats assembler end to end, so this
// package provides the simplest thing that does: a map keyed by flow
// id. There are no secondary indexes; strict and non-strict lookups
// scan every entry.
//
// Match subsumption (whether a wildcard query "covers" a narrower
// entry) is dataplane matching policy, which §1 of the design this
// package implements calls out of scope. Queries therefore match an
// entry either when the query's Match is the zero value (wildcard,
// matches everything in-scope for the other predicates) or when it is
// deeply equal to the entry's Match.
package flowtable

import (
	"reflect"
	"sync/atomic"
	"time"

	"github.com/netrack/ofagent/ofp"
)

// Mode selects how a MetaMatch is applied against the table.
type Mode int

const (
	// NonStrict matches every entry covered by the query.
	NonStrict Mode = iota
	// Strict matches only the entry with identical match and priority.
	Strict
	// Overlap matches entries that would conflict with an insert at the
	// query's priority, ignoring cookies.
	Overlap
)

// TableAny is a table identifier meaning "every table".
const TableAny = ofp.TableAll

// MetaMatch is the query object the flow table is scanned or probed
// with. It is built by the query builder (see statemanager) from an
// inbound flow-mod, stats, or delete request.
type MetaMatch struct {
	Mode Mode

	Table ofp.Table
	Match ofp.Match

	CheckPriority bool
	Priority      uint16

	OutPort  ofp.PortNo
	OutGroup ofp.Group

	Cookie     uint64
	CookieMask uint64
}

// Effects is the protocol-version-tagged action/instruction set applied
// to a flow entry. It is replaced wholesale by modify and modify-strict.
type Effects struct {
	Version      uint8
	Instructions ofp.Instructions
}

// Entry is the authoritative mirror of a single programmed flow.
type Entry struct {
	FlowID uint64
	Table  ofp.Table

	Match    ofp.Match
	Priority uint16

	IdleTimeout uint16
	HardTimeout uint16

	Cookie uint64
	Flags  ofp.FlowModFlag

	InsertTime time.Time

	Effects Effects
}

func matchEqual(a, b ofp.Match) bool {
	return reflect.DeepEqual(a, b)
}

func matchIsWildcard(m ofp.Match) bool {
	return m.Type == 0 && len(m.Fields) == 0
}

// meta matches reports whether entry satisfies query under the
// semantics of query.Mode.
func metaMatch(q MetaMatch, e *Entry) bool {
	if q.Table != TableAny && q.Table != e.Table {
		return false
	}

	if !matchIsWildcard(q.Match) && !matchEqual(q.Match, e.Match) {
		return false
	}

	if q.Mode != NonStrict && q.CheckPriority && q.Priority != e.Priority {
		return false
	}

	if q.OutPort != ofp.PortAny && !entryHasOutPort(e, q.OutPort) {
		return false
	}

	if q.OutGroup != ofp.GroupAny && !entryHasOutGroup(e, q.OutGroup) {
		return false
	}

	if q.Mode != Overlap && q.CookieMask != 0 {
		if e.Cookie&q.CookieMask != q.Cookie&q.CookieMask {
			return false
		}
	}

	return true
}

// entryHasOutPort and entryHasOutGroup inspect the entry's action set
// for an output port/group. The real search through action/instruction
// lists is forwarding-layer business; here it is a best-effort scan
// used by the out-port and out-group filters of delete and stats
// queries.
func entryHasOutPort(e *Entry, port ofp.PortNo) bool {
	for _, ins := range e.Effects.Instructions {
		apply, ok := ins.(*ofp.InstructionApplyActions)
		if !ok {
			continue
		}
		for _, a := range apply.Actions {
			if out, ok := a.(*ofp.ActionOutput); ok && out.Port == port {
				return true
			}
		}
	}
	return false
}

func entryHasOutGroup(e *Entry, group ofp.Group) bool {
	for _, ins := range e.Effects.Instructions {
		apply, ok := ins.(*ofp.InstructionApplyActions)
		if !ok {
			continue
		}
		for _, a := range apply.Actions {
			if grp, ok := a.(*ofp.ActionGroup); ok && grp.Group == group {
				return true
			}
		}
	}
	return false
}

// idAllocator hands out non-zero flow ids, wrapping past the maximum
// back to 1, and recycles ids freed by deletes before minting new ones.
type idAllocator struct {
	next uint64 // atomic, last minted id
	free []uint64
}

func (a *idAllocator) alloc() uint64 {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}

	for {
		id := atomic.AddUint64(&a.next, 1)
		if id == 0 {
			// unsigned overflow wrapped next past the maximum back to
			// zero: not a valid flow id, the retry mints 1.
			continue
		}
		return id
	}
}

func (a *idAllocator) release(id uint64) {
	a.free = append(a.free, id)
}

// Table is the in-memory flow table. A Table is not safe for concurrent
// use; it relies on the cooperative, single-threaded scheduling model
// described by the state manager (no two handlers or iterator callbacks
// ever touch it at once).
type Table struct {
	entries map[uint64]*Entry
	ids     idAllocator

	forwardingAddErrors uint64
}

// New returns an empty flow table.
func New() *Table {
	return &Table{entries: make(map[uint64]*Entry)}
}

// NextFlowID allocates the next flow id, skipping zero and wrapping.
func (t *Table) NextFlowID() uint64 {
	return t.ids.alloc()
}

// Add inserts entry into the table under its FlowID. The caller is
// expected to have allocated FlowID with NextFlowID.
func (t *Table) Add(entry *Entry) {
	t.entries[entry.FlowID] = entry
}

// Remove deletes entry from the table and returns its flow id to the
// allocator's free list. It is a no-op if the entry is already absent.
func (t *Table) Remove(entry *Entry) {
	if _, ok := t.entries[entry.FlowID]; !ok {
		return
	}
	delete(t.entries, entry.FlowID)
	t.ids.release(entry.FlowID)
}

// StrictMatch returns the unique entry whose table, match and priority
// exactly equal the query, or ok=false if there is none. The query's
// out-port, out-group and cookie filters still apply, so an unrestricted
// probe sets OutPort to ofp.PortAny and OutGroup to ofp.GroupAny. Invariant (3)
// of the design this implements guarantees there is never more than
// one.
func (t *Table) StrictMatch(q MetaMatch) (entry *Entry, ok bool) {
	q.Mode = Strict
	q.CheckPriority = true

	for _, e := range t.entries {
		if metaMatch(q, e) {
			return e, true
		}
	}
	return nil, false
}

// AnyMatch reports whether any entry in the table satisfies query. It
// backs the overlap-check step of an add: the caller is not interested
// in which entry overlaps, only whether one does.
func (t *Table) AnyMatch(q MetaMatch) bool {
	for _, e := range t.entries {
		if metaMatch(q, e) {
			return true
		}
	}
	return false
}

// ModifyEffects replaces entry's actions/instructions in place.
func (t *Table) ModifyEffects(entry *Entry, eff Effects) {
	entry.Effects = eff
}

// MetaMatch reports whether entry satisfies query.
func (t *Table) MetaMatch(q MetaMatch, entry *Entry) bool {
	return metaMatch(q, entry)
}

// Iter calls fn once for every entry currently in the table, in
// unspecified order, stopping early if fn returns false.
func (t *Table) Iter(fn func(*Entry) bool) {
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
}

// CurrentCount returns the number of entries resident in the table. It
// backs the status.current_count counter named in the external
// interfaces.
func (t *Table) CurrentCount() int {
	return len(t.entries)
}

// IncrForwardingAddErrors increments status.forwarding_add_errors by
// one. It is called by the flow mutator whenever forwarding.flow_create
// rejects an otherwise-valid add.
func (t *Table) IncrForwardingAddErrors() {
	t.forwardingAddErrors++
}

// ForwardingAddErrors returns the running total of rejected adds.
func (t *Table) ForwardingAddErrors() uint64 {
	return t.forwardingAddErrors
}
