package statemanager

import (
	"bytes"
	"time"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// handleFlowMod is the dispatcher entry point for TypeFlowMod: decode
// the body, then route by command to the matching C3 operation.
func handleFlowMod(sm *StateManager, r *of.Request, cxnID uint64) {
	var fm ofp.FlowMod
	if _, err := fm.ReadFrom(r.Body); err != nil {
		sm.log.Warn("failed to decode flow-mod", "err", err)
		sm.sendDecodeError(sm.log, cxnID, r.Header.Version, r.Header.XID, nil)
		return
	}

	version, xid := r.Header.Version, r.Header.XID

	switch fm.Command {
	case ofp.FlowAdd:
		sm.mutator.flowAdd(version, &fm, xid, cxnID)
	case ofp.FlowModify:
		sm.mutator.flowModify(version, &fm, xid, cxnID)
	case ofp.FlowModifyStrict:
		sm.mutator.flowModifyStrict(version, &fm, xid, cxnID)
	case ofp.FlowDelete:
		sm.mutator.flowDelete(version, &fm, xid, cxnID)
	case ofp.FlowDeleteStrict:
		sm.mutator.flowDeleteStrict(version, &fm, xid, cxnID)
	default:
		sm.sendFlowModError(sm.log, cxnID, version, xid, agenterr.Param, offendingBytes(&fm))
	}
}

// flowMutator is the flow mutator (C3): flow_add, flow_modify (non-strict,
// async), flow_modify_strict, flow_delete (non-strict, async) and
// flow_delete_strict, holding to the ownership/rollback invariants named
// in the component design throughout.
type flowMutator struct {
	sm *StateManager
}

func newFlowMutator(sm *StateManager) *flowMutator {
	return &flowMutator{sm: sm}
}

func entryFromFlowMod(version uint8, fm *ofp.FlowMod) *flowtable.Entry {
	return &flowtable.Entry{
		Table:       fm.Table,
		Match:       fm.Match,
		Priority:    fm.Priority,
		IdleTimeout: fm.IdleTimeout,
		HardTimeout: fm.HardTimeout,
		Cookie:      fm.Cookie,
		Flags:       fm.Flags,
		InsertTime:  time.Now(),
		Effects: flowtable.Effects{
			Version:      version,
			Instructions: fm.Instructions,
		},
	}
}

// flowAdd implements flow_add. It always returns after translating any
// failure into an OpenFlow error message; it never returns an error to
// the caller, matching the fire-and-forget contract a flow-mod has from
// the controller's perspective.
func (m *flowMutator) flowAdd(version uint8, fm *ofp.FlowMod, xid uint32, cxnID uint64) {
	sm := m.sm
	sm.metrics.flowModTotal.WithLabelValues(flowModCommandLabel(ofp.FlowAdd)).Inc()

	offending := offendingBytes(fm)

	if fm.Flags&ofp.FlowFlagCheckOverlap != 0 {
		overlapQuery := buildQuery(version, fm, flowtable.Overlap, true)
		if sm.table.AnyMatch(overlapQuery) {
			sm.sendOverlapError(sm.log, cxnID, version, xid, offending)
			return
		}
	}

	if version == 1 && fm.Flags&flowFlagEmergency != 0 && (fm.IdleTimeout != 0 || fm.HardTimeout != 0) {
		sm.sendEmergencyTimeoutError(sm.log, cxnID, version, xid, offending)
		return
	}

	strictQuery := buildQuery(version, fm, flowtable.Strict, true)
	if existing, ok := sm.table.StrictMatch(strictQuery); ok {
		m.flowEntryDelete(existing)
	}

	flowID := sm.table.NextFlowID()
	entry := entryFromFlowMod(version, fm)
	entry.FlowID = flowID
	sm.table.Add(entry)

	tableID, err := sm.fwd.FlowCreate(flowID, entry)
	if err != nil {
		sm.table.IncrForwardingAddErrors()
		sm.table.Remove(entry)
		sm.sendFlowModError(sm.log, cxnID, version, xid, agenterr.KindOf(err), offending)
		return
	}

	entry.Table = tableID
}

// flowEntryDelete removes entry from the table and tells forwarding to
// tear it down. Used for both explicit deletes and add's overwrite path.
func (m *flowMutator) flowEntryDelete(entry *flowtable.Entry) {
	m.sm.table.Remove(entry)
	if err := m.sm.fwd.FlowDelete(entry.FlowID); err != nil {
		m.sm.log.Warn("forwarding flow delete failed", "flow_id", entry.FlowID, "err", err)
	}
}

// flowModify implements flow_modify (non-strict, asynchronous).
// Ownership of the request transfers to the spawned iterator task.
func (m *flowMutator) flowModify(version uint8, fm *ofp.FlowMod, xid uint32, cxnID uint64) {
	sm := m.sm
	sm.metrics.flowModTotal.WithLabelValues(flowModCommandLabel(ofp.FlowModify)).Inc()

	query := buildQuery(version, fm, flowtable.NonStrict, true)

	state := &modifyTaskState{mutator: m, version: version, fm: fm, xid: xid, cxnID: cxnID}
	sm.spawnIterTask(query, state.callback)
}

type modifyTaskState struct {
	mutator    *flowMutator
	version    uint8
	fm         *ofp.FlowMod
	xid        uint32
	cxnID      uint64
	numMatched int
}

func (s *modifyTaskState) callback(entry *flowtable.Entry) {
	sm := s.mutator.sm

	if entry == nil {
		if s.numMatched == 0 {
			s.mutator.flowAdd(s.version, s.fm, s.xid, s.cxnID)
		}
		return
	}

	s.numMatched++

	if err := sm.fwd.FlowModify(entry.FlowID, entry); err != nil {
		sm.sendFlowModError(sm.log, s.cxnID, s.version, s.xid, agenterr.KindOf(err), offendingBytes(s.fm))
		return
	}

	sm.table.ModifyEffects(entry, flowtable.Effects{Version: s.version, Instructions: s.fm.Instructions})
}

// flowModifyStrict implements flow_modify_strict (synchronous).
func (m *flowMutator) flowModifyStrict(version uint8, fm *ofp.FlowMod, xid uint32, cxnID uint64) {
	sm := m.sm
	sm.metrics.flowModTotal.WithLabelValues(flowModCommandLabel(ofp.FlowModifyStrict)).Inc()

	query := buildQuery(version, fm, flowtable.Strict, true)

	entry, ok := sm.table.StrictMatch(query)
	if !ok {
		m.flowAdd(version, fm, xid, cxnID)
		return
	}

	if err := sm.fwd.FlowModify(entry.FlowID, entry); err != nil {
		sm.sendFlowModError(sm.log, cxnID, version, xid, agenterr.KindOf(err), offendingBytes(fm))
		return
	}

	sm.table.ModifyEffects(entry, flowtable.Effects{Version: version, Instructions: fm.Instructions})
}

// flowDelete implements flow_delete (non-strict, asynchronous). Unlike
// modify and add, out_port is taken from the request rather than forced
// to wildcard: v1.0 delete supports filtering by output port.
func (m *flowMutator) flowDelete(version uint8, fm *ofp.FlowMod, xid uint32, cxnID uint64) {
	query := buildQuery(version, fm, flowtable.NonStrict, false)

	mutator := m
	cb := func(entry *flowtable.Entry) {
		if entry == nil {
			return
		}
		mutator.flowEntryDelete(entry)
	}

	m.sm.spawnIterTask(query, cb)
}

// flowDeleteStrict implements flow_delete_strict (synchronous).
func (m *flowMutator) flowDeleteStrict(version uint8, fm *ofp.FlowMod, xid uint32, cxnID uint64) {
	query := buildQuery(version, fm, flowtable.Strict, false)

	if entry, ok := m.sm.table.StrictMatch(query); ok {
		m.flowEntryDelete(entry)
	}
}

// offendingBytes serializes fm to stand in as the error data field's
// echoed offending request. Truncation to 64 bytes happens in sendError.
func offendingBytes(fm *ofp.FlowMod) []byte {
	var buf bytes.Buffer
	fm.WriteTo(&buf)
	return buf.Bytes()
}
