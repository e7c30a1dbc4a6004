package statemanager

import (
	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/internal/agentlog"
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// sendError submits an OpenFlow error message of the given type and
// code to cxnID, echoing xid and version, with up to the first 64 bytes
// of the offending request attached as data. Per the concurrency model,
// sending to a connection that has since disconnected is not an error
// and is not retried; a transport failure is logged and swallowed, not
// returned, since by the time an error is being reported there is
// nothing further upstream able to act on a second failure.
func (sm *StateManager) sendError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, typ ofp.ErrType, code ofp.ErrCode, offending []byte) {
	data := offending
	if len(data) > 64 {
		data = data[:64]
	}

	err := sm.conn.SendError(cxnID, &connection.ErrorMessage{
		Version: version,
		XID:     xid,
		Type:    typ,
		Code:    code,
		Data:    data,
	})
	if err != nil {
		log.Warn("failed to send error reply", "err", err, "cxn_id", cxnID, "xid", xid)
	}
}

// sendFlowModError translates kind into a version-specific flow-mod
// error code and sends it.
func (sm *StateManager) sendFlowModError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, kind agenterr.Kind, offending []byte) {
	typ, code := flowModErrorCode(version, kind)
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}

// sendEmergencyTimeoutError reports the emergency-flag-with-timeout
// flow-mod rejection.
func (sm *StateManager) sendEmergencyTimeoutError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, offending []byte) {
	typ, code := errEmergencyTimeout()
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}

// sendOverlapError reports an add rejected by the overlap-check rule.
func (sm *StateManager) sendOverlapError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, offending []byte) {
	typ, code := errOverlap()
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}

// sendUnhandledTypeError reports a dispatch miss: no handler registered
// for the inbound message's type.
func (sm *StateManager) sendUnhandledTypeError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, offending []byte) {
	typ, code := errUnhandledType()
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}

// sendDecodeError reports a body that failed to parse against its
// declared type.
func (sm *StateManager) sendDecodeError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, offending []byte) {
	typ, code := errDecodeFailed()
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}

// sendExperimenterUnhandledError reports that neither forwarding nor
// port claimed an experimenter message.
func (sm *StateManager) sendExperimenterUnhandledError(log *agentlog.Logger, cxnID uint64, version uint8, xid uint32, offending []byte) {
	typ, code := errExperimenterUnhandled()
	sm.sendError(log, cxnID, version, xid, typ, code, offending)
}
