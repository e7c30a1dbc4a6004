package statemanager

import (
	"bytes"
	"io"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// reply serializes body and sends it as a non-multipart message of
// typ, echoing xid. Used by every C7 handler below: none of them ever
// goes through the of.ResponseWriter passed into Dispatcher.Serve, for
// the same reason the mutator and stats assembler don't — a single
// reply mechanism for every handler, synchronous or not.
func (sm *StateManager) reply(cxnID uint64, version uint8, xid uint32, typ of.Type, body io.WriterTo) {
	msg := &connection.Message{
		Version: version,
		Type:    uint8(typ),
		XID:     xid,
		Body:    body,
	}
	if err := sm.conn.Send(cxnID, msg); err != nil {
		sm.log.Warn("failed to send reply", "err", err, "cxn_id", cxnID, "xid", xid)
	}
}

// handleFeaturesRequest answers a features-request by asking both
// dataplane collaborators to fill in the fields they own.
func handleFeaturesRequest(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	var reply ofp.SwitchFeatures
	if err := sm.fwd.FeaturesGet(&reply); err != nil {
		sm.log.Warn("forwarding features lookup failed", "err", err)
	}
	if err := sm.prt.PortFeaturesGet(&reply); err != nil {
		sm.log.Warn("port features lookup failed", "err", err)
	}

	sm.reply(cxnID, version, xid, of.TypeFeaturesReply, &reply)
}

// handleGetConfigRequest answers with the currently installed switch
// configuration.
func handleGetConfigRequest(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	cfg := sm.Config()
	reply := &ofp.SwitchConfig{Flags: cfg.Flags, MissSendLength: cfg.MissSendLength}
	sm.reply(cxnID, version, xid, of.TypeGetConfigReply, reply)
}

// handleSetConfig installs a new switch configuration. set-config has
// no reply: the controller learns the effective configuration only by
// later sending a get-config-request.
func handleSetConfig(sm *StateManager, r *of.Request, cxnID uint64) {
	var cfg ofp.SwitchConfig
	if _, err := cfg.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, r.Header.Version, r.Header.XID, nil)
		return
	}

	sm.SetConfig(AgentConfig{Flags: cfg.Flags, MissSendLength: cfg.MissSendLength})
}

// handleTableMod applies a table configuration change. This core has
// no per-table state beyond the flow table itself, so table-mod is
// decoded and otherwise a no-op: no reply is sent, and only a message
// that fails to decode produces an error reply.
func handleTableMod(sm *StateManager, r *of.Request, cxnID uint64) {
	var tm ofp.TableMod
	if _, err := tm.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, r.Header.Version, r.Header.XID, nil)
		return
	}
}

// handlePortMod forwards a port configuration change to the port
// collaborator.
func handlePortMod(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	var pm ofp.PortMod
	if _, err := pm.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	if err := sm.prt.PortModify(&pm); err != nil {
		var buf bytes.Buffer
		pm.WriteTo(&buf)
		typ, code := portModErrorCode(agenterr.KindOf(err))
		sm.sendError(sm.log, cxnID, version, xid, typ, code, buf.Bytes())
	}
}

// handleHello answers a peer's hello with this core's own, naming the
// version it was already negotiated at by the inbound message's
// header, same as the teacher's ofputil.HelloHandler but addressed
// through sm.conn like every other reply this core sends.
func handleHello(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID
	sm.reply(cxnID, version, xid, of.TypeHello, &ofp.Hello{})
}

// handleEchoRequest answers a liveness echo with the same data it
// carried, per ofp.EchoReply's contract.
func handleEchoRequest(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	var req ofp.EchoRequest
	if _, err := req.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	sm.reply(cxnID, version, xid, of.TypeEchoReply, &ofp.EchoReply{Data: req.Data})
}

// handleQueueGetConfigRequest answers with the queues configured on
// the requested port.
func handleQueueGetConfigRequest(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	var req ofp.QueueGetConfigRequest
	if _, err := req.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	reply, err := sm.prt.QueueConfigGet(&req)
	if err != nil {
		typ, code := queueOpErrorCode(agenterr.KindOf(err))
		sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
		return
	}

	sm.reply(cxnID, version, xid, of.TypeQueueGetConfigReply, reply)
}
