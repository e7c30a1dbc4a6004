package statemanager

import (
	"hash/fnv"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/ofp"
)

// handlerFunc is the shape every registered handler implements: decode
// the body, act, and reply through sm.conn (not rw — async iterator
// tasks spawned by a handler must keep replying long after Serve has
// returned, so every handler uses the same cxn_id-addressed path from
// the start, rather than switching mechanisms between the synchronous
// and asynchronous cases).
type handlerFunc func(sm *StateManager, r *of.Request, cxnID uint64)

// Dispatcher is the request dispatcher (C6): one handler per wire
// message kind, a miss logs and replies BadRequest/BadType. It
// implements of.Handler so it can be installed directly as an
// of.Server's Handler.
type Dispatcher struct {
	sm       *StateManager
	handlers map[of.Type]handlerFunc
}

// NewDispatcher builds a Dispatcher with every handler this core
// implements registered.
func NewDispatcher(sm *StateManager) *Dispatcher {
	d := &Dispatcher{sm: sm, handlers: make(map[of.Type]handlerFunc)}

	d.handlers[of.TypeHello] = handleHello
	d.handlers[of.TypeEchoRequest] = handleEchoRequest
	d.handlers[of.TypeFlowMod] = handleFlowMod
	d.handlers[of.TypeMultipartRequest] = handleMultipartRequest
	d.handlers[of.TypeFeaturesRequest] = handleFeaturesRequest
	d.handlers[of.TypeGetConfigRequest] = handleGetConfigRequest
	d.handlers[of.TypeSetConfig] = handleSetConfig
	d.handlers[of.TypeTableMod] = handleTableMod
	d.handlers[of.TypePortMod] = handlePortMod
	d.handlers[of.TypeQueueGetConfigRequest] = handleQueueGetConfigRequest
	d.handlers[of.TypeExperiment] = handleExperimenter

	return d
}

// Serve implements of.Handler.
func (d *Dispatcher) Serve(rw of.ResponseWriter, r *of.Request) {
	cxnID := connIDFor(r)

	h, ok := d.handlers[r.Header.Type]
	if !ok {
		d.sm.log.Info("unhandled message type", "type", r.Header.Type, "xid", r.Header.XID)
		d.sm.sendUnhandledTypeError(d.sm.log, cxnID, r.Header.Version, r.Header.XID, nil)
		return
	}

	h(d.sm, r, cxnID)
}

// connIDFor derives a stable connection identifier from the request's
// remote address. Requests built without an address (as in tests that
// construct them directly) all collapse to connection 0, which is fine
// for tests that only care about a single simulated connection.
func connIDFor(r *of.Request) uint64 {
	if r.Addr == nil {
		return 0
	}

	h := fnv.New64a()
	h.Write([]byte(r.Addr.String()))
	return h.Sum64()
}

// flowModCommandLabel renders a FlowModCommand for the flow_mod_total
// metric's command label.
func flowModCommandLabel(c ofp.FlowModCommand) string {
	switch c {
	case ofp.FlowAdd:
		return "add"
	case ofp.FlowModify:
		return "modify"
	case ofp.FlowModifyStrict:
		return "modify_strict"
	case ofp.FlowDelete:
		return "delete"
	case ofp.FlowDeleteStrict:
		return "delete_strict"
	default:
		return "unknown"
	}
}
