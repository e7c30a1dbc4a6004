package statemanager

import (
	"io"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// handleExperimenter is the dispatcher entry point for TypeExperiment:
// decode the vendor header, intercept the BSN IP-mask vendor extension
// (the only sub-command this core answers locally), then fan out
// everything else to both dataplane collaborators under the precedence
// rule fanOutExperimenter implements.
func handleExperimenter(sm *StateManager, r *of.Request, cxnID uint64) {
	version, xid := r.Header.Version, r.Header.XID

	var exp ofp.Experimenter
	if _, err := exp.ReadFrom(r.Body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	if exp.Experimenter == ofp.BSNExperimenterID {
		switch exp.ExpType {
		case ofp.BSNExpTypeSetIPMask:
			handleBSNSetIPMask(sm, r.Body, version, xid, cxnID)
			return
		case ofp.BSNExpTypeGetIPMaskRequest:
			handleBSNGetIPMaskRequest(sm, r.Body, version, xid, cxnID)
			return
		case ofp.BSNExpTypeHybridGetRequest:
			handleBSNHybridGetRequest(sm, version, xid, cxnID)
			return
		}
	}

	data, _ := io.ReadAll(r.Body)
	fanOutExperimenter(sm, version, xid, cxnID, exp.ExpType, data)
}

// handleBSNSetIPMask installs a vendor IP-mask table entry. The
// extension has no analogue among the forwarding/port collaborators,
// so it is handled locally instead of fanned out.
func handleBSNSetIPMask(sm *StateManager, body io.Reader, version uint8, xid uint32, cxnID uint64) {
	var req ofp.BSNSetIPMask
	if _, err := req.ReadFrom(body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	sm.SetIpMask(req.Index, req.Mask)
}

// bsnIPMaskReply pairs the experimenter header with the get-ip-mask
// reply body, the same two-part WriteTo stats.go's multipartChunk uses
// for a multipart reply header plus body.
type bsnIPMaskReply struct {
	header ofp.Experimenter
	body   ofp.BSNGetIPMaskReply
}

func (r *bsnIPMaskReply) WriteTo(w io.Writer) (int64, error) {
	n1, err := r.header.WriteTo(w)
	if err != nil {
		return n1, err
	}
	n2, err := r.body.WriteTo(w)
	return n1 + n2, err
}

// handleBSNGetIPMaskRequest answers with the mask registered at the
// requested index.
func handleBSNGetIPMaskRequest(sm *StateManager, body io.Reader, version uint8, xid uint32, cxnID uint64) {
	var req ofp.BSNGetIPMaskRequest
	if _, err := req.ReadFrom(body); err != nil {
		sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
		return
	}

	reply := &bsnIPMaskReply{
		header: ofp.Experimenter{Experimenter: ofp.BSNExperimenterID, ExpType: ofp.BSNExpTypeGetIPMaskReply},
		body:   ofp.BSNGetIPMaskReply{Index: req.Index, Mask: sm.IpMask(req.Index)},
	}
	sm.reply(cxnID, version, xid, of.TypeExperiment, reply)
}

// bsnHybridGetReply pairs the experimenter header with the hybrid-get
// reply body.
type bsnHybridGetReply struct {
	header ofp.Experimenter
	body   ofp.BSNHybridGetReply
}

func (r *bsnHybridGetReply) WriteTo(w io.Writer) (int64, error) {
	n1, err := r.header.WriteTo(w)
	if err != nil {
		return n1, err
	}
	n2, err := r.body.WriteTo(w)
	return n1 + n2, err
}

// handleBSNHybridGetRequest answers the hybrid-get readback request.
// This core has no hybrid-mode concept of its own to report, so it
// always answers enabled at version 0, matching handlers.c's fixed
// reply.
func handleBSNHybridGetRequest(sm *StateManager, version uint8, xid uint32, cxnID uint64) {
	reply := &bsnHybridGetReply{
		header: ofp.Experimenter{Experimenter: ofp.BSNExperimenterID, ExpType: ofp.BSNExpTypeHybridGetReply},
		body:   ofp.BSNHybridGetReply{HybridEnable: 1, HybridVersion: 0},
	}
	sm.reply(cxnID, version, xid, of.TypeExperiment, reply)
}

// fanOutExperimenter implements the experimenter fan-out precedence
// rule (C7): both collaborators always get a chance to claim
// expType/data — neither is skipped on the other's success, since a
// port-side effect of a vendor message must run even when forwarding
// also claims it. NotSupported from both is reported as
// BadRequest/BadExperimenter, at least one success is reported as
// success, and if both fail with something other than NotSupported,
// forwarding's error wins since it owns the flow table the rest of
// this core revolves around.
func fanOutExperimenter(sm *StateManager, version uint8, xid uint32, cxnID uint64, expType uint32, data []byte) {
	fwdErr := sm.fwd.Experimenter(expType, data)
	prtErr := sm.prt.Experimenter(expType, data)

	if fwdErr == nil || prtErr == nil {
		return
	}

	fwdKind := agenterr.KindOf(fwdErr)
	prtKind := agenterr.KindOf(prtErr)

	if fwdKind == agenterr.NotSupported && prtKind == agenterr.NotSupported {
		sm.sendExperimenterUnhandledError(sm.log, cxnID, version, xid, nil)
		return
	}

	kind := fwdKind
	if fwdKind == agenterr.NotSupported {
		kind = prtKind
	}

	typ, code := flowModErrorCode(version, kind)
	sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
}
