// Package statemanager implements the OpenFlow state manager core: the
// collection of components that sit between the wire protocol (of, ofp)
// and the dataplane/port collaborators (forwarding, port), owning the
// flow table, translating failures into OpenFlow error messages, and
// driving the asynchronous stats/delete scans.
package statemanager

import (
	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// flowModErrorCode maps an internal error kind to the (type, code) pair
// carried by a flow-mod failure's error reply. The mapping is
// version-sensitive only in the fallback "other" bucket: ofp models a
// single v1.3-shaped ErrCode enumeration, which has no counterpart to
// OpenFlow 1.0's EPERM-flavoured default FlowModFailed code, so version
// 1 falls back to ErrCodeFlowModFailedPerm and every later version
// falls back to ErrCodeFlowModFailedUnknown, matching how each family
// of switches actually reported "some other problem" historically.
//
// There is also no ErrCodeFlowModFailedUnsupported in this enumeration;
// ErrCodeFlowModFailedBadCommand is used as its stand-in, since an
// unsupported operation and a badly-formed command both resolve to
// "the switch will not carry out this flow-mod as requested".
func flowModErrorCode(version uint8, kind agenterr.Kind) (ofp.ErrType, ofp.ErrCode) {
	switch kind {
	case agenterr.Resource:
		return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedTableFull
	case agenterr.NotSupported:
		return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedBadCommand
	case agenterr.Range:
		return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedBadTableID
	case agenterr.Param:
		return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedBadFlags
	default:
		if version == 1 {
			return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedPerm
		}
		return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedUnknown
	}
}

// errEmergencyTimeout is returned when a flow-mod sets the emergency
// flag together with a non-zero idle or hard timeout, a combination
// every OpenFlow version rejects outright: emergency flows are
// controller-pinned and never expire on their own.
func errEmergencyTimeout() (ofp.ErrType, ofp.ErrCode) {
	return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedBadTimeout
}

// errOverlap is returned when an add collides with an existing entry
// under the overlap-check rule.
func errOverlap() (ofp.ErrType, ofp.ErrCode) {
	return ofp.ErrTypeFlowModFailed, ofp.ErrCodeFlowModFailedOverlap
}

// errUnhandledType is returned by the dispatcher when no handler is
// registered for the inbound message's type.
func errUnhandledType() (ofp.ErrType, ofp.ErrCode) {
	return ofp.ErrTypeBadRequest, ofp.ErrCodeBadRequestBadType
}

// errDecodeFailed is returned when an inbound message's body fails to
// parse against its declared type.
func errDecodeFailed() (ofp.ErrType, ofp.ErrCode) {
	return ofp.ErrTypeBadRequest, ofp.ErrCodeBadRequestBadPacket
}

// errExperimenterUnhandled is returned by the experimenter fan-out when
// neither forwarding nor port recognizes the experimenter id/subtype.
func errExperimenterUnhandled() (ofp.ErrType, ofp.ErrCode) {
	return ofp.ErrTypeBadRequest, ofp.ErrCodeBadRequestBadExperimenter
}

// portModErrorCode maps an internal error kind to the (type, code) pair
// carried by a rejected port-mod.
func portModErrorCode(kind agenterr.Kind) (ofp.ErrType, ofp.ErrCode) {
	switch kind {
	case agenterr.NotFound, agenterr.Range:
		return ofp.ErrTypePortModFailed, ofp.ErrCodePortModFailedBadPort
	case agenterr.Param:
		return ofp.ErrTypePortModFailed, ofp.ErrCodePortModFailedBadConfig
	case agenterr.NotSupported:
		return ofp.ErrTypePortModFailed, ofp.ErrCodePortModFailedBadAdvertise
	default:
		return ofp.ErrTypePortModFailed, ofp.ErrCodePortModFailedPerm
	}
}

// queueOpErrorCode maps an internal error kind to the (type, code) pair
// carried by a rejected queue operation.
func queueOpErrorCode(kind agenterr.Kind) (ofp.ErrType, ofp.ErrCode) {
	switch kind {
	case agenterr.Range:
		return ofp.ErrTypeQueueOpFailed, ofp.ErrCodeQueueOpFailedBadPort
	case agenterr.NotFound:
		return ofp.ErrTypeQueueOpFailed, ofp.ErrCodeQueueOpFailedBadQueue
	default:
		return ofp.ErrTypeQueueOpFailed, ofp.ErrCodeQueueOpFailedPerm
	}
}
