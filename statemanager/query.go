package statemanager

import (
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/ofp"
)

// flowFlagEmergency is OpenFlow 1.0's OFPFF_EMERG bit. ofp does not
// carry a v1.0 flag enumeration (FlowModFlag here is the 1.3 bit
// layout, where this position is FlowFlagResetCounts), so the literal
// wire value is declared locally and consulted only when the request's
// protocol version is 1.
const flowFlagEmergency ofp.FlowModFlag = 1 << 2

// buildQuery turns a flow-mod into the MetaMatch the flow table is
// queried with. forceOutPortWildcard is set by the add and modify
// paths and wildcards both the out-port and out-group filters; the
// delete paths pass false, so the request's out_port and out_group
// restrict the query. Overlap callers pass mode=Overlap directly.
func buildQuery(version uint8, fm *ofp.FlowMod, mode flowtable.Mode, forceOutPortWildcard bool) flowtable.MetaMatch {
	q := flowtable.MetaMatch{
		Mode:  mode,
		Match: fm.Match,
	}

	if version >= 2 {
		q.Table = fm.Table
	} else {
		q.Table = flowtable.TableAny
	}

	if mode == flowtable.Strict || mode == flowtable.Overlap {
		q.CheckPriority = true
		q.Priority = fm.Priority
	}

	if forceOutPortWildcard {
		q.OutPort = ofp.PortAny
		q.OutGroup = ofp.GroupAny
	} else {
		q.OutPort = fm.OutPort
		q.OutGroup = fm.OutGroup
	}

	if mode != flowtable.Overlap && version >= 2 {
		q.Cookie = fm.Cookie
		q.CookieMask = fm.CookieMask
	}

	return q
}
