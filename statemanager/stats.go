package statemanager

import (
	"bytes"
	"io"
	"time"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/ofp"
)

// maxStatsReplyBytes is the 2^15 (32 KiB) wire-size threshold a flow-
// stats multipart reply chunk must not exceed once an entry has been
// appended to it.
const maxStatsReplyBytes = 1 << 15

// multipartChunk adapts a fully-serialized multipart reply header plus
// its body bytes to io.WriterTo, so it can be handed to connection.Conn
// as a Message.Body without the connection package needing to know
// about ofp.MultipartReply.
type multipartChunk struct {
	header ofp.MultipartReply
	body   []byte
}

func (c *multipartChunk) WriteTo(w io.Writer) (int64, error) {
	n1, err := c.header.WriteTo(w)
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(c.body)
	return n1 + int64(n2), err
}

func (sm *StateManager) sendMultipart(cxnID uint64, version uint8, xid uint32, typ ofp.MultipartType, flags ofp.MultipartReplyFlag, body []byte) {
	msg := &connection.Message{
		Version: version,
		Type:    uint8(of.TypeMultipartReply),
		XID:     xid,
		Body:    &multipartChunk{header: ofp.MultipartReply{Type: typ, Flags: flags}, body: body},
	}
	if err := sm.conn.Send(cxnID, msg); err != nil {
		sm.log.Warn("failed to send multipart reply", "err", err, "cxn_id", cxnID)
	}
	sm.metrics.statsChunksTotal.Inc()
}

// buildStatsQuery turns a flow-stats request into the MetaMatch the
// flow table is scanned with. Stats never forces out_port to wildcard:
// a caller asking for a specific out_port wants exactly that filter.
func buildStatsQuery(version uint8, req *ofp.FlowStatsRequest) flowtable.MetaMatch {
	q := flowtable.MetaMatch{
		Mode:     flowtable.NonStrict,
		Match:    req.Match,
		OutPort:  req.OutPort,
		OutGroup: req.OutGroup,
	}

	if version >= 2 {
		q.Table = req.Table
		q.Cookie = req.Cookie
		q.CookieMask = req.CookieMask
	} else {
		q.Table = flowtable.TableAny
	}

	return q
}

// handleMultipartRequest is the dispatcher entry point for
// TypeMultipartRequest: decode the envelope, then route by
// MultipartType to the matching stats/desc handler.
func handleMultipartRequest(sm *StateManager, r *of.Request, cxnID uint64) {
	var mp ofp.MultipartRequest
	if _, err := mp.ReadFrom(r.Body); err != nil {
		sm.log.Warn("failed to decode multipart request", "err", err)
		sm.sendDecodeError(sm.log, cxnID, r.Header.Version, r.Header.XID, nil)
		return
	}

	version, xid := r.Header.Version, r.Header.XID

	switch mp.Type {
	case ofp.MultipartTypeFlow:
		var req ofp.FlowStatsRequest
		if _, err := req.ReadFrom(mp.Body); err != nil {
			sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
			return
		}
		sm.flowStatsGet(version, &req, xid, cxnID)
	case ofp.MultipartTypeAggregate:
		var req ofp.AggregateStatsRequest
		if _, err := req.ReadFrom(mp.Body); err != nil {
			sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
			return
		}
		sm.aggregateStatsGet(version, &req, xid, cxnID)
	case ofp.MultipartTypeTable:
		sm.tableStatsGet(version, xid, cxnID)
	case ofp.MultipartTypePortStats:
		var req ofp.PortStatsRequest
		if _, err := req.ReadFrom(mp.Body); err != nil {
			sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
			return
		}
		sm.portStatsGet(version, &req, xid, cxnID)
	case ofp.MultipartTypePortDescription:
		sm.portDescStatsGet(version, xid, cxnID)
	case ofp.MultipartTypeQueue:
		var req ofp.QueueStatsRequest
		if _, err := req.ReadFrom(mp.Body); err != nil {
			sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
			return
		}
		sm.queueStatsGet(version, &req, xid, cxnID)
	case ofp.MultipartTypeDescription:
		sm.descStatsGet(version, xid, cxnID)
	case ofp.MultipartTypeExperimenter:
		var hdr ofp.ExperimenterMultipartHeader
		if _, err := hdr.ReadFrom(mp.Body); err != nil {
			sm.sendDecodeError(sm.log, cxnID, version, xid, nil)
			return
		}
		rest, _ := io.ReadAll(mp.Body)
		fanOutExperimenter(sm, version, xid, cxnID, hdr.ExpType, rest)
	default:
		sm.sendUnhandledTypeError(sm.log, cxnID, version, xid, nil)
	}
}

// flowStatsGet is the flow-stats half of the stats assembler (C5).
func (sm *StateManager) flowStatsGet(version uint8, req *ofp.FlowStatsRequest, xid uint32, cxnID uint64) {
	query := buildStatsQuery(version, req)

	state := &flowStatsState{
		sm:      sm,
		version: version,
		xid:     xid,
		cxnID:   cxnID,
		now:     time.Now(),
	}

	sm.spawnIterTask(query, state.callback)
}

type flowStatsState struct {
	sm      *StateManager
	version uint8
	xid     uint32
	cxnID   uint64
	now     time.Time

	buf        bytes.Buffer
	chunksSent int
	lastMore   bool
}

func (s *flowStatsState) flush(flags ofp.MultipartReplyFlag) {
	body := append([]byte(nil), s.buf.Bytes()...)
	s.sm.sendMultipart(s.cxnID, s.version, s.xid, ofp.MultipartTypeFlow, flags, body)
	s.buf.Reset()
	s.chunksSent++
	s.lastMore = flags&ofp.MultipartReplyMode != 0
}

func (s *flowStatsState) callback(entry *flowtable.Entry) {
	if entry == nil {
		// Closing flags=0 reply: the leftover partial chunk, or (zero
		// matches, or the last sent chunk carried more=1, even if it
		// left buf empty) an empty terminator so the controller's
		// "more" wait always ends.
		if s.buf.Len() > 0 || s.chunksSent == 0 || s.lastMore {
			s.flush(0)
		}
		return
	}

	if s.version != entry.Effects.Version {
		return
	}

	counters, err := s.sm.fwd.FlowStatsGet(entry.FlowID)
	if err != nil {
		s.sm.log.Warn("forwarding flow stats lookup failed", "flow_id", entry.FlowID, "err", err)
		return
	}

	dur := s.now.Sub(entry.InsertTime)
	if dur < 0 {
		dur = 0
	}

	fs := &ofp.FlowStats{
		Table:        entry.Table,
		DurationSec:  uint32(dur / time.Second),
		DurationNSec: uint32(dur % time.Second),
		Priority:     entry.Priority,
		IdleTimeout:  entry.IdleTimeout,
		HardTimeout:  entry.HardTimeout,
		Flags:        entry.Flags,
		Cookie:       entry.Cookie,
		PacketCount:  counters.PacketCount,
		ByteCount:    counters.ByteCount,
		Match:        entry.Match,
		Instructions: entry.Effects.Instructions,
	}

	var entryBuf bytes.Buffer
	if _, err := fs.WriteTo(&entryBuf); err != nil {
		s.sm.log.Warn("failed to serialize flow stats entry", "flow_id", entry.FlowID, "err", err)
		return
	}

	s.buf.Write(entryBuf.Bytes())

	if s.buf.Len() > maxStatsReplyBytes {
		s.flush(ofp.MultipartReplyMode)
	}
}

// aggregateStatsGet is the aggregate-stats half of the stats assembler.
// Version gating is deliberately not applied here, unlike flow-stats —
// every matched flow is counted regardless of the wire version it was
// programmed under.
func (sm *StateManager) aggregateStatsGet(version uint8, req *ofp.AggregateStatsRequest, xid uint32, cxnID uint64) {
	query := flowtable.MetaMatch{
		Mode:     flowtable.NonStrict,
		Match:    req.Match,
		OutPort:  req.OutPort,
		OutGroup: req.OutGroup,
	}
	if version >= 2 {
		query.Table = req.Table
		query.Cookie = req.Cookie
		query.CookieMask = req.CookieMask
	} else {
		query.Table = flowtable.TableAny
	}

	totals := &ofp.AggregateStats{}

	cb := func(entry *flowtable.Entry) {
		if entry == nil {
			var buf bytes.Buffer
			totals.WriteTo(&buf)
			sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypeAggregate, 0, buf.Bytes())
			return
		}

		counters, err := sm.fwd.FlowStatsGet(entry.FlowID)
		if err != nil {
			sm.log.Warn("forwarding flow stats lookup failed", "flow_id", entry.FlowID, "err", err)
			return
		}

		totals.PacketCount += counters.PacketCount
		totals.ByteCount += counters.ByteCount
		totals.FlowCount++
	}

	sm.spawnIterTask(query, cb)
}

func (sm *StateManager) tableStatsGet(version uint8, xid uint32, cxnID uint64) {
	stats, err := sm.fwd.TableStatsGet()
	if err != nil {
		typ, code := errUnhandledType()
		sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
		return
	}

	var buf bytes.Buffer
	for i := range stats {
		stats[i].WriteTo(&buf)
	}
	sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypeTable, 0, buf.Bytes())
}

func (sm *StateManager) portStatsGet(version uint8, req *ofp.PortStatsRequest, xid uint32, cxnID uint64) {
	stats, err := sm.prt.PortStatsGet(req)
	if err != nil {
		typ, code := errUnhandledType()
		sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
		return
	}

	var buf bytes.Buffer
	for i := range stats {
		stats[i].WriteTo(&buf)
	}
	sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypePortStats, 0, buf.Bytes())
}

func (sm *StateManager) portDescStatsGet(version uint8, xid uint32, cxnID uint64) {
	ports, err := sm.prt.PortDescStatsGet()
	if err != nil {
		typ, code := errUnhandledType()
		sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
		return
	}

	var buf bytes.Buffer
	for i := range ports {
		ports[i].WriteTo(&buf)
	}
	sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypePortDescription, 0, buf.Bytes())
}

func (sm *StateManager) queueStatsGet(version uint8, req *ofp.QueueStatsRequest, xid uint32, cxnID uint64) {
	stats, err := sm.prt.QueueStatsGet(req)
	if err != nil {
		typ, code := errUnhandledType()
		sm.sendError(sm.log, cxnID, version, xid, typ, code, nil)
		return
	}

	var buf bytes.Buffer
	for i := range stats {
		stats[i].WriteTo(&buf)
	}
	sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypeQueue, 0, buf.Bytes())
}

// descStatsGet answers the static switch-description multipart request.
// This core does not model vendor/hardware/software descriptions, since
// no collaborator owns that data; the reply is sent with an empty body.
func (sm *StateManager) descStatsGet(version uint8, xid uint32, cxnID uint64) {
	sm.sendMultipart(cxnID, version, xid, ofp.MultipartTypeDescription, 0, nil)
}
