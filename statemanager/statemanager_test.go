package statemanager

import (
	"bytes"
	"testing"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/forwarding"
	"github.com/netrack/ofagent/ofp"
	"github.com/netrack/ofagent/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	sm   *StateManager
	disp *Dispatcher
	fwd  *forwarding.Memory
	prt  *port.Memory
	conn *connection.Memory
}

func newTestEnv() *testEnv {
	fwd := forwarding.NewMemory()
	prt := port.NewMemory()
	conn := connection.NewMemory()

	sm := NewStateManager(flowtable.New(), fwd, prt, conn, of.SequentialRunner{}, nil, nil)
	return &testEnv{sm: sm, disp: NewDispatcher(sm), fwd: fwd, prt: prt, conn: conn}
}

func flowModRequest(t *testing.T, fm *ofp.FlowMod, xid uint32) *of.Request {
	t.Helper()

	var buf bytes.Buffer
	_, err := fm.WriteTo(&buf)
	require.NoError(t, err)

	req, err := of.NewRequest(of.TypeFlowMod, &buf)
	require.NoError(t, err)
	req.Header.XID = xid
	return req
}

func matchFor(vlan uint16) ofp.Match {
	return ofp.Match{Type: ofp.MatchTypeXM}
}

// Scenario: add then non-strict modify against the same match updates
// the existing entry's instructions in place, without allocating a
// second flow id.
func TestFlowAddThenModify(t *testing.T) {
	env := newTestEnv()

	m := matchFor(10)

	add := &ofp.FlowMod{Command: ofp.FlowAdd, Match: m, Priority: 100}
	env.disp.Serve(nil, flowModRequest(t, add, 1))

	require.Equal(t, 1, env.sm.table.CurrentCount())

	var flowID uint64
	env.sm.table.Iter(func(e *flowtable.Entry) bool {
		flowID = e.FlowID
		return false
	})

	modify := &ofp.FlowMod{Command: ofp.FlowModify, Match: m}
	env.disp.Serve(nil, flowModRequest(t, modify, 2))

	require.Equal(t, 1, env.sm.table.CurrentCount(), "modify must not create a second entry")

	var gotID uint64
	env.sm.table.Iter(func(e *flowtable.Entry) bool {
		gotID = e.FlowID
		return false
	})
	assert.Equal(t, flowID, gotID, "modify updates the existing entry rather than re-allocating")
}

// Scenario: non-strict modify against a match with no existing entry
// falls back to add.
func TestFlowModifyNoMatchFallsBackToAdd(t *testing.T) {
	env := newTestEnv()

	modify := &ofp.FlowMod{Command: ofp.FlowModify, Match: matchFor(20), Priority: 5}
	env.disp.Serve(nil, flowModRequest(t, modify, 7))

	assert.Equal(t, 1, env.sm.table.CurrentCount(), "a modify matching nothing must add")
}

// Scenario: an add with the overlap-check flag set is rejected when an
// existing entry at the same priority already covers the match.
func TestFlowAddOverlapRejected(t *testing.T) {
	env := newTestEnv()

	m := matchFor(30)

	first := &ofp.FlowMod{Command: ofp.FlowAdd, Match: m, Priority: 50}
	env.disp.Serve(nil, flowModRequest(t, first, 1))

	second := &ofp.FlowMod{
		Command:  ofp.FlowAdd,
		Match:    m,
		Priority: 50,
		Flags:    ofp.FlowFlagCheckOverlap,
	}
	env.disp.Serve(nil, flowModRequest(t, second, 2))

	assert.Equal(t, 1, env.sm.table.CurrentCount(), "an overlapping add must be rejected, not applied")

	errs := env.conn.Errors(0)
	require.Len(t, errs, 1)
	assert.Equal(t, ofp.ErrTypeFlowModFailed, errs[0].Type)
	assert.Equal(t, ofp.ErrCodeFlowModFailedOverlap, errs[0].Code)
	assert.Equal(t, uint32(2), errs[0].XID)
}

// Scenario: an OF1.0 add with the emergency flag set and a nonzero
// timeout is rejected as flow-mod-failed/bad-timeout and never
// installed.
func TestFlowAddEmergencyWithTimeoutRejected(t *testing.T) {
	env := newTestEnv()

	add := &ofp.FlowMod{
		Command:     ofp.FlowAdd,
		Match:       matchFor(60),
		Priority:    1,
		Flags:       flowFlagEmergency,
		IdleTimeout: 5,
	}
	req := flowModRequest(t, add, 3)
	req.Header.Version = 1
	env.disp.Serve(nil, req)

	assert.Equal(t, 0, env.sm.table.CurrentCount(), "an emergency flow-mod with a nonzero timeout must not be installed")

	errs := env.conn.Errors(0)
	require.Len(t, errs, 1)
	assert.Equal(t, ofp.ErrTypeFlowModFailed, errs[0].Type)
	assert.Equal(t, ofp.ErrCodeFlowModFailedBadTimeout, errs[0].Code)
	assert.Equal(t, uint32(3), errs[0].XID)
}

// Scenario: forwarding refuses an add; the table rolls back to having
// no entry for it and an error is reported.
func TestFlowAddForwardingRejection(t *testing.T) {
	env := newTestEnv()
	env.fwd.RejectAdd = assertError{}

	add := &ofp.FlowMod{Command: ofp.FlowAdd, Match: matchFor(40), Priority: 1}
	env.disp.Serve(nil, flowModRequest(t, add, 9))

	assert.Equal(t, 0, env.sm.table.CurrentCount(), "a forwarding-rejected add must not remain in the table")
	assert.Equal(t, uint64(1), env.sm.table.ForwardingAddErrors())

	errs := env.conn.Errors(0)
	require.Len(t, errs, 1)
	assert.Equal(t, ofp.ErrTypeFlowModFailed, errs[0].Type)
}

type assertError struct{}

func (assertError) Error() string { return "forwarding refused" }

// Scenario: delete-strict removes exactly the matching entry and tells
// forwarding to tear it down.
func TestFlowDeleteStrict(t *testing.T) {
	env := newTestEnv()

	m := matchFor(50)
	add := &ofp.FlowMod{Command: ofp.FlowAdd, Match: m, Priority: 77}
	env.disp.Serve(nil, flowModRequest(t, add, 1))
	require.Equal(t, 1, env.sm.table.CurrentCount())

	del := &ofp.FlowMod{
		Command:  ofp.FlowDeleteStrict,
		Match:    m,
		Priority: 77,
		OutPort:  ofp.PortAny,
		OutGroup: ofp.GroupAny,
	}
	env.disp.Serve(nil, flowModRequest(t, del, 2))

	assert.Equal(t, 0, env.sm.table.CurrentCount())
}

// Scenario: a flow-stats request against a table with many entries is
// answered with one or more replies; every reply but the last carries a
// non-empty body, and the last one carries the request's xid.
func TestFlowStatsChunking(t *testing.T) {
	env := newTestEnv()

	const n = 1000
	for i := 0; i < n; i++ {
		add := &ofp.FlowMod{
			Command:  ofp.FlowAdd,
			Match:    ofp.Match{Type: ofp.MatchTypeXM},
			Priority: uint16(i),
		}
		env.disp.Serve(nil, flowModRequest(t, add, uint32(i)))
	}
	require.Equal(t, n, env.sm.table.CurrentCount())

	req := &ofp.FlowStatsRequest{Table: ofp.TableAll, OutPort: ofp.PortAny, OutGroup: ofp.GroupAny}
	var reqBuf bytes.Buffer
	req.WriteTo(&reqBuf)

	mp := ofp.NewMultipartRequest(ofp.MultipartTypeFlow, &reqBuf)
	var mpBuf bytes.Buffer
	mp.WriteTo(&mpBuf)

	httpReq, err := of.NewRequest(of.TypeMultipartRequest, &mpBuf)
	require.NoError(t, err)
	httpReq.Header.XID = 123

	env.disp.Serve(nil, httpReq)

	replies := env.conn.Replies(0)
	require.NotEmpty(t, replies)

	for i, r := range replies {
		var buf bytes.Buffer
		_, err := r.Body.WriteTo(&buf)
		require.NoError(t, err)

		if i < len(replies)-1 {
			assert.True(t, buf.Len() > 0)
		} else {
			assert.Equal(t, uint32(123), r.XID)
		}
	}
}

// portHandlesOne wraps the reference Port collaborator to claim a
// single experimenter type, so the fan-out's "at least one success"
// path can be exercised without a real vendor extension.
type portHandlesOne struct {
	*port.Memory
	expType uint32
}

func (p portHandlesOne) Experimenter(expType uint32, data []byte) error {
	if expType == p.expType {
		return nil
	}
	return p.Memory.Experimenter(expType, data)
}

// Scenario: an experimenter message unsupported by forwarding but
// handled by port succeeds with no error reply.
func TestExperimenterFanOutPortHandles(t *testing.T) {
	fwd := forwarding.NewMemory()
	prt := portHandlesOne{Memory: port.NewMemory(), expType: 0x2}
	conn := connection.NewMemory()

	sm := NewStateManager(flowtable.New(), fwd, prt, conn, of.SequentialRunner{}, nil, nil)
	disp := NewDispatcher(sm)

	var buf bytes.Buffer
	exp := &ofp.Experimenter{Experimenter: 0x1, ExpType: 0x2}
	exp.WriteTo(&buf)

	req, err := of.NewRequest(of.TypeExperiment, &buf)
	require.NoError(t, err)
	req.Header.XID = 55

	disp.Serve(nil, req)

	assert.Empty(t, conn.Errors(0), "port handling the experimenter must suppress any error reply")
}

// Scenario: an experimenter message unsupported by both collaborators
// is reported as BadRequest/BadExperimenter.
func TestExperimenterFanOutBothRefuse(t *testing.T) {
	env := newTestEnv()

	var buf bytes.Buffer
	exp := &ofp.Experimenter{Experimenter: 0x1, ExpType: 0xdead}
	exp.WriteTo(&buf)

	req, err := of.NewRequest(of.TypeExperiment, &buf)
	require.NoError(t, err)
	req.Header.XID = 56

	env.disp.Serve(nil, req)

	errs := env.conn.Errors(0)
	require.Len(t, errs, 1)
	assert.Equal(t, ofp.ErrTypeBadRequest, errs[0].Type)
	assert.Equal(t, ofp.ErrCodeBadRequestBadExperimenter, errs[0].Code)
}

// fwdHandlesOne wraps the reference Forwarding collaborator to claim a
// single experimenter type, mirroring portHandlesOne.
type fwdHandlesOne struct {
	*forwarding.Memory
	expType uint32
}

func (f fwdHandlesOne) Experimenter(expType uint32, data []byte) error {
	if expType == f.expType {
		return nil
	}
	return f.Memory.Experimenter(expType, data)
}

// recordingPort wraps the reference Port collaborator to record
// whether Experimenter was invoked, regardless of what it returns.
type recordingPort struct {
	*port.Memory
	called *bool
}

func (p recordingPort) Experimenter(expType uint32, data []byte) error {
	*p.called = true
	return p.Memory.Experimenter(expType, data)
}

// Scenario: forwarding already claims the experimenter message, but
// port must still be given a chance to see it — the fan-out never
// short-circuits on the first success.
func TestExperimenterFanOutCallsPortEvenWhenForwardingHandles(t *testing.T) {
	fwd := fwdHandlesOne{Memory: forwarding.NewMemory(), expType: 0x2}
	called := false
	prt := recordingPort{Memory: port.NewMemory(), called: &called}
	conn := connection.NewMemory()

	sm := NewStateManager(flowtable.New(), fwd, prt, conn, of.SequentialRunner{}, nil, nil)
	disp := NewDispatcher(sm)

	var buf bytes.Buffer
	exp := &ofp.Experimenter{Experimenter: 0x1, ExpType: 0x2}
	exp.WriteTo(&buf)

	req, err := of.NewRequest(of.TypeExperiment, &buf)
	require.NoError(t, err)
	req.Header.XID = 57

	disp.Serve(nil, req)

	assert.True(t, called, "port must still be invoked even though forwarding already claimed the message")
	assert.Empty(t, conn.Errors(0))
}

// Scenario: a BSN set_ip_mask followed by a get_ip_mask_request against
// the same index round-trips the installed mask.
func TestBSNSetIPMaskThenGetIPMaskRoundTrip(t *testing.T) {
	env := newTestEnv()

	var setBuf bytes.Buffer
	setHdr := &ofp.Experimenter{Experimenter: ofp.BSNExperimenterID, ExpType: ofp.BSNExpTypeSetIPMask}
	setHdr.WriteTo(&setBuf)
	setBody := &ofp.BSNSetIPMask{Index: 3, Mask: 0xffffff00}
	setBody.WriteTo(&setBuf)

	setReq, err := of.NewRequest(of.TypeExperiment, &setBuf)
	require.NoError(t, err)
	setReq.Header.XID = 10
	env.disp.Serve(nil, setReq)

	assert.Empty(t, env.conn.Errors(0), "set_ip_mask must not error")

	var getBuf bytes.Buffer
	getHdr := &ofp.Experimenter{Experimenter: ofp.BSNExperimenterID, ExpType: ofp.BSNExpTypeGetIPMaskRequest}
	getHdr.WriteTo(&getBuf)
	getBody := &ofp.BSNGetIPMaskRequest{Index: 3}
	getBody.WriteTo(&getBuf)

	getReq, err := of.NewRequest(of.TypeExperiment, &getBuf)
	require.NoError(t, err)
	getReq.Header.XID = 11
	env.disp.Serve(nil, getReq)

	replies := env.conn.Replies(0)
	require.Len(t, replies, 1)
	assert.Equal(t, uint32(11), replies[0].XID)

	var out bytes.Buffer
	_, err = replies[0].Body.WriteTo(&out)
	require.NoError(t, err)

	var gotHdr ofp.Experimenter
	_, err = gotHdr.ReadFrom(&out)
	require.NoError(t, err)
	assert.Equal(t, ofp.BSNExpTypeGetIPMaskReply, gotHdr.ExpType)

	var gotBody ofp.BSNGetIPMaskReply
	_, err = gotBody.ReadFrom(&out)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), gotBody.Index)
	assert.Equal(t, uint32(0xffffff00), gotBody.Mask)
}

// Scenario: an echo request is answered with an echo reply carrying
// the same data, for controller liveness checks.
func TestEchoRequestRepliesWithSameData(t *testing.T) {
	env := newTestEnv()

	echo := &ofp.EchoRequest{Data: []byte("ping")}
	var buf bytes.Buffer
	echo.WriteTo(&buf)

	req, err := of.NewRequest(of.TypeEchoRequest, &buf)
	require.NoError(t, err)
	req.Header.XID = 42

	env.disp.Serve(nil, req)

	replies := env.conn.Replies(0)
	require.Len(t, replies, 1)
	assert.Equal(t, uint32(42), replies[0].XID)

	var out bytes.Buffer
	_, err = replies[0].Body.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, "ping", out.String())
}

// Scenario: a message type with no registered handler reports
// BadRequest/BadType rather than panicking.
func TestDispatchUnhandledType(t *testing.T) {
	env := newTestEnv()

	req, err := of.NewRequest(of.TypeMeterMod, nil)
	require.NoError(t, err)
	req.Header.XID = 77
	req.Body = bytes.NewReader(nil)

	env.disp.Serve(nil, req)

	errs := env.conn.Errors(0)
	require.Len(t, errs, 1)
	assert.Equal(t, ofp.ErrTypeBadRequest, errs[0].Type)
	assert.Equal(t, ofp.ErrCodeBadRequestBadType, errs[0].Code)
}
