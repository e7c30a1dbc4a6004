package flowtable

import (
	"math"
	"testing"
	"time"

	"github.com/netrack/ofagent/ofp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(id uint64, prio uint16) *Entry {
	return &Entry{
		FlowID:     id,
		Table:      0,
		Priority:   prio,
		InsertTime: time.Now(),
	}
}

func TestNextFlowIDSkipsZeroAndReuses(t *testing.T) {
	tbl := New()

	id := tbl.NextFlowID()
	require.NotZero(t, id)

	e := newEntry(id, 1)
	tbl.Add(e)
	tbl.Remove(e)

	reused := tbl.NextFlowID()
	assert.Equal(t, id, reused, "a freed flow id should be recycled before minting a new one")
}

func TestNextFlowIDWrapsPastMax(t *testing.T) {
	tbl := New()
	tbl.ids.next = math.MaxUint64 - 1

	id := tbl.NextFlowID()
	require.Equal(t, uint64(math.MaxUint64), id)

	wrapped := tbl.NextFlowID()
	assert.Equal(t, uint64(1), wrapped, "minting past the maximum must skip zero and resume at 1")
}

func TestStrictMatchUnique(t *testing.T) {
	tbl := New()

	m := ofp.Match{Type: ofp.MatchTypeXM}

	id := tbl.NextFlowID()
	e := &Entry{FlowID: id, Table: 0, Match: m, Priority: 100, InsertTime: time.Now()}
	tbl.Add(e)

	found, ok := tbl.StrictMatch(MetaMatch{Match: m, Priority: 100, OutPort: ofp.PortAny, OutGroup: ofp.GroupAny})
	require.True(t, ok)
	assert.Equal(t, id, found.FlowID)

	_, ok = tbl.StrictMatch(MetaMatch{Match: m, Priority: 200, OutPort: ofp.PortAny, OutGroup: ofp.GroupAny})
	assert.False(t, ok, "a strict match at a different priority must not hit")
}

func TestIterTaskVisitsEachMatchThenSentinel(t *testing.T) {
	tbl := New()

	for i := 0; i < 3; i++ {
		id := tbl.NextFlowID()
		tbl.Add(newEntry(id, uint16(i)))
	}

	var seen []uint64
	done := false

	err := tbl.SpawnIterTask(MetaMatch{Mode: NonStrict, OutPort: ofp.PortAny, OutGroup: ofp.GroupAny}, func(e *Entry) {
		if e == nil {
			done = true
			return
		}
		require.False(t, done, "sentinel must be the last callback invocation")
		seen = append(seen, e.FlowID)
	}, nil)

	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, seen, 3)
}

func TestCurrentCountAndForwardingAddErrors(t *testing.T) {
	tbl := New()
	assert.Equal(t, 0, tbl.CurrentCount())

	id := tbl.NextFlowID()
	tbl.Add(newEntry(id, 1))
	assert.Equal(t, 1, tbl.CurrentCount())

	tbl.IncrForwardingAddErrors()
	tbl.IncrForwardingAddErrors()
	assert.Equal(t, uint64(2), tbl.ForwardingAddErrors())
}
