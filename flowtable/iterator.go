package flowtable

import (
	of "github.com/netrack/ofagent"
)

// IterCallback is invoked once per entry matching the task's query,
// and then exactly once more with a nil entry marking the end of the
// scan. It must not add or remove entries other than the one it is
// currently visiting.
type IterCallback func(entry *Entry)

// SpawnIterTask schedules an asynchronous scan of the table against
// query on runner. The set of matching entries is captured when the task
// is spawned, and the whole scan (every callback plus the nil sentinel)
// is handed to runner as a single function: under a SequentialRunner it
// runs to completion before SpawnIterTask returns, and under any runner
// two callbacks for the same task never run at once.
//
// SpawnIterTask always succeeds: building the snapshot of matching
// entries cannot fail in this in-memory implementation. Callers written
// against the external interface should still treat submission as
// fallible, since a future table backed by real storage may not be
// able to make the same guarantee.
func (t *Table) SpawnIterTask(q MetaMatch, cb IterCallback, runner of.Runner) error {
	if runner == nil {
		runner = of.SequentialRunner{}
	}

	matched := make([]*Entry, 0, len(t.entries))
	t.Iter(func(e *Entry) bool {
		if metaMatch(q, e) {
			matched = append(matched, e)
		}
		return true
	})

	runner.Run(func() {
		for _, e := range matched {
			cb(e)
		}
		cb(nil)
	})

	return nil
}
