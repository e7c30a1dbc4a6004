package statemanager

import "github.com/netrack/ofagent/flowtable"

// spawnIterTask is the async iterator driver (C4): a thin wrapper around
// the flow table's own SpawnIterTask that applies the state manager's
// configured Runner and the one fragile edge named in the component
// design — if submission itself fails, the terminal callback is never
// invoked; the failure is logged here and no error is returned to the
// caller.
//
// Every C3/C5 caller goes through this function rather than the table
// directly, so the runner and the submission-failure log line live in
// exactly one place.
func (sm *StateManager) spawnIterTask(q flowtable.MetaMatch, cb flowtable.IterCallback) {
	if err := sm.table.SpawnIterTask(q, cb, sm.runner); err != nil {
		sm.log.Warn("failed to spawn iterator task", "err", err)
	}
}
