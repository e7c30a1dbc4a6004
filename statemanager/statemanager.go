package statemanager

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/forwarding"
	"github.com/netrack/ofagent/internal/agentlog"
	"github.com/netrack/ofagent/ofp"
	"github.com/netrack/ofagent/port"
)

// ipMaskTableSize is the fixed entry count of the vendor IP-mask table
// (one slot per possible IPv4 mask index), carried over from
// handlers.c's OFDPA-style set-ip-mask vendor extension.
const ipMaskTableSize = 256

// AgentConfig is the switch-wide configuration mutated only by
// set-config and read by every other handler.
type AgentConfig struct {
	Flags        ofp.ConfigFlag
	MissSendLength uint16
}

// IpMaskTable is the vendor IP-mask extension table: a fixed 256-entry
// array of subnet masks, indexed by the mask id the experimenter
// message names. It has no OpenFlow-standard analogue; handlers.c
// exposes it through the experimenter command path.
type IpMaskTable [ipMaskTableSize]uint32

// StateManager is the explicitly-constructed core this package builds
// around, replacing the process-wide globals (ind_core_ft,
// ind_core_of_config, next_flow_id, next_xid) the original design
// names as a redesign target (see DESIGN.md). No method on StateManager
// or its collaborators reaches for package-level mutable state.
type StateManager struct {
	table *flowtable.Table

	fwd  forwarding.Forwarding
	prt  port.Port
	conn connection.Conn

	runner runnerFunc

	config      AgentConfig
	ipMaskTable IpMaskTable

	log *agentlog.Logger

	metrics *metrics
	mutator *flowMutator
}

// runnerFunc lets tests swap in a call-now runner without importing the
// of package's concrete Runner types into every call site.
type runnerFunc interface {
	Run(func())
}

// NewStateManager wires a flow table and its collaborators into a
// StateManager. reg may be nil to skip Prometheus registration (used by
// tests that don't care about metrics).
func NewStateManager(table *flowtable.Table, fwd forwarding.Forwarding, prt port.Port, conn connection.Conn, runner runnerFunc, log *agentlog.Logger, reg prometheus.Registerer) *StateManager {
	if log == nil {
		log = agentlog.Discard()
	}

	sm := &StateManager{
		table:  table,
		fwd:    fwd,
		prt:    prt,
		conn:   conn,
		runner: runner,
		log:    log,
	}

	sm.metrics = newMetrics(reg, table)
	sm.mutator = newFlowMutator(sm)
	return sm
}

// Config returns a copy of the current switch configuration.
func (sm *StateManager) Config() AgentConfig {
	return sm.config
}

// SetConfig installs a new switch configuration, per the set-config
// handler's single-writer contract.
func (sm *StateManager) SetConfig(cfg AgentConfig) {
	sm.config = cfg
}

// IpMask returns the subnet mask registered at index i, or 0 if unset.
func (sm *StateManager) IpMask(i uint8) uint32 {
	return sm.ipMaskTable[i]
}

// SetIpMask registers mask at index i.
func (sm *StateManager) SetIpMask(i uint8, mask uint32) {
	sm.ipMaskTable[i] = mask
}
