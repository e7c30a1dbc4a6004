// Package port defines the port/queue collaborator the state manager
// delegates port configuration and queue inspection to, and a simple
// in-memory reference implementation.
package port

import (
	"sync"

	"github.com/netrack/ofagent/internal/agenterr"
	"github.com/netrack/ofagent/ofp"
)

// Port is the port/queue collaborator consumed by the request
// dispatcher's simple handlers and the experimenter fan-out.
type Port interface {
	PortModify(mod *ofp.PortMod) error
	PortStatsGet(req *ofp.PortStatsRequest) ([]ofp.PortStats, error)

	QueueConfigGet(req *ofp.QueueGetConfigRequest) (*ofp.QueueGetConfigReply, error)
	QueueStatsGet(req *ofp.QueueStatsRequest) ([]ofp.QueueStats, error)

	// PortDescStatsGet fills a multipart reply body with one Port per
	// configured port.
	PortDescStatsGet() ([]ofp.Port, error)

	// PortFeaturesGet fills in the port-owned fields of a features
	// reply (advertised/supported/peer bitmaps live per-port, but the
	// aggregate feature reply only carries table/capability fields in
	// this core; kept for symmetry with Forwarding.FeaturesGet).
	PortFeaturesGet(reply *ofp.SwitchFeatures) error

	Experimenter(expType uint32, data []byte) error
}

// Memory is a reference Port implementation with static replies and a
// small table of per-port counters, zeroed by AddPort and not otherwise
// changed.
type Memory struct {
	mu sync.Mutex

	Ports []ofp.Port

	stats map[ofp.PortNo]ofp.PortStats
}

// NewMemory returns a Memory port collaborator with no configured
// ports.
func NewMemory() *Memory {
	return &Memory{stats: make(map[ofp.PortNo]ofp.PortStats)}
}

// AddPort registers a static port description and zeroes its counters.
func (m *Memory) AddPort(p ofp.Port) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Ports = append(m.Ports, p)
	m.stats[p.PortNo] = ofp.PortStats{PortNo: p.PortNo}
}

func (m *Memory) PortModify(mod *ofp.PortMod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Ports {
		if m.Ports[i].PortNo == mod.PortNo {
			m.Ports[i].Config = mod.Config
			return nil
		}
	}
	return agenterr.New(agenterr.NotFound, "no such port")
}

func (m *Memory) PortStatsGet(req *ofp.PortStatsRequest) ([]ofp.PortStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.PortNo == ofp.PortAny {
		out := make([]ofp.PortStats, 0, len(m.stats))
		for _, s := range m.stats {
			out = append(out, s)
		}
		return out, nil
	}

	s, ok := m.stats[req.PortNo]
	if !ok {
		return nil, agenterr.New(agenterr.NotFound, "no such port")
	}
	return []ofp.PortStats{s}, nil
}

// QueueConfigGet always reports no queues configured: queue management
// is a port/hardware concern this reference implementation does not
// model.
func (m *Memory) QueueConfigGet(req *ofp.QueueGetConfigRequest) (*ofp.QueueGetConfigReply, error) {
	return &ofp.QueueGetConfigReply{Port: req.Port}, nil
}

func (m *Memory) QueueStatsGet(req *ofp.QueueStatsRequest) ([]ofp.QueueStats, error) {
	return nil, nil
}

func (m *Memory) PortDescStatsGet() ([]ofp.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ofp.Port, len(m.Ports))
	copy(out, m.Ports)
	return out, nil
}

func (m *Memory) PortFeaturesGet(reply *ofp.SwitchFeatures) error {
	return nil
}

func (m *Memory) Experimenter(expType uint32, data []byte) error {
	return agenterr.New(agenterr.NotSupported, "memory port has no experimenter extensions")
}

var _ Port = (*Memory)(nil)
