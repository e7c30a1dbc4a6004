// Package connection defines the connection-manager collaborator the
// state manager sends replies and errors through, and a simple
// in-memory broker reference implementation. Socket I/O itself belongs
// to the of package's Server/Conn machinery and is explicitly out of
// scope here: this package only fixes the send/send_error call shape
// asynchronous iterator tasks and simple handlers depend on.
package connection

import (
	"io"
	"sync"

	"github.com/netrack/ofagent/ofp"
)

// Message is an outbound reply or notification, addressed to a
// connection id rather than a live *of.Request/ResponseWriter pair,
// since iterator tasks emit replies well after the request that
// spawned them has returned.
type Message struct {
	Version uint8
	Type    uint8
	XID     uint32
	Body    io.WriterTo
}

// ErrorMessage is an outbound OpenFlow error.
type ErrorMessage struct {
	Version uint8
	XID     uint32
	Type    ofp.ErrType
	Code    ofp.ErrCode
	Data    []byte
}

// Conn is the connection-manager collaborator consumed by the state
// manager.
type Conn interface {
	// Send delivers reply to the connection identified by cxnID. A
	// disconnected or unknown cxnID is not an error: per the
	// concurrency model, sends after disconnect are silently dropped.
	Send(cxnID uint64, reply *Message) error

	// SendError delivers an OpenFlow error message.
	SendError(cxnID uint64, err *ErrorMessage) error
}

// Memory is a Conn implementation that records every send for
// inspection by tests, instead of writing to a real socket.
type Memory struct {
	mu sync.Mutex

	replies map[uint64][]*Message
	errors  map[uint64][]*ErrorMessage

	// Live controls whether Send/SendError record the message.
	// Connections absent from Live (or explicitly set to false) behave
	// as disconnected: sends succeed but are dropped, mirroring the
	// "silently dropped after disconnect" rule.
	Live map[uint64]bool
}

// NewMemory returns an empty Memory connection broker. Every cxnID is
// considered live unless explicitly marked otherwise via Live.
func NewMemory() *Memory {
	return &Memory{
		replies: make(map[uint64][]*Message),
		errors:  make(map[uint64][]*ErrorMessage),
		Live:    make(map[uint64]bool),
	}
}

func (m *Memory) isLive(cxnID uint64) bool {
	live, ok := m.Live[cxnID]
	return !ok || live
}

func (m *Memory) Send(cxnID uint64, reply *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isLive(cxnID) {
		return nil
	}

	m.replies[cxnID] = append(m.replies[cxnID], reply)
	return nil
}

func (m *Memory) SendError(cxnID uint64, err *ErrorMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isLive(cxnID) {
		return nil
	}

	m.errors[cxnID] = append(m.errors[cxnID], err)
	return nil
}

// Replies returns every reply sent to cxnID, in send order.
func (m *Memory) Replies(cxnID uint64) []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Message(nil), m.replies[cxnID]...)
}

// Errors returns every error sent to cxnID, in send order.
func (m *Memory) Errors(cxnID uint64) []*ErrorMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ErrorMessage(nil), m.errors[cxnID]...)
}

// Disconnect marks cxnID as no longer live; subsequent sends are
// dropped.
func (m *Memory) Disconnect(cxnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Live[cxnID] = false
}

var _ Conn = (*Memory)(nil)
