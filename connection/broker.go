package connection

import (
	"bytes"
	"hash/fnv"
	"sync"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/ofp"
)

// Broker is the Conn implementation wired into a running server: it
// keeps a registry mapping connection ids to the live of.Conn that
// owns them, so replies raised well after a request's handler has
// returned (chunked stats, async iterator tasks) can still reach the
// connection that asked for them. Dispatcher.connIDFor computes the
// same id from a request's remote address, so a connection registered
// here under IDFor(c) is the one every handler for that connection's
// requests will address.
type Broker struct {
	mu    sync.Mutex
	conns map[uint64]of.Conn
}

// NewBroker returns an empty connection registry.
func NewBroker() *Broker {
	return &Broker{conns: make(map[uint64]of.Conn)}
}

// IDFor derives the connection id for c from its remote address, using
// the same hash the dispatcher applies to an *of.Request's Addr.
func IDFor(c of.Conn) uint64 {
	h := fnv.New64a()
	h.Write([]byte(c.RemoteAddr().String()))
	return h.Sum64()
}

// Register makes c reachable as id for future Send/SendError calls.
func (b *Broker) Register(id uint64, c of.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[id] = c
}

// Unregister drops id, e.g. once its connection has closed. Sends
// addressed to id afterward are silently dropped, same as Memory's
// disconnected-connection behavior.
func (b *Broker) Unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, id)
}

func (b *Broker) conn(id uint64) (of.Conn, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[id]
	return c, ok
}

func (b *Broker) Send(cxnID uint64, reply *Message) error {
	c, ok := b.conn(cxnID)
	if !ok {
		return nil
	}

	var body bytes.Buffer
	if reply.Body != nil {
		if _, err := reply.Body.WriteTo(&body); err != nil {
			return err
		}
	}

	req, err := of.NewRequest(of.Type(reply.Type), &body)
	if err != nil {
		return err
	}
	req.Header.Version = reply.Version
	req.Header.XID = reply.XID

	if err := c.Send(req); err != nil {
		return err
	}
	return c.Flush()
}

func (b *Broker) SendError(cxnID uint64, e *ErrorMessage) error {
	c, ok := b.conn(cxnID)
	if !ok {
		return nil
	}

	var body bytes.Buffer
	errBody := &ofp.Error{Type: e.Type, Code: e.Code, Data: e.Data}
	if _, err := errBody.WriteTo(&body); err != nil {
		return err
	}

	req, err := of.NewRequest(of.TypeError, &body)
	if err != nil {
		return err
	}
	req.Header.Version = e.Version
	req.Header.XID = e.XID

	if err := c.Send(req); err != nil {
		return err
	}
	return c.Flush()
}

var _ Conn = (*Broker)(nil)
