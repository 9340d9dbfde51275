// Package results implements the two peek-result sinks spec.md §6
// names: Local, an in-process registry keyed by connection id, and
// Remote, an HTTP POST to a configured endpoint (remote.go).
package results

import (
	"sync"

	"dataflowd/internal/dataflow"
)

// Mux is the Local sink: a registry keyed by connection_uuid yielding
// the channel the client registered. Delivery never blocks: a send
// that finds the channel full is dropped, so results are not buffered
// beyond that channel's own capacity. It is adapted from the
// teacher's internal/eventbus.Bus, re-keyed from event type to
// connection id and narrowed from one-to-many broadcast to one
// registrant per connection, since at most one client is ever waiting
// on a given connection_uuid.
type Mux struct {
	mu      sync.RWMutex
	clients map[dataflow.ConnID]chan<- []dataflow.Row
}

// NewMux returns an empty Local sink registry.
func NewMux() *Mux {
	return &Mux{clients: make(map[dataflow.ConnID]chan<- []dataflow.Row)}
}

// Register associates conn with ch: future Deliver calls for conn are
// sent to ch. The caller owns ch's buffer capacity; a slow receiver
// has its delivery dropped rather than blocking the worker.
func (m *Mux) Register(conn dataflow.ConnID, ch chan<- []dataflow.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[conn] = ch
}

// Unregister removes conn from the registry. It does not close ch;
// that is the caller's responsibility.
func (m *Mux) Unregister(conn dataflow.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, conn)
}

// Deliver sends rows to conn's registered channel, if any. Per spec
// §6/§7, a receiver that has disappeared is silently dropped: this
// never returns an error, since a Local delivery failure is never
// fatal to the worker.
func (m *Mux) Deliver(conn dataflow.ConnID, exprName string, timestamp dataflow.Timestamp, rows []dataflow.Row) error {
	m.mu.RLock()
	ch, ok := m.clients[conn]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case ch <- rows:
	default:
		// The sender is allowed to disappear (or fall behind) at any
		// time; error handling here is deliberately relaxed.
	}
	return nil
}
