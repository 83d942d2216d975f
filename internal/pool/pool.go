package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/protocol"
	"github.com/huhlig/wyldlands-gw/internal/session"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// DropCounter is an optional hook the pool calls whenever a mailbox-full
// drop happens, so internal/metrics can expose it as a counter without this
// package importing prometheus directly.
type DropCounter func(sessionID model.SessionId)

// Pool is the Gateway's single source of truth for live client endpoints
// (§4.3). Guarded by an RWMutex per the fixed pool→store→cache lock
// acquisition order (§5); callers that also touch the session store must
// acquire this pool's lock first.
type Pool struct {
	log      *slog.Logger
	capacity int
	onDrop   DropCounter

	mu    sync.RWMutex
	conns map[model.SessionId]*Connection
}

// New returns an empty Pool. capacity bounds every connection's mailbox.
func New(log *slog.Logger, capacity int, onDrop DropCounter) *Pool {
	if capacity <= 0 {
		capacity = 256
	}
	return &Pool{log: log, capacity: capacity, onDrop: onDrop, conns: make(map[model.SessionId]*Connection)}
}

// Register adds a new connection and starts its write-loop goroutine. Fails
// if the session id is already registered (§4.3).
func (p *Pool) Register(ctx context.Context, id model.SessionId, proto session.Protocol, adapter protocol.Adapter) error {
	p.mu.Lock()
	if _, exists := p.conns[id]; exists {
		p.mu.Unlock()
		return fmt.Errorf("register session %s: %w", id, wyerr.InvalidState)
	}
	conn := newConnection(id, proto, adapter, p.capacity)
	p.conns[id] = conn
	p.mu.Unlock()

	go conn.runLoop(ctx, p.log, func() { p.Unregister(id) })
	return nil
}

// Send enqueues out for session id. Never blocks; a full mailbox is
// reported as wyerr.Full and the output is dropped, per §4.3/§5.
func (p *Pool) Send(id model.SessionId, out model.GameOutput) error {
	p.mu.RLock()
	conn, ok := p.conns[id]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to session %s: %w", id, wyerr.NotFound)
	}
	if !conn.enqueue(out) {
		if p.onDrop != nil {
			p.onDrop(id)
		}
		p.log.Warn("mailbox full, dropping output", "session_id", id)
		return fmt.Errorf("send to session %s: %w", id, wyerr.Full)
	}
	return nil
}

// Broadcast best-effort fans out to every connection. Per-recipient
// failures are logged, not propagated — a single slow client never aborts
// the broadcast (§4.3).
func (p *Pool) Broadcast(out model.GameOutput) {
	p.mu.RLock()
	ids := make([]model.SessionId, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	for _, id := range ids {
		if err := p.Send(id, out); err != nil {
			p.log.Debug("broadcast skipped recipient", "session_id", id, "error", err)
		}
	}
}

// Unregister removes a connection and closes its adapter. Idempotent: a
// second call for the same id is a no-op that reports NotFound rather than
// re-closing anything (§8).
func (p *Pool) Unregister(id model.SessionId) error {
	p.mu.Lock()
	conn, ok := p.conns[id]
	if ok {
		delete(p.conns, id)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("unregister session %s: %w", id, wyerr.NotFound)
	}
	conn.stop()
	if err := conn.Adapter.Close(); err != nil {
		p.log.Debug("adapter close error", "session_id", id, "error", err)
	}
	return nil
}

// ActiveSessions returns the session ids of every registered connection.
func (p *Pool) ActiveSessions() []model.SessionId {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.SessionId, 0, len(p.conns))
	for id := range p.conns {
		out = append(out, id)
	}
	return out
}

// ConnectionCount returns the number of registered connections.
func (p *Pool) ConnectionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// IsAlive reports whether a session's underlying adapter is still live.
func (p *Pool) IsAlive(id model.SessionId) bool {
	p.mu.RLock()
	conn, ok := p.conns[id]
	p.mu.RUnlock()
	return ok && conn.Adapter.IsAlive()
}
