package session

import (
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// Store is the many-readers/one-writer registry of GatewaySession records,
// keyed by session id (§3, §5: "many readers / one writer" discipline).
// The RWMutex guards the maps; the records themselves are canonical,
// shared structs whose field access is serialized by Manager's lock —
// Manager copies them before handing any out.
type Store struct {
	mu       sync.RWMutex
	sessions map[model.SessionId]*GatewaySession
	queues   map[model.SessionId][]QueuedCommand
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[model.SessionId]*GatewaySession),
		queues:   make(map[model.SessionId][]QueuedCommand),
	}
}

// Put inserts or replaces a session record.
func (s *Store) Put(sess *GatewaySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns the session record, or nil if unknown.
func (s *Store) Get(id model.SessionId) *GatewaySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete removes a session record and its queue.
func (s *Store) Delete(id model.SessionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.queues, id)
}

// All returns a snapshot slice of every session record.
func (s *Store) All() []*GatewaySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*GatewaySession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of tracked sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Enqueue appends a command to a session's deferred queue.
func (s *Store) Enqueue(cmd QueuedCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[cmd.SessionID] = append(s.queues[cmd.SessionID], cmd)
}

// DrainQueue atomically removes and returns a session's queued commands, in
// FIFO order, leaving the queue empty (§4.4, §4.5: exactly-once replay).
func (s *Store) DrainQueue(id model.SessionId) []QueuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.queues[id]
	delete(s.queues, id)
	return cmds
}

// Requeue puts commands back at the front of a session's queue — used when
// a reconnect fails mid-drain and the manager must not lose commands (§5).
func (s *Store) Requeue(id model.SessionId, cmds []QueuedCommand) {
	if len(cmds) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id] = append(append([]QueuedCommand{}, cmds...), s.queues[id]...)
}
