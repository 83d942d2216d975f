package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// Manager operates transactionally over a Store, linearizing per-session
// operations the way the spec's session manager contract (§4.4) requires.
// One mutex per manager rather than per session: sessions are short-lived
// enough (create/transition/touch) that a single lock never becomes a
// bottleneck, and it keeps cleanup_expired's full sweep simple — matching
// the teacher's own SessionManager, which likewise linearizes all session
// bookkeeping behind one guard.
//
// Every record handed out (CreateSession, GetSession, ActiveSessions) is a
// snapshot copied under the lock, never the canonical struct: the cleanup
// sweep and RPC-driven transitions mutate State from other goroutines, so
// sharing the live pointer would race. Writes go back through
// UpdateSession or the transition methods.
type Manager struct {
	store *Store
	mu    sync.Mutex
}

// NewManager returns a Manager over a fresh Store.
func NewManager() *Manager {
	return &Manager{store: NewStore()}
}

// CreateSession registers a new session in the Connecting state and returns
// a snapshot of it.
func (m *Manager) CreateSession(proto Protocol, addr string) *GatewaySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	sess := &GatewaySession{
		ID:           model.NewSessionId(),
		CreatedAt:    now,
		LastActivity: now,
		State:        Connecting,
		Protocol:     proto,
		ClientAddr:   addr,
	}
	m.store.Put(sess)
	cp := *sess
	return &cp
}

// GetSession returns a snapshot of the session record, or NotFound. Field
// edits on the snapshot take effect only via UpdateSession.
func (m *Manager) GetSession(id model.SessionId) (*GatewaySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.store.Get(id)
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", id, wyerr.NotFound)
	}
	cp := *sess
	return &cp, nil
}

// UpdateSession replaces a session's record wholesale (e.g. after binding
// EntityID or refreshing Metadata).
func (m *Manager) UpdateSession(sess *GatewaySession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.store.Put(&cp)
}

// TouchSession bumps last_activity to now.
func (m *Manager) TouchSession(id model.SessionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.store.Get(id)
	if sess == nil {
		return fmt.Errorf("session %s: %w", id, wyerr.NotFound)
	}
	sess.LastActivity = time.Now()
	return nil
}

// TransitionSession enforces the state machine (§4.2) and bumps
// last_activity on every successful transition.
func (m *Manager) TransitionSession(id model.SessionId, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.store.Get(id)
	if sess == nil {
		return fmt.Errorf("session %s: %w", id, wyerr.NotFound)
	}
	if !CanTransition(sess.State, to) {
		return fmt.Errorf("session %s: %s -> %s: %w", id, sess.State, to, wyerr.InvalidState)
	}
	sess.State = to
	sess.LastActivity = time.Now()
	return nil
}

// CleanupExpired sweeps every non-Closed session past timeout and closes
// it, returning the ids closed so the caller can signal the RPC client
// (session_disconnected, §4.4).
func (m *Manager) CleanupExpired(timeout time.Duration) []model.SessionId {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var closed []model.SessionId
	for _, sess := range m.store.All() {
		if sess.State == Closed {
			continue
		}
		if sess.IsExpired(timeout, now) {
			sess.State = Closed
			sess.LastActivity = now
			closed = append(closed, sess.ID)
		}
	}
	return closed
}

// QueueCommand appends text to a session's deferred command queue, used
// while the session is Disconnected.
func (m *Manager) QueueCommand(id model.SessionId, text string) {
	m.store.Enqueue(QueuedCommand{SessionID: id, Text: text, QueuedAt: time.Now()})
}

// GetAndClearQueuedCommands atomically drains a session's queue.
func (m *Manager) GetAndClearQueuedCommands(id model.SessionId) []QueuedCommand {
	return m.store.DrainQueue(id)
}

// RequeueCommands restores commands to the front of the queue — used when a
// reconnect's drain fails partway through (§5: "must re-queue remaining
// commands").
func (m *Manager) RequeueCommands(id model.SessionId, cmds []QueuedCommand) {
	m.store.Requeue(id, cmds)
}

// ActiveSessions returns a snapshot of every tracked session.
func (m *Manager) ActiveSessions() []*GatewaySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := m.store.All()
	out := make([]*GatewaySession, 0, len(live))
	for _, sess := range live {
		cp := *sess
		out = append(out, &cp)
	}
	return out
}
