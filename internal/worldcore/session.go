// Package worldcore is the World dispatch core (spec.md §4.8): it binds a
// Gateway session to an account and avatar, tracks per-session state, and
// routes input into the in-memory entity store (internal/world), emitting
// GameOutput back through internal/rpcworld. It implements
// rpcworld.Dispatcher.
package worldcore

import (
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// State is the World-side per-session state machine (§4.8), distinct from
// the Gateway's own GatewaySession.State (internal/session.State).
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateCharacterCreation
	StatePlaying
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateCharacterCreation:
		return "character_creation"
	case StatePlaying:
		return "playing"
	case StateEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// EditingContext is the active field-write target while a session is in
// StateEditing (§4.8), generalized from
// original_source/server/src/ecs/components/persistence.rs's
// apply-then-mark-dirty-then-persist pattern.
type EditingContext struct {
	ObjectType string // "avatar" | "property"
	ObjectID   string
	Field      string
	Title      string
	Buffer     string
}

// ServerSession is the World's view of one Gateway session (§4.3 "ServerSession").
// Created lazily on first send_input/authenticate_session for a session id
// never seen before; not destroyed on disconnect — only a gateway-signalled
// terminal close (outside this package's scope) removes it, so that
// deferred_events survive a reconnect.
type ServerSession struct {
	SessionID model.SessionId
	State     State

	AccountID *model.PersistentEntityId
	EntityID  *model.PersistentEntityId
	Handle    world.Handle
	Role      model.AccountRole

	PendingUsername string         // credential-step scratch (Unauthenticated)
	PendingAccount  *model.Account // password verified, awaiting MFA code
	Avatars         []model.AvatarSummary

	Builder *CharacterBuilder
	Editing *EditingContext

	// DeferredEvents accumulates GameOutput produced while the Gateway
	// connection for this session was not alive (§4.6/§4.8); drained on
	// the next session_reconnected.
	DeferredEvents []model.GameOutput

	// PendingEntityEvents accumulates out-of-band structured updates
	// (char.vitals, room.info) a dispatch produced, drained by
	// DrainEntityEvents and pushed as world.entity_state_changed.
	PendingEntityEvents []model.EntityEvent
}

// Table is the World's session registry, guarded by one Mutex — sessions
// mutate in place like internal/session.Manager's GatewaySession table.
type Table struct {
	mu       sync.Mutex
	sessions map[model.SessionId]*ServerSession
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[model.SessionId]*ServerSession)}
}

// GetOrCreate returns the ServerSession for id, creating a fresh
// Unauthenticated one if none exists yet.
func (t *Table) GetOrCreate(id model.SessionId) *ServerSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[id]
	if !ok {
		sess = &ServerSession{SessionID: id, State: StateUnauthenticated}
		t.sessions[id] = sess
	}
	return sess
}

// Get returns the ServerSession for id, or nil if none exists.
func (t *Table) Get(id model.SessionId) *ServerSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[id]
}

// Delete removes a session entirely (gateway-signalled terminal close).
func (t *Table) Delete(id model.SessionId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Count returns the number of tracked sessions.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
