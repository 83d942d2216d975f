package reconnect

import (
	"fmt"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/session"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// Manager coordinates reconnection tokens against a session.Manager.
// Grounded in reconnection.rs's ReconnectionManager, adapted to this repo's
// session manager API names (generate_token, prepare_reconnection,
// reconnect, validate_token, queue_command).
type Manager struct {
	sessions *session.Manager
	tokenTTL time.Duration
}

// NewManager returns a Manager backed by sessions, issuing tokens with the
// given TTL.
func NewManager(sessions *session.Manager, tokenTTL time.Duration) *Manager {
	return &Manager{sessions: sessions, tokenTTL: tokenTTL}
}

// Result is what a successful Reconnect returns: the session id, the
// commands queued during the outage (to replay, in order), and the current
// session record.
type Result struct {
	SessionID      model.SessionId
	QueuedCommands []session.QueuedCommand
	Session        *session.GatewaySession
}

// GenerateToken issues a token for id. Only sessions in Playing or
// Disconnected are reconnectable (§4.5).
func (m *Manager) GenerateToken(id model.SessionId) (Token, error) {
	sess, err := m.sessions.GetSession(id)
	if err != nil {
		return Token{}, err
	}
	if sess.State != session.Playing && sess.State != session.Disconnected {
		return Token{}, fmt.Errorf("session %s not reconnectable from %s: %w", id, sess.State, wyerr.InvalidState)
	}
	return NewToken(id, m.tokenTTL)
}

// PrepareReconnection is the controlled teardown path: transitions
// Playing → Disconnected and returns a fresh token. After this call, input
// the Gateway routes for id must be queued, not forwarded (§4.5).
func (m *Manager) PrepareReconnection(id model.SessionId) (Token, error) {
	if err := m.sessions.TransitionSession(id, session.Disconnected); err != nil {
		return Token{}, err
	}
	return m.GenerateToken(id)
}

// Reconnect validates tok, requires the session be Disconnected, atomically
// drains its queued commands, and transitions it back to Playing.
func (m *Manager) Reconnect(tok Token) (Result, error) {
	if tok.IsExpired() {
		return Result{}, fmt.Errorf("token for session %s: %w", tok.SessionID, wyerr.Expired)
	}

	sess, err := m.sessions.GetSession(tok.SessionID)
	if err != nil {
		return Result{}, err
	}
	if sess.State != session.Disconnected {
		return Result{}, fmt.Errorf("session %s not reconnectable from %s: %w", tok.SessionID, sess.State, wyerr.InvalidState)
	}

	queued := m.sessions.GetAndClearQueuedCommands(tok.SessionID)

	if err := m.sessions.TransitionSession(tok.SessionID, session.Playing); err != nil {
		// Reconnection failed mid-drain: don't lose the commands (§5).
		m.sessions.RequeueCommands(tok.SessionID, queued)
		return Result{}, err
	}

	// Re-fetch: sess is a snapshot from before the transition.
	updated, err := m.sessions.GetSession(tok.SessionID)
	if err != nil {
		return Result{}, err
	}
	return Result{SessionID: tok.SessionID, QueuedCommands: queued, Session: updated}, nil
}

// ValidateToken decodes and checks tok without consuming it — used by
// callers that only need to know which session a presented token names.
func (m *Manager) ValidateToken(encoded string) (model.SessionId, error) {
	tok, err := DecodeToken(encoded)
	if err != nil {
		return model.SessionId{}, err
	}
	sess, err := m.sessions.GetSession(tok.SessionID)
	if err != nil {
		return model.SessionId{}, err
	}
	if sess.State != session.Disconnected && sess.State != session.Playing {
		return model.SessionId{}, fmt.Errorf("session %s not reconnectable from %s: %w", tok.SessionID, sess.State, wyerr.InvalidState)
	}
	return tok.SessionID, nil
}

// QueueCommand defers text for a disconnected session.
func (m *Manager) QueueCommand(id model.SessionId, text string) {
	m.sessions.QueueCommand(id, text)
}
