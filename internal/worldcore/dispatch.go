package worldcore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/metrics"
	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/persist"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// Dispatcher is the World dispatch core, implementing rpcworld.Dispatcher.
type Dispatcher struct {
	log       *slog.Logger
	sessions  *Table
	store     persist.Store
	world     *world.World
	commands  map[string]CommandFunc
	startRoom world.RoomID
	metrics   *metrics.Metrics
}

// New returns a Dispatcher. startRoom is where newly created avatars spawn.
// m may be nil, in which case dispatch calls are not instrumented.
func New(log *slog.Logger, store persist.Store, w *world.World, startRoom world.RoomID, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		log:       log,
		sessions:  NewTable(),
		store:     store,
		world:     w,
		startRoom: startRoom,
		metrics:   m,
	}
	d.commands = defaultCommandTable()
	return d
}

// SessionCount returns the number of sessions this Dispatcher is tracking,
// for the World process's active_sessions gauge.
func (d *Dispatcher) SessionCount() int {
	return d.sessions.Count()
}

// gatewayStateFor maps a worldcore dispatch state to the Gateway-facing
// session state name carried over world.session_state_changed, or reports
// false for states the Gateway's own FSM has no corresponding phase for
// (CharacterCreation and Editing are sub-states of the Gateway's single
// CharacterSelection/Playing phases respectively, so no signal is sent).
func gatewayStateFor(s State) (string, bool) {
	switch s {
	case StateAuthenticated:
		return "character_selection", true
	case StatePlaying:
		return "playing", true
	default:
		return "", false
	}
}

// HandleInput implements rpcworld.Dispatcher (§4.8). The returned string is
// a non-empty Gateway-facing state signal whenever this call advanced sess
// into a state the Gateway's own session FSM distinguishes, so the caller
// can forward it as world.session_state_changed and keep GatewaySession.State
// from getting stuck in Authenticating.
func (d *Dispatcher) HandleInput(ctx context.Context, sessionID model.SessionId, text string) ([]model.GameOutput, string, error) {
	if d.metrics != nil {
		start := time.Now()
		defer func() { d.metrics.ObserveDispatch(time.Since(start)) }()
	}

	sess := d.sessions.GetOrCreate(sessionID)
	stateBefore := sess.State

	var (
		out []model.GameOutput
		err error
	)
	switch sess.State {
	case StateUnauthenticated:
		out, err = d.stepUnauthenticated(ctx, sess, text)
	case StateAuthenticated:
		out, err = d.stepAuthenticated(ctx, sess, text)
	case StateCharacterCreation:
		out, err = d.stepCharacterCreation(ctx, sess, text)
	case StatePlaying:
		out, err = d.stepPlaying(ctx, sess, text)
	case StateEditing:
		out, err = d.stepEditing(ctx, sess, text)
	default:
		return nil, "", fmt.Errorf("session %s in unknown state %d", sessionID, sess.State)
	}
	if err != nil {
		return nil, "", fmt.Errorf("dispatching input for session %s: %w", sessionID, err)
	}

	var gatewayState string
	if sess.State != stateBefore {
		if d.metrics != nil {
			d.metrics.ObserveSessionEvent("state_" + sess.State.String())
		}
		gatewayState, _ = gatewayStateFor(sess.State)
	}
	return out, gatewayState, nil
}

// HandleDisconnect implements rpcworld.Dispatcher. The ServerSession is
// deliberately left in the table — per spec.md §4.3, it is destroyed only
// by a gateway-signalled terminal close, which arrives as a reconnection
// window expiring, not as this transient disconnect notice.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, sessionID model.SessionId) {
	d.log.Info("session disconnected", "session_id", sessionID)
}

// Prompt implements rpcworld.Dispatcher: a Playing session gets the
// command prompt after its outputs; the other states carry their prompts
// inside the outputs themselves (Username:, the builder questions, the
// editing preamble), so none is pushed for them.
func (d *Dispatcher) Prompt(ctx context.Context, sessionID model.SessionId) string {
	sess := d.sessions.Get(sessionID)
	if sess == nil || sess.State != StatePlaying {
		return ""
	}
	return "> "
}

// DrainEntityEvents implements rpcworld.Dispatcher: pops the out-of-band
// structured updates accumulated since the last drain.
func (d *Dispatcher) DrainEntityEvents(ctx context.Context, sessionID model.SessionId) []model.EntityEvent {
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil
	}
	events := sess.PendingEntityEvents
	sess.PendingEntityEvents = nil
	return events
}

// DeferOutputs implements rpcworld.Dispatcher: outputs that failed to reach
// the session's Gateway connection are held on the ServerSession and
// re-sent, ahead of any replayed commands, by the next HandleReconnect.
func (d *Dispatcher) DeferOutputs(ctx context.Context, sessionID model.SessionId, outputs []model.GameOutput) {
	sess := d.sessions.GetOrCreate(sessionID)
	sess.DeferredEvents = append(sess.DeferredEvents, outputs...)
}

// HandleReconnect implements rpcworld.Dispatcher: drains deferred_events
// accumulated while the Gateway connection was down, then replays the
// queued commands the Gateway captured during the outage, in order.
func (d *Dispatcher) HandleReconnect(ctx context.Context, sessionID model.SessionId, queuedCommands []string) ([]model.GameOutput, error) {
	sess := d.sessions.GetOrCreate(sessionID)

	out := sess.DeferredEvents
	sess.DeferredEvents = nil

	for _, cmd := range queuedCommands {
		replayed, _, err := d.HandleInput(ctx, sessionID, cmd)
		if err != nil {
			d.log.Warn("replaying queued command failed", "session_id", sessionID, "error", err)
			continue
		}
		out = append(out, replayed...)
	}
	return out, nil
}

// AuthenticateSession implements rpcworld.Dispatcher's explicit
// authenticate_session RPC (§4.6) — the structured-client counterpart to
// the line-based username/password protocol stepUnauthenticated drives for
// telnet.
func (d *Dispatcher) AuthenticateSession(ctx context.Context, sessionID model.SessionId, username, password string) (bool, *model.PersistentEntityId, []model.AvatarSummary, string) {
	sess := d.sessions.GetOrCreate(sessionID)

	ok, err := d.store.VerifyPassword(ctx, username, password)
	if err != nil || !ok {
		return false, nil, nil, "invalid credentials"
	}
	acc, _, err := d.store.LoadAccountByLogin(ctx, username)
	if err != nil {
		return false, nil, nil, "account lookup failed"
	}
	if acc.MFASecret != "" {
		return false, nil, nil, "mfa_required: use the interactive line login"
	}
	avatars, err := d.store.ListAvatars(ctx, acc.ID)
	if err != nil {
		return false, nil, nil, "avatar lookup failed"
	}

	sess.AccountID = &acc.ID
	sess.Avatars = avatars
	sess.Role = acc.Role
	sess.State = StateAuthenticated
	return true, &acc.ID, avatars, ""
}

// CheckUsername implements rpcworld.Dispatcher.
func (d *Dispatcher) CheckUsername(ctx context.Context, username string) bool {
	_, _, err := d.store.LoadAccountByLogin(ctx, strings.ToLower(username))
	return err != nil
}

// CreateAccount implements rpcworld.Dispatcher.
func (d *Dispatcher) CreateAccount(ctx context.Context, username, password string) (bool, *model.PersistentEntityId, string) {
	acc, err := d.store.CreateAccount(ctx, username, password)
	if err != nil {
		return false, nil, err.Error()
	}
	return true, &acc.ID, ""
}
