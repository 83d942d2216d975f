// Package session implements the Gateway's session store and manager: the
// state machine, the per-session command queue used during
// disconnection, and the expiry sweep (spec.md §4.2, §4.4).
package session

import (
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// State is the Gateway-side session state machine (§4.2).
type State int

const (
	Connecting State = iota
	Authenticating
	CharacterSelection
	Playing
	Disconnected
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case CharacterSelection:
		return "character_selection"
	case Playing:
		return "playing"
	case Disconnected:
		return "disconnected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Protocol is which transport a session arrived over.
type Protocol int

const (
	ProtocolTelnet Protocol = iota
	ProtocolWebSocket
)

func (p Protocol) String() string {
	if p == ProtocolWebSocket {
		return "websocket"
	}
	return "telnet"
}

// Metadata holds capability flags and terminal info for a session.
// CreateSession leaves it zero-valued, and nothing in the Gateway copies
// the adapter's negotiated capabilities into it.
type Metadata struct {
	TerminalType string
	WindowWidth  int
	WindowHeight int
	AnsiColors   bool
	Compression  bool
}

// GatewaySession is one client's session record (§3). EntityID starts nil,
// and the Gateway does not set it when the World reports a character has
// entered play.
type GatewaySession struct {
	ID           model.SessionId
	EntityID     *model.PersistentEntityId
	CreatedAt    time.Time
	LastActivity time.Time
	State        State
	Protocol     Protocol
	ClientAddr   string
	Metadata     Metadata
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s *GatewaySession) IsExpired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > timeout
}

// QueuedCommand is one piece of input deferred while a session is
// Disconnected, replayed exactly once on the next successful reconnect.
type QueuedCommand struct {
	SessionID model.SessionId
	Text      string
	QueuedAt  time.Time
}

// allowedTransitions enumerates every legal State → State edge besides the
// universal "anything → Closed" rule (§4.2).
var allowedTransitions = map[State]map[State]bool{
	Connecting:         {Authenticating: true},
	Authenticating:     {CharacterSelection: true},
	CharacterSelection: {Playing: true},
	Playing:            {CharacterSelection: true, Disconnected: true},
	Disconnected:       {Playing: true},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	if to == Closed {
		return from != Closed
	}
	if from == Closed {
		return false
	}
	return allowedTransitions[from][to]
}
