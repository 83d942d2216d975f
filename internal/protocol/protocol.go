// Package protocol implements the Gateway's two client transports — telnet
// with RFC 854 option negotiation, and WebSocket with a JSON envelope —
// behind one Adapter interface so the session layer never branches
// on transport kind.
package protocol

import (
	"context"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// ClientCapabilities records what a connected client negotiated, so the
// session layer can pick plain text vs structured output (§4.8, §9).
type ClientCapabilities struct {
	Binary       bool
	AnsiColors   bool
	Compression  bool
	WindowWidth  int
	WindowHeight int
	TerminalType string
	MSDP         bool
	GMCP         bool
}

// InputMode controls how an adapter treats inbound text: buffered whole
// lines, or the keystroke-buffered mode an in-band editor uses (§4.1, §4.8).
type InputMode int

const (
	InputLine InputMode = iota
	InputKeystroke
)

// saveSentinel/cancelSentinel are the tokens internal/worldcore's editing
// step matches on. A keystroke-mode client sends the raw control bytes for
// Ctrl+S and Escape rather than these literal words; translateKeystrokeSentinel
// is the adapter-side half of that translation.
const (
	saveSentinel   = "@SAVE@"
	cancelSentinel = "@CANCEL@"
	controlS       = "\x13"
	escapeKey      = "\x1b"
)

// translateKeystrokeSentinel maps the raw control bytes a keystroke-mode
// client sends for save (Ctrl+S) and cancel (Escape) to the sentinel words
// the World's editing step recognizes. Outside keystroke mode, or for any
// other text, it's a no-op.
func translateKeystrokeSentinel(mode InputMode, text string) string {
	if mode != InputKeystroke {
		return text
	}
	switch text {
	case controlS:
		return saveSentinel
	case escapeKey:
		return cancelSentinel
	default:
		return text
	}
}

// MessageKind discriminates inbound ProtocolMessage values.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageStructured
	MessageDisconnected
)

// ProtocolMessage is what an adapter's Receive returns: a line of input, a
// structured command (GMCP/MSDP or WebSocket JSON), or a disconnect notice.
type ProtocolMessage struct {
	Kind       MessageKind
	Text       string
	Structured model.Value
}

// Adapter is the per-connection transport the Gateway drives. Implementations:
// *TelnetAdapter (telnet.go), *WebSocketAdapter (websocket.go).
type Adapter interface {
	// ProtocolName identifies the transport for logging.
	ProtocolName() string

	// SendOutput writes one GameOutput to the peer in whatever form the
	// transport and negotiated capabilities call for.
	SendOutput(ctx context.Context, out model.GameOutput) error

	// Receive blocks for the next inbound message, or returns a
	// MessageDisconnected message when the peer closes the connection.
	Receive(ctx context.Context) (ProtocolMessage, error)

	// Close tears down the underlying connection. Idempotent.
	Close() error

	// IsAlive reports whether the adapter still has a live connection.
	IsAlive() bool

	// Capabilities returns what the client has negotiated so far.
	Capabilities() ClientCapabilities

	// SetInputMode switches between line-buffered input (the default) and
	// keystroke-buffered input for an in-band editor, announcing the
	// switch to the peer with title as context (§4.1, §4.8).
	SetInputMode(mode InputMode, title string)
}
