package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// wireEnvelope is the `{"type": "...", "data": ...}` JSON shape spec.md §6
// requires for the WebSocket surface. Reserved types include char.vitals,
// room.info, combat.action, inventory.update.
type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeWebSocket upgrades an incoming HTTP request to a WebSocket
// connection and returns it wrapped as an Adapter, ready for the caller's
// accept loop. idleTimeout bounds how long Receive waits for a frame (§5);
// zero disables the deadline.
func UpgradeWebSocket(w http.ResponseWriter, r *http.Request, idleTimeout time.Duration) (Adapter, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrading websocket: %w", err)
	}
	return NewWebSocketAdapter(conn, idleTimeout), nil
}

// WebSocketAdapter implements Adapter over a gorilla/websocket connection.
// Adopted from the rest of the example pack (none of which is the teacher)
// because la2go's own transport is a bespoke binary client protocol with no
// WebSocket surface to adapt — see DESIGN.md.
type WebSocketAdapter struct {
	conn *websocket.Conn
	idle time.Duration

	mu    sync.Mutex
	caps  ClientCapabilities
	alive bool
	mode  InputMode
}

// NewWebSocketAdapter wraps an already-upgraded connection. WebSocket
// clients advertise capability through an initial `client.hello` envelope
// rather than telnet-style option negotiation; SetCapabilities lets the
// caller record it once received.
func NewWebSocketAdapter(conn *websocket.Conn, idleTimeout time.Duration) *WebSocketAdapter {
	return &WebSocketAdapter{
		conn:  conn,
		idle:  idleTimeout,
		alive: true,
		caps:  ClientCapabilities{Binary: true, AnsiColors: false},
	}
}

func (w *WebSocketAdapter) ProtocolName() string { return "websocket" }

func (w *WebSocketAdapter) Capabilities() ClientCapabilities {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.caps
}

// SetCapabilities records capabilities parsed out of a client.hello envelope.
func (w *WebSocketAdapter) SetCapabilities(c ClientCapabilities) {
	w.mu.Lock()
	w.caps = c
	w.mu.Unlock()
}

func (w *WebSocketAdapter) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

func (w *WebSocketAdapter) markDead() {
	w.mu.Lock()
	w.alive = false
	w.mu.Unlock()
}

func (w *WebSocketAdapter) Close() error {
	w.markDead()
	return w.conn.Close()
}

// SetInputMode switches between line-buffered and keystroke-buffered input,
// announcing the switch with an input.mode envelope so the client UI can
// swap its text widget for an editor pane (§4.1).
func (w *WebSocketAdapter) SetInputMode(mode InputMode, title string) {
	modeName := "line"
	if mode == InputKeystroke {
		modeName = "keystroke"
	}
	data, err := json.Marshal(map[string]string{"mode": modeName, "title": title})
	if err != nil {
		return
	}
	w.mu.Lock()
	w.mode = mode
	if err := w.conn.WriteJSON(wireEnvelope{Type: "input.mode", Data: data}); err != nil {
		w.alive = false
	}
	w.mu.Unlock()
}

// SendOutput always sends a JSON envelope: a reserved `type` for the
// structured kinds the spec names, and `game.output` for everything else
// carried as plain text so a minimal client can still render it.
func (w *WebSocketAdapter) SendOutput(ctx context.Context, out model.GameOutput) error {
	env, err := envelopeFor(out)
	if err != nil {
		return fmt.Errorf("websocket encode: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(env); err != nil {
		w.alive = false
		return fmt.Errorf("websocket send: %w", wyerr.Io)
	}
	return nil
}

func envelopeFor(out model.GameOutput) (wireEnvelope, error) {
	switch out.Kind {
	case model.OutputRoom:
		data, err := json.Marshal(out.Room)
		return wireEnvelope{Type: "room.info", Data: data}, err
	case model.OutputCombat:
		data, err := json.Marshal(map[string]string{"message": out.CombatMessage})
		return wireEnvelope{Type: "combat.action", Data: data}, err
	case model.OutputStructured:
		data, err := jsonMarshalValue(out.StructuredData)
		return wireEnvelope{Type: out.StructuredType, Data: data}, err
	default:
		data, err := json.Marshal(map[string]string{"text": out.PlainText()})
		return wireEnvelope{Type: "game.output", Data: data}, err
	}
}

// Receive reads the next JSON envelope and maps it to a ProtocolMessage: a
// `cmd.line` envelope is treated as a line of text input, anything else is
// passed through as structured data.
func (w *WebSocketAdapter) Receive(ctx context.Context) (ProtocolMessage, error) {
	if w.idle > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.idle))
	}
	var env wireEnvelope
	if err := w.conn.ReadJSON(&env); err != nil {
		w.markDead()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProtocolMessage{Kind: MessageDisconnected}, fmt.Errorf("websocket receive: %w", wyerr.Timeout)
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return ProtocolMessage{Kind: MessageDisconnected}, fmt.Errorf("websocket receive: %w", wyerr.ConnectionClosed)
		}
		return ProtocolMessage{Kind: MessageDisconnected}, fmt.Errorf("websocket receive: %w", wyerr.Io)
	}

	if env.Type == "cmd.line" {
		var line string
		if err := json.Unmarshal(env.Data, &line); err != nil {
			return ProtocolMessage{}, fmt.Errorf("websocket receive: %w", wyerr.Protocol)
		}
		w.mu.Lock()
		mode := w.mode
		w.mu.Unlock()
		return ProtocolMessage{Kind: MessageText, Text: translateKeystrokeSentinel(mode, line)}, nil
	}

	v, err := jsonUnmarshalValue(env.Data)
	if err != nil {
		return ProtocolMessage{}, fmt.Errorf("websocket receive: %w", wyerr.Protocol)
	}
	return ProtocolMessage{Kind: MessageStructured, Structured: v}, nil
}
