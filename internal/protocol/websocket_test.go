package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/huhlig/wyldlands-gw/internal/model"
)

// dialTestAdapter upgrades one server-side connection into a
// WebSocketAdapter and returns the raw client connection driving it.
func dialTestAdapter(t *testing.T) (*WebSocketAdapter, *websocket.Conn) {
	t.Helper()
	adapterCh := make(chan Adapter, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := UpgradeWebSocket(w, r, 0)
		if err != nil {
			return
		}
		adapterCh <- a
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing test server: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case a := <-adapterCh:
		return a.(*WebSocketAdapter), client
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade never completed")
		return nil, nil
	}
}

func TestWebSocketAdapter_RoomOutputUsesReservedType(t *testing.T) {
	adapter, client := dialTestAdapter(t)

	out := model.Room(model.RoomInfo{Name: "Foyer", Description: "Dusty.", Exits: []string{"north"}})
	if err := adapter.SendOutput(context.Background(), out); err != nil {
		t.Fatalf("SendOutput: %v", err)
	}

	var env wireEnvelope
	if err := client.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != "room.info" {
		t.Fatalf("type = %q, want room.info", env.Type)
	}
}

func TestWebSocketAdapter_ReceiveCmdLine(t *testing.T) {
	adapter, client := dialTestAdapter(t)

	if err := client.WriteJSON(map[string]any{"type": "cmd.line", "data": "look"}); err != nil {
		t.Fatal(err)
	}
	msg, err := adapter.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Kind != MessageText || msg.Text != "look" {
		t.Fatalf("got %+v, want text %q", msg, "look")
	}
}

// TestWebSocketAdapter_KeystrokeSentinels drives §4.1's keystroke mode: in
// keystroke mode, a raw Ctrl+S or Escape arrives as the atomic save/cancel
// sentinel the editing step matches on.
func TestWebSocketAdapter_KeystrokeSentinels(t *testing.T) {
	adapter, client := dialTestAdapter(t)

	adapter.SetInputMode(InputKeystroke, "notes")
	var announce wireEnvelope
	if err := client.ReadJSON(&announce); err != nil {
		t.Fatalf("reading mode announcement: %v", err)
	}
	if announce.Type != "input.mode" {
		t.Fatalf("announcement type = %q, want input.mode", announce.Type)
	}

	for raw, want := range map[string]string{controlS: saveSentinel, escapeKey: cancelSentinel} {
		if err := client.WriteJSON(map[string]any{"type": "cmd.line", "data": raw}); err != nil {
			t.Fatal(err)
		}
		msg, err := adapter.Receive(context.Background())
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if msg.Text != want {
			t.Fatalf("got %q, want sentinel %q", msg.Text, want)
		}
	}
}

// TestWebSocketAdapter_StructuredRoundTrip drives §8's round-trip law: a
// structured table/array/string payload survives the JSON envelope intact.
func TestWebSocketAdapter_StructuredRoundTrip(t *testing.T) {
	adapter, client := dialTestAdapter(t)

	data := model.TableValue{
		"hp":   model.StringValue("10"),
		"tags": model.ArrayValue{model.StringValue("npc"), model.StringValue("vendor")},
	}
	if err := adapter.SendOutput(context.Background(), model.Structured("char.vitals", data)); err != nil {
		t.Fatalf("SendOutput: %v", err)
	}

	var env wireEnvelope
	if err := client.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != "char.vitals" {
		t.Fatalf("type = %q, want char.vitals", env.Type)
	}
	back, err := model.ParseValue(env.Data)
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}
	table, ok := back.(model.TableValue)
	if !ok || table["hp"] != model.StringValue("10") {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestWebSocketAdapter_CloseIdempotent(t *testing.T) {
	adapter, _ := dialTestAdapter(t)
	if err := adapter.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	_ = adapter.Close()
	if adapter.IsAlive() {
		t.Fatal("adapter must report not alive after close")
	}
}
