package rpcclient

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/rpc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestClient_RunNeverSticksInFailed drives §8's invariant: against an
// unreachable peer, the client cycles through Disconnected and Connecting,
// passes through Failed only briefly, and Run does not terminate until its
// context is cancelled.
func TestClient_RunNeverSticksInFailed(t *testing.T) {
	// Find a bound-but-unlistening address by opening then closing a
	// listener, so connections to it fail fast.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c := New(addr, "secret", 20*time.Millisecond, time.Second, discardLogger(), func(rpc.Envelope) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Sample across several reconnect intervals. Failed is allowed to be
	// observed transiently (it's reset before the next attempt), but the
	// state after any settling gap must always be Disconnected or
	// Connecting — never a state Run has exited from.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		switch c.State() {
		case Disconnected, Connecting, Failed:
		default:
			t.Fatalf("unexpected state %s", c.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate after context cancellation")
	}

	if c.State() != Disconnected {
		t.Fatalf("final state = %s, want disconnected", c.State())
	}
}

// TestClient_OnConnectedFiresOnEachConnect drives §4.7 scenario 5: the
// Gateway's property cache must refresh on every reconnect, not just the
// first dial, so the on-connected hook must fire each time the client
// reaches Connected.
func TestClient_OnConnectedFiresOnEachConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	acceptOnce := func() net.Conn {
		conn, err := ln.Accept()
		if err != nil {
			return nil
		}
		fr := rpc.NewFrameReader(conn)
		fw := rpc.NewFrameWriter(conn)
		if _, err := fr.ReadEnvelope(); err != nil {
			conn.Close()
			return nil
		}
		resp, _ := rpc.Encode(rpc.TypeAuthenticateGateway, rpc.AuthenticateGatewayResponse{Accepted: true})
		fw.WriteEnvelope(resp)
		return conn
	}

	c := New(ln.Addr().String(), "secret", 10*time.Millisecond, time.Hour, discardLogger(), func(rpc.Envelope) {})

	fired := make(chan struct{}, 8)
	c.SetOnConnected(func() { fired <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	conn1 := acceptOnce()
	if conn1 == nil {
		t.Fatal("first accept failed")
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("on-connected hook did not fire on initial connect")
	}
	conn1.Close()

	conn2 := acceptOnce()
	if conn2 == nil {
		t.Fatal("second accept failed")
	}
	defer conn2.Close()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("on-connected hook did not fire again on reconnect")
	}
}

func TestClient_SendWhileDisconnectedFails(t *testing.T) {
	c := New("127.0.0.1:1", "secret", time.Minute, time.Minute, discardLogger(), func(rpc.Envelope) {})
	env, _ := rpc.Encode("x", map[string]string{})
	if err := c.Send(env); err == nil {
		t.Fatal("Send on a disconnected client must fail")
	}
}
