// Package pool implements the Gateway's connection pool: the sole owner of
// live client sockets, addressed by session id, with a bounded per-
// connection mailbox and a drop-newest backpressure policy so a slow client
// never blocks the rest of the Gateway (spec.md §4.3, §5).
//
// The mailbox-plus-writer-goroutine shape is grounded in the teacher's
// per-client write queue (internal/gameserver/client.go's sendCh/writePump,
// itself citing the Leaf/Zinx/Gorilla-chat pattern); the drop policy differs
// from the teacher's (which disconnects a client whose queue fills) because
// spec.md §4.3 calls for "drop-newest with a warning, never block the world
// side" instead.
package pool

import (
	"context"
	"log/slog"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/protocol"
	"github.com/huhlig/wyldlands-gw/internal/session"
)

// Connection is one pool entry: a session id, its protocol adapter, and the
// bounded outbound mailbox the run loop drains.
type Connection struct {
	SessionID model.SessionId
	Protocol  session.Protocol
	Adapter   protocol.Adapter

	mailbox chan model.GameOutput
	done    chan struct{}
}

func newConnection(id model.SessionId, proto session.Protocol, adapter protocol.Adapter, capacity int) *Connection {
	return &Connection{
		SessionID: id,
		Protocol:  proto,
		Adapter:   adapter,
		mailbox:   make(chan model.GameOutput, capacity),
		done:      make(chan struct{}),
	}
}

// enqueue offers out to the mailbox without blocking. Returns false if the
// mailbox was full — caller logs and increments the drop counter; the
// connection itself is never torn down just because it's slow (that's the
// Gateway's heartbeat/timeout discipline's job, not the pool's).
func (c *Connection) enqueue(out model.GameOutput) bool {
	select {
	case c.mailbox <- out:
		return true
	default:
		return false
	}
}

// runLoop drains the mailbox and writes each output through the adapter
// until the context is cancelled or the adapter dies. Exactly one runLoop
// exists per Connection, started by Pool.Register.
func (c *Connection) runLoop(ctx context.Context, log *slog.Logger, onDead func()) {
	defer onDead()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case out, ok := <-c.mailbox:
			if !ok {
				return
			}
			if out.Kind == model.OutputInputMode {
				mode := protocol.InputLine
				if out.InputMode == "keystroke" {
					mode = protocol.InputKeystroke
				}
				c.Adapter.SetInputMode(mode, out.InputModeTitle)
				continue
			}
			if err := c.Adapter.SendOutput(ctx, out); err != nil {
				log.Warn("connection write failed, marking dead",
					"session_id", c.SessionID, "protocol", c.Protocol, "error", err)
				return
			}
		}
	}
}

func (c *Connection) stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
