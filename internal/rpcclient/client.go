// Package rpcclient is the Gateway-side half of the RPC fabric (§4.6): a
// connection supervisor with states {Disconnected, Connecting, Connected,
// Failed→Disconnected}, an auto-reconnect loop, a separate heartbeat loop,
// and a WorldToSession callback dispatcher. The supervised-goroutines-under-
// errgroup shape is grounded in cmd/gameserver/main.go's pattern of
// g.Go(...) loops each driven by a ctx.Done() guard.
package rpcclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/rpc"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// State is the RPC client's connection state (§4.6).
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutputHandler processes a WorldToSession callback envelope. Registered
// once by the Gateway's dispatch wiring (cmd/gateway).
type OutputHandler func(env rpc.Envelope)

// Client supervises one outbound connection to the World. Failed is never
// sticky: the reconnect loop always resets to Disconnected before the next
// attempt (§4.6's critical invariant).
type Client struct {
	addr              string
	authKey           string
	reconnectInterval time.Duration
	heartbeatInterval time.Duration
	log               *slog.Logger
	onOutput          OutputHandler

	connectedMu sync.RWMutex
	onConnected func()

	mu     sync.RWMutex
	state  State
	conn   net.Conn
	writer *rpc.FrameWriter
	reader *rpc.FrameReader

	// sendMu serializes frame writes: the heartbeat loop, input forwarding,
	// and property pulls can all hit Send concurrently, and FrameWriter is
	// not safe for interleaved writers.
	sendMu sync.Mutex

	// pending keys replies by envelope type rather than a correlation id.
	// The only request/response call the Gateway makes through Call is
	// gateway_properties (cmd/gateway's property puller). Two overlapping
	// calls of the same type share one slot, so one of them can miss its
	// reply and return only when its context ends.
	pendingMu sync.Mutex
	pending   map[string]chan rpc.Envelope
}

// New returns a Client configured from the Gateway's outbound RPC settings
// (config.Gateway.ServerAddr/ServerAuthKey/ServerReconnectInterval/
// ServerHeartbeatInterval).
func New(addr, authKey string, reconnectInterval, heartbeatInterval time.Duration, log *slog.Logger, onOutput OutputHandler) *Client {
	return &Client{
		addr:              addr,
		authKey:           authKey,
		reconnectInterval: reconnectInterval,
		heartbeatInterval: heartbeatInterval,
		log:               log,
		onOutput:          onOutput,
		state:             Disconnected,
		pending:           make(map[string]chan rpc.Envelope),
	}
}

// SetOnConnected registers a callback fired, in its own goroutine, every
// time the client transitions into Connected — including every reconnect,
// not just the first dial. cmd/gateway uses this to refresh the properties
// cache immediately on reconnect instead of waiting for the next TTL tick
// (§4.7).
func (c *Client) SetOnConnected(fn func()) {
	c.connectedMu.Lock()
	c.onConnected = fn
	c.connectedMu.Unlock()
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives the reconnect loop and, once connected, the receive loop, until
// ctx is cancelled. Intended to be one errgroup goroutine in cmd/gateway.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.setState(Disconnected)
			return nil
		default:
		}

		if err := c.connectAndServe(ctx); err != nil {
			c.log.Warn("rpc client connection ended", "error", err)
		}

		// Failed must never be sticky: always reset to Disconnected before
		// the next attempt (§4.6).
		c.setState(Disconnected)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectInterval):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	c.setState(Connecting)

	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		c.setState(Failed)
		return fmt.Errorf("dialing world at %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.writer = rpc.NewFrameWriter(conn)
	c.reader = rpc.NewFrameReader(conn)
	c.mu.Unlock()

	if err := c.authenticate(); err != nil {
		conn.Close()
		c.setState(Failed)
		return err
	}

	c.setState(Connected)
	c.log.Info("rpc client connected", "addr", c.addr)

	c.connectedMu.RLock()
	onConnected := c.onConnected
	c.connectedMu.RUnlock()
	if onConnected != nil {
		go onConnected()
	}

	return c.receiveLoop(ctx)
}

func (c *Client) authenticate() error {
	env, err := rpc.Encode(rpc.TypeAuthenticateGateway, rpc.AuthenticateGatewayRequest{AuthKey: c.authKey})
	if err != nil {
		return err
	}
	if err := c.writer.WriteEnvelope(env); err != nil {
		return err
	}
	reply, err := c.reader.ReadEnvelope()
	if err != nil {
		return err
	}
	var resp rpc.AuthenticateGatewayResponse
	if err := rpc.Decode(reply, &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("gateway authentication rejected: %w", wyerr.Unauthenticated)
	}
	return nil
}

// receiveLoop reads WorldToSession callbacks and dispatches them via
// onOutput until the connection dies or ctx is cancelled.
func (c *Client) receiveLoop(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				conn.Close()
			}
		case <-done:
		}
	}()

	for {
		env, err := c.reader.ReadEnvelope()
		if err != nil {
			return err
		}
		if env.Type == rpc.TypeSendOutput || env.Type == rpc.TypeSendPrompt ||
			env.Type == rpc.TypeEntityStateChanged || env.Type == rpc.TypeSessionStateChanged ||
			env.Type == rpc.TypeDisconnectSession {
			c.onOutput(env)
			continue
		}
		// Reply to an in-flight request/response call.
		c.pendingMu.Lock()
		ch, ok := c.pending[env.Type]
		if ok {
			delete(c.pending, env.Type)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- env
		}
	}
}

// Send writes env to the World without waiting for a reply (session_heartbeat,
// session_disconnected, send_input — fire-and-forget per §4.6).
func (c *Client) Send(env rpc.Envelope) error {
	c.mu.RLock()
	writer := c.writer
	state := c.state
	c.mu.RUnlock()

	if state != Connected || writer == nil {
		return fmt.Errorf("rpc client not connected: %w", wyerr.ConnectionClosed)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return writer.WriteEnvelope(env)
}

// Call sends env and blocks for the matching reply type, or until ctx is
// cancelled.
func (c *Client) Call(ctx context.Context, env rpc.Envelope, replyType string) (rpc.Envelope, error) {
	ch := make(chan rpc.Envelope, 1)
	c.pendingMu.Lock()
	c.pending[replyType] = ch
	c.pendingMu.Unlock()

	if err := c.Send(env); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, replyType)
		c.pendingMu.Unlock()
		return rpc.Envelope{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, replyType)
		c.pendingMu.Unlock()
		return rpc.Envelope{}, ctx.Err()
	}
}

// RunHeartbeat sends a liveness ping at the configured interval until ctx is
// cancelled. Consecutive failures degrade the client to Disconnected (§4.6);
// reconnection is left to Run's own loop.
func (c *Client) RunHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.State() != Connected {
				continue
			}
			env, err := rpc.Encode(rpc.TypeGatewayHeartbeat, rpc.GatewayHeartbeat{})
			if err != nil {
				continue
			}
			if err := c.Send(env); err != nil {
				consecutiveFailures++
				c.log.Warn("heartbeat failed", "consecutive_failures", consecutiveFailures, "error", err)
				if consecutiveFailures >= 2 {
					c.setState(Disconnected)
					consecutiveFailures = 0
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}
