// Package rpcworld is the World-side RPC server (§4.6): authenticates each
// Gateway connection once via the shared secret before any other method
// succeeds, then validates and dispatches per-session requests by server
// session state (§4.8, delegated to internal/worldcore).
package rpcworld

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/rpc"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// Dispatcher is the worldcore collaborator that actually interprets session
// input and produces output (kept as an interface here so rpcworld doesn't
// import worldcore directly). worldcore does not import rpcworld either: it
// returns outputs, and rpcworld's gatewayLink pushes them to the Gateway.
type Dispatcher interface {
	HandleInput(ctx context.Context, sessionID model.SessionId, text string) (outputs []model.GameOutput, gatewayState string, err error)
	HandleDisconnect(ctx context.Context, sessionID model.SessionId)
	HandleReconnect(ctx context.Context, sessionID model.SessionId, queuedCommands []string) ([]model.GameOutput, error)

	// DeferOutputs holds outputs that could not reach the session's Gateway
	// connection, to be re-sent on the next session_reconnected (§4.8).
	DeferOutputs(ctx context.Context, sessionID model.SessionId, outputs []model.GameOutput)

	// Prompt returns the session's current input prompt, or "" when no
	// prompt should follow the outputs (pushed as world.send_prompt, §4.6).
	Prompt(ctx context.Context, sessionID model.SessionId) string

	// DrainEntityEvents pops the entity state changes accumulated since the
	// last drain, each pushed as world.entity_state_changed (§4.6) onto the
	// client's structured surfaces.
	DrainEntityEvents(ctx context.Context, sessionID model.SessionId) []model.EntityEvent

	AuthenticateSession(ctx context.Context, sessionID model.SessionId, username, password string) (accepted bool, accountID *model.PersistentEntityId, avatars []model.AvatarSummary, reason string)
	CheckUsername(ctx context.Context, username string) (available bool)
	CreateAccount(ctx context.Context, username, password string) (accepted bool, accountID *model.PersistentEntityId, reason string)
}

// PropertySource answers GatewayProperties pulls (§4.7), backed by
// internal/properties.
type PropertySource interface {
	GetMany(keys []string) map[string]string
}

// Server accepts Gateway connections, authenticates them, and dispatches
// their requests.
type Server struct {
	authKey    string
	dispatcher Dispatcher
	properties PropertySource
	log        *slog.Logger

	mu       sync.RWMutex
	sessions map[model.SessionId]bool // sessions known to at least one gateway connection

	linksMu sync.RWMutex
	links   map[model.SessionId]*gatewayLink
}

// New returns a Server. authKey is the shared secret every Gateway must
// present via authenticate_gateway before any other call succeeds.
func New(authKey string, dispatcher Dispatcher, properties PropertySource, log *slog.Logger) *Server {
	return &Server{
		authKey:    authKey,
		dispatcher: dispatcher,
		properties: properties,
		log:        log,
		sessions:   make(map[model.SessionId]bool),
		links:      make(map[model.SessionId]*gatewayLink),
	}
}

// Listen binds addr and serves until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("world rpc listener started", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn("accept error", "error", err)
				continue
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	link := newGatewayLink(conn, s.log)

	if err := s.authenticateGateway(link); err != nil {
		s.log.Warn("gateway authentication failed", "addr", conn.RemoteAddr(), "error", err)
		return
	}
	s.log.Info("gateway authenticated", "addr", conn.RemoteAddr())

	for {
		env, err := link.reader.ReadEnvelope()
		if err != nil {
			s.log.Info("gateway connection ended", "addr", conn.RemoteAddr(), "error", err)
			return
		}
		s.handle(ctx, link, env)
	}
}

func (s *Server) authenticateGateway(link *gatewayLink) error {
	env, err := link.reader.ReadEnvelope()
	if err != nil {
		return err
	}
	if env.Type != rpc.TypeAuthenticateGateway {
		return fmt.Errorf("expected authenticate_gateway, got %s: %w", env.Type, wyerr.Unauthenticated)
	}
	var req rpc.AuthenticateGatewayRequest
	if err := rpc.Decode(env, &req); err != nil {
		return err
	}

	accepted := req.AuthKey != "" && req.AuthKey == s.authKey
	resp, err := rpc.Encode(rpc.TypeAuthenticateGateway, rpc.AuthenticateGatewayResponse{Accepted: accepted})
	if err != nil {
		return err
	}
	if err := link.writer.WriteEnvelope(resp); err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("rejected shared secret: %w", wyerr.Unauthenticated)
	}
	return nil
}
