// Command gateway runs the Gateway process: it terminates telnet and
// WebSocket client connections, owns session and connection-pool state,
// and relays input/output to the World over the RPC fabric. Structure
// (signal-driven shutdown, errgroup-joined supervisor loops) grounded in
// the teacher's cmd/gameserver/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huhlig/wyldlands-gw/internal/config"
	"github.com/huhlig/wyldlands-gw/internal/metrics"
	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/pool"
	"github.com/huhlig/wyldlands-gw/internal/properties"
	"github.com/huhlig/wyldlands-gw/internal/protocol"
	"github.com/huhlig/wyldlands-gw/internal/reconnect"
	"github.com/huhlig/wyldlands-gw/internal/rpc"
	"github.com/huhlig/wyldlands-gw/internal/rpcclient"
	"github.com/huhlig/wyldlands-gw/internal/session"
)

func main() {
	configPath := flag.String("config", "config/gateway.yaml", "path to gateway config file")
	envPath := flag.String("env", "", "optional KEY=VALUE override file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *envPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envPath string) error {
	cfg, err := config.LoadGateway(configPath, envPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	log := slog.Default()
	log.Info("gateway starting", "telnet_addr", cfg.TelnetAddr, "websocket_addr", cfg.WebSocketAddr)

	m := metrics.New("gateway")

	sessions := session.NewManager()
	connPool := pool.New(log, cfg.MailboxCapacity, m.DropCounter)
	reconnMgr := reconnect.NewManager(sessions, cfg.ReconnectTokenTTL)

	var backing properties.Backing
	if cfg.RedisAddr != "" {
		redisBacking := properties.NewRedisBacking(cfg.RedisAddr, "wyldlands:prop:")
		defer redisBacking.Close()
		backing = redisBacking
	}

	var rpcClient *rpcclient.Client
	rpcClient = rpcclient.New(cfg.ServerAddr, cfg.ServerAuthKey, cfg.ServerReconnectInterval, cfg.ServerHeartbeatInterval, log,
		func(env rpc.Envelope) { routeWorldToSession(sessions, connPool, env, log) })

	propCache := properties.New(cfg.PropertiesCacheTTL, rpcPropertyPuller{client: rpcClient}, backing)
	rpcClient.SetOnConnected(func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := propCache.Refresh(refreshCtx, properties.DefaultKeys); err != nil {
			log.Warn("property refresh on rpc reconnect failed", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting rpc client supervisor", "addr", cfg.ServerAddr)
		return rpcClient.Run(gctx)
	})
	g.Go(func() error {
		return rpcClient.RunHeartbeat(gctx)
	})
	g.Go(func() error {
		return propCache.RunRefreshLoop(gctx)
	})
	g.Go(func() error {
		return runCleanupLoop(gctx, sessions, connPool, rpcClient, m, cfg.SessionTimeout, cfg.SessionCleanupEvery, log)
	})
	g.Go(func() error {
		log.Info("starting telnet listener", "addr", cfg.TelnetAddr)
		return runTelnetListener(gctx, cfg, sessions, connPool, reconnMgr, rpcClient, propCache, log)
	})
	g.Go(func() error {
		log.Info("starting websocket listener", "addr", cfg.WebSocketAddr)
		return runWebSocketListener(gctx, cfg, sessions, connPool, reconnMgr, rpcClient, propCache, log)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("gateway server error: %w", err)
	}
	return nil
}

func runTelnetListener(ctx context.Context, cfg config.Gateway, sessions *session.Manager, connPool *pool.Pool, reconnMgr *reconnect.Manager, rpcClient *rpcclient.Client, propCache *properties.Cache, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.TelnetAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.TelnetAddr, err)
	}
	go func() { <-ctx.Done(); ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn("telnet accept error", "error", err)
				continue
			}
		}
		adapter := protocol.NewTelnetAdapter(conn, cfg.ClientIdleTimeout)
		go serveConnection(ctx, sessions, connPool, reconnMgr, rpcClient, propCache, session.ProtocolTelnet, conn.RemoteAddr().String(), adapter, log)
	}
}

func runWebSocketListener(ctx context.Context, cfg config.Gateway, sessions *session.Manager, connPool *pool.Pool, reconnMgr *reconnect.Manager, rpcClient *rpcclient.Client, propCache *properties.Cache, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc(cfg.WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		adapter, err := protocol.UpgradeWebSocket(w, r, cfg.ClientIdleTimeout)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		go serveConnection(ctx, sessions, connPool, reconnMgr, rpcClient, propCache, session.ProtocolWebSocket, r.RemoteAddr, adapter, log)
	})

	srv := &http.Server{Addr: cfg.WebSocketAddr, Handler: mux}
	go func() { <-ctx.Done(); srv.Close() }()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("websocket listener: %w", err)
	}
	return nil
}

// reconnectPrefix is the line a reconnecting client sends in place of a
// username, carrying the opaque token reconnect.Token.Encode produced at
// the last disconnect (§4.5).
const reconnectPrefix = "reconnect "

func serveConnection(ctx context.Context, sessions *session.Manager, connPool *pool.Pool, reconnMgr *reconnect.Manager, rpcClient *rpcclient.Client, propCache *properties.Cache, proto session.Protocol, addr string, adapter protocol.Adapter, log *slog.Logger) {
	sess := sessions.CreateSession(proto, addr)
	if err := connPool.Register(ctx, sess.ID, proto, adapter); err != nil {
		log.Warn("registering connection failed", "session_id", sess.ID, "error", err)
		adapter.Close()
		return
	}
	_ = sessions.TransitionSession(sess.ID, session.Authenticating)
	activeID := sess.ID

	if welcome, err := propCache.Get(ctx, "banner.welcome"); err == nil {
		_ = connPool.Send(activeID, model.System(welcome))
	}

	defer func() {
		connPool.Unregister(activeID)
		if tok, err := reconnMgr.PrepareReconnection(activeID); err == nil {
			if encoded, err := tok.Encode(); err == nil {
				log.Info("session disconnected, reconnection window open", "session_id", activeID, "token", encoded)
			}
		}
		if err := rpcClient.Send(mustEncode(rpc.TypeSessionDisconnected, rpc.SessionDisconnected{SessionID: activeID})); err != nil {
			log.Debug("notifying world of disconnect failed", "session_id", activeID, "error", err)
		}
	}()

	for {
		msg, err := adapter.Receive(ctx)
		if err != nil {
			log.Info("connection ended", "session_id", activeID, "error", err)
			return
		}
		_ = sessions.TouchSession(activeID)

		if strings.HasPrefix(msg.Text, reconnectPrefix) {
			reattached, ok := attemptReconnect(ctx, connPool, reconnMgr, rpcClient, activeID, proto, adapter, strings.TrimPrefix(msg.Text, reconnectPrefix), log)
			if ok {
				activeID = reattached
				continue
			}
		}

		// A session in Disconnected (prepare_reconnection was called but the
		// socket is still being driven) queues input for replay on reconnect
		// (§4.5). A world outage is different: live input is dropped at
		// source with a user-visible warning, never replayed (§4.6).
		if cur, err := sessions.GetSession(activeID); err == nil && cur.State == session.Disconnected {
			sessions.QueueCommand(activeID, msg.Text)
			continue
		}

		env, err := rpc.Encode(rpc.TypeSendInput, rpc.SendInputRequest{SessionID: activeID, Text: msg.Text})
		if err != nil {
			continue
		}
		if err := rpcClient.Send(env); err != nil {
			log.Warn("world unreachable, dropping input", "session_id", activeID, "error", err)
			_ = connPool.Send(activeID, model.System("[The world is unreachable; your command was not processed.]"))
		}
	}
}

// attemptReconnect validates a presented reconnection token and, on
// success, migrates this connection's adapter to the reconnected session id
// and replays the queued commands accumulated during the outage through
// the World (§4.5). The provisional session created for this socket
// (tempID) is discarded.
func attemptReconnect(ctx context.Context, connPool *pool.Pool, reconnMgr *reconnect.Manager, rpcClient *rpcclient.Client, tempID model.SessionId, proto session.Protocol, adapter protocol.Adapter, encodedToken string, log *slog.Logger) (model.SessionId, bool) {
	tok, err := reconnect.DecodeToken(encodedToken)
	if err != nil {
		log.Warn("reconnect token invalid", "error", err)
		return tempID, false
	}
	result, err := reconnMgr.Reconnect(tok)
	if err != nil {
		log.Warn("reconnect failed", "session_id", tok.SessionID, "error", err)
		return tempID, false
	}

	connPool.Unregister(tempID)
	if err := connPool.Register(ctx, result.SessionID, proto, adapter); err != nil {
		log.Warn("re-registering reconnected connection failed", "session_id", result.SessionID, "error", err)
		return tempID, false
	}

	queued := make([]string, 0, len(result.QueuedCommands))
	for _, c := range result.QueuedCommands {
		queued = append(queued, c.Text)
	}

	env, err := rpc.Encode(rpc.TypeSessionReconnected, rpc.SessionReconnected{SessionID: result.SessionID, QueuedCommands: queued})
	if err != nil {
		return tempID, false
	}
	if err := rpcClient.Send(env); err != nil {
		log.Warn("notifying world of reconnect failed", "session_id", result.SessionID, "error", err)
		return tempID, false
	}
	log.Info("session reconnected", "session_id", result.SessionID, "replayed", len(queued))
	return result.SessionID, true
}

// gatewayStateFromName maps the state name carried over
// world.session_state_changed to the Gateway's own session.State, so the
// World's dispatch progress (past authentication, into character selection,
// into play) drives GatewaySession.State forward instead of leaving it
// stuck in Authenticating (§4.3).
func gatewayStateFromName(name string) (session.State, bool) {
	switch name {
	case "character_selection":
		return session.CharacterSelection, true
	case "playing":
		return session.Playing, true
	default:
		return session.Connecting, false
	}
}

func routeWorldToSession(sessions *session.Manager, connPool *pool.Pool, env rpc.Envelope, log *slog.Logger) {
	switch env.Type {
	case rpc.TypeSendOutput:
		var req rpc.SendOutputRequest
		if err := rpc.Decode(env, &req); err != nil {
			return
		}
		for _, out := range req.Outputs {
			if err := connPool.Send(req.SessionID, out); err != nil {
				log.Debug("delivering output failed", "session_id", req.SessionID, "error", err)
			}
		}
	case rpc.TypeSendPrompt:
		var req rpc.SendPromptRequest
		if err := rpc.Decode(env, &req); err != nil {
			return
		}
		if err := connPool.Send(req.SessionID, model.Text(req.Text)); err != nil {
			log.Debug("delivering prompt failed", "session_id", req.SessionID, "error", err)
		}
	case rpc.TypeEntityStateChanged:
		var req rpc.EntityStateChangedRequest
		if err := rpc.Decode(env, &req); err != nil {
			return
		}
		// Field names the reserved structured surface (char.vitals,
		// room.info); the adapter picks GMCP/MSDP or the JSON envelope.
		if err := connPool.Send(req.SessionID, model.Structured(req.Field, req.Value)); err != nil {
			log.Debug("delivering entity state failed", "session_id", req.SessionID, "error", err)
		}
	case rpc.TypeSessionStateChanged:
		var req rpc.SessionStateChangedRequest
		if err := rpc.Decode(env, &req); err != nil {
			return
		}
		target, ok := gatewayStateFromName(req.State)
		if !ok {
			log.Warn("unknown gateway state name in session_state_changed", "session_id", req.SessionID, "state", req.State)
			return
		}
		if err := sessions.TransitionSession(req.SessionID, target); err != nil {
			log.Debug("session state transition rejected", "session_id", req.SessionID, "target", req.State, "error", err)
		}
	case rpc.TypeDisconnectSession:
		var req rpc.DisconnectSessionRequest
		if err := rpc.Decode(env, &req); err != nil {
			return
		}
		connPool.Unregister(req.SessionID)
	}
}

// rpcPropertyPuller adapts rpcclient.Client to properties.Puller.
type rpcPropertyPuller struct {
	client *rpcclient.Client
}

func (p rpcPropertyPuller) PullProperties(ctx context.Context, keys []string) (map[string]string, error) {
	req, err := rpc.Encode(rpc.TypeGatewayProperties, rpc.GatewayPropertiesRequest{Keys: keys})
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Call(ctx, req, rpc.TypeGatewayProperties)
	if err != nil {
		return nil, err
	}
	var out rpc.GatewayPropertiesResponse
	if err := rpc.Decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

// runCleanupLoop sweeps expired sessions (closing their pool entries and
// signalling the World via session_disconnected, §4.4) and refreshes the
// gateway-side gauges on the same tick.
func runCleanupLoop(ctx context.Context, sessions *session.Manager, connPool *pool.Pool, rpcClient *rpcclient.Client, m *metrics.Metrics, timeout, every time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired := sessions.CleanupExpired(timeout)
			for _, id := range expired {
				_ = connPool.Unregister(id)
				if err := rpcClient.Send(mustEncode(rpc.TypeSessionDisconnected, rpc.SessionDisconnected{SessionID: id})); err != nil {
					log.Debug("notifying world of expired session failed", "session_id", id, "error", err)
				}
				m.ObserveSessionEvent("expired")
			}
			if len(expired) > 0 {
				log.Info("swept expired sessions", "count", len(expired))
			}
			m.ActiveSessions.Set(float64(connPool.ConnectionCount()))
			m.RPCClientState.Set(float64(rpcClient.State()))
		}
	}
}

func mustEncode(msgType string, msg any) rpc.Envelope {
	env, _ := rpc.Encode(msgType, msg)
	return env
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
