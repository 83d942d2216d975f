// Command world runs the World process: it owns entity and room state, the
// dispatch core driving every Gateway session's state machine, and accepts
// RPC connections from one or more Gateways. Structure (signal-driven
// shutdown, errgroup-joined supervisor loops) grounded in the teacher's
// cmd/gameserver/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huhlig/wyldlands-gw/internal/config"
	"github.com/huhlig/wyldlands-gw/internal/metrics"
	"github.com/huhlig/wyldlands-gw/internal/persist"
	"github.com/huhlig/wyldlands-gw/internal/properties"
	"github.com/huhlig/wyldlands-gw/internal/rpcworld"
	"github.com/huhlig/wyldlands-gw/internal/world"
	"github.com/huhlig/wyldlands-gw/internal/worldcore"
)

const startRoom world.RoomID = "town-square"

func main() {
	configPath := flag.String("config", "config/world.yaml", "path to world config file")
	envPath := flag.String("env", "", "optional KEY=VALUE override file")
	memoryStore := flag.Bool("memory-store", false, "use an in-memory persistence store instead of Postgres (dev/test only)")
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

	if err := run(ctx, *configPath, *envPath, *memoryStore); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envPath string, useMemoryStore bool) error {
	cfg, err := config.LoadWorld(configPath, envPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	log := slog.Default()
	log.Info("world starting", "listen_addr", cfg.ListenAddr, "metrics_addr", cfg.MetricsAddr)

	var store persist.Store
	if useMemoryStore {
		log.Warn("using in-memory persistence store, no data will survive a restart")
		store = persist.NewMemoryStore()
	} else {
		pgxStore, err := persist.NewPgxStore(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pgxStore.Close()
		store = pgxStore
	}

	w := world.New()
	seedWorld(w)

	m := metrics.New("world")

	propSource := properties.NewSource(map[string]string{
		"banner.welcome": "Welcome to Wyldlands MUD!",
		"banner.motd":    "The realm is at peace... for now.",
		"banner.login":   "May your travels be safe.",
		"banner.logout":  "Farewell, traveler.",
	})

	dispatcher := worldcore.New(log, store, w, startRoom, m)
	rpcServer := rpcworld.New(cfg.AuthKey, dispatcher, propSource, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rpcServer.Listen(gctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		return runMetricsServer(gctx, cfg.MetricsAddr, log)
	})
	g.Go(func() error {
		return runSessionGaugeLoop(gctx, dispatcher, m)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("world server error: %w", err)
	}
	return nil
}

// seedWorld populates a minimal starting map so freshly created avatars
// have somewhere to spawn. A real deployment would load rooms from the
// persistence store; this repo's Non-goals exclude a room-authoring tool,
// so a fixed seed stands in for it (see DESIGN.md).
func seedWorld(w *world.World) {
	square := &world.Room{
		ID:          startRoom,
		Name:        "Town Square",
		Description: "A worn cobblestone square at the heart of town.",
		Exits:       map[string]world.RoomID{"north": "market-street"},
	}
	market := &world.Room{
		ID:          "market-street",
		Name:        "Market Street",
		Description: "Stalls line a narrow street, shuttered for the night.",
		Exits:       map[string]world.RoomID{"south": startRoom},
	}
	w.AddRoom(square)
	w.AddRoom(market)
}

func runSessionGaugeLoop(ctx context.Context, dispatcher *worldcore.Dispatcher, m *metrics.Metrics) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ActiveSessions.Set(float64(dispatcher.SessionCount()))
		}
	}
}

func runMetricsServer(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { <-ctx.Done(); srv.Close() }()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
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
