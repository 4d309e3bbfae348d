package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/broadcast"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/dependencies/clock"
	"github.com/park285/cheese-arena/internal/dependencies/random"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/internal/store/postgres"
	"github.com/park285/cheese-arena/internal/store/redisstore"
	"github.com/park285/cheese-arena/internal/store/webhook"
	"github.com/park285/cheese-arena/internal/timectl"
	"github.com/park285/cheese-arena/internal/transport/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if _, err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	presets, err := timectl.Load(cfg.TimePresetsFile)
	if err != nil {
		logger.Fatal("time_presets_error", zap.Error(err))
	}
	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_error", zap.Error(err))
	}
	policy, err := game.ParsePolicy(cfg.TimeoutInsufficientPolicy)
	if err != nil {
		logger.Fatal("policy_error", zap.Error(err))
	}

	summaries, history, closers := openStores(ctx, cfg, logger)
	dispatcher := store.NewDispatcher(summaries, cfg.SummaryQueueSize, logger)

	clk := clock.New()
	channels := broadcast.NewRegistry(logger)
	games := game.NewRegistry(rules.New(), channels, clk, game.WithLogger(logger), game.WithPolicy(policy))
	lobbies := lobby.NewRegistry(lobby.Config{TTL: cfg.LobbyTTL, Presets: presets}, games, channels, clk, random.New(), logger)
	tracker := presence.NewTracker(channels, clk, cfg.HeartbeatTimeout, logger)

	a := arena.New(arena.Config{
		SweepInterval:        cfg.SweepInterval,
		HistoryLimit:         cfg.HistoryLimit,
		EndLobbyOnDisconnect: cfg.EndLobbyOnDisconnect,
	}, arena.Deps{
		Channels:  channels,
		Presence:  tracker,
		Lobbies:   lobbies,
		Games:     games,
		Summaries: dispatcher,
		History:   history,
		Clock:     clk,
		Logger:    logger,
	})
	defer a.Close()

	wsServer, err := ws.NewServer(a, messages, ws.WithOrigins(cfg.AllowedOrigins...), ws.WithLogger(logger))
	if err != nil {
		logger.Fatal("ws_server_error", zap.Error(err))
	}
	channels.AttachSender(wsServer)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(a, wsServer, messages, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.Run(ctx)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsServer.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("summary_drain_error", zap.Error(err))
	}
	for _, c := range closers {
		_ = c()
	}
	logger.Info("shutdown_done")
}

// openStores wires every configured sink. The in-memory store is always
// present so history works without external services; it is read last.
func openStores(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (store.SummaryStore, store.HistoryReader, []func() error) {
	var (
		sinks   []store.SummaryStore
		closers []func() error
	)
	if cfg.RedisURL != "" {
		rs, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_init_error", zap.Error(err))
		}
		sinks = append(sinks, rs)
		closers = append(closers, rs.Close)
		logger.Info("summary_sink", zap.String("kind", "redis"))
	}
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_init_error", zap.Error(err))
		}
		sinks = append(sinks, pg)
		closers = append(closers, pg.Close)
		logger.Info("summary_sink", zap.String("kind", "postgres"))
	}
	if cfg.SummaryWebhookURL != "" {
		hook, err := webhook.New(cfg.SummaryWebhookURL)
		if err != nil {
			logger.Fatal("webhook_init_error", zap.Error(err))
		}
		sinks = append(sinks, hook)
		logger.Info("summary_sink", zap.String("kind", "webhook"))
	}
	sinks = append(sinks, store.NewMemory())
	multi := store.NewMulti(sinks...)
	return multi, multi, closers
}
