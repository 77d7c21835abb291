// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/quizduel/internal/auth"
	"github.com/jason-s-yu/quizduel/internal/broadcast"
	"github.com/jason-s-yu/quizduel/internal/cache"
	"github.com/jason-s-yu/quizduel/internal/config"
	"github.com/jason-s-yu/quizduel/internal/content"
	"github.com/jason-s-yu/quizduel/internal/database"
	"github.com/jason-s-yu/quizduel/internal/handlers"
	"github.com/jason-s-yu/quizduel/internal/invite"
	"github.com/jason-s-yu/quizduel/internal/match"
	"github.com/jason-s-yu/quizduel/internal/middleware"
	"github.com/jason-s-yu/quizduel/internal/presence"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.LogLevel)
	}

	if cfg.Auth.PrivateKeyPath != "" || cfg.Auth.PublicKeyPath != "" {
		err = auth.InitFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenExpire)
	} else {
		logger.Warn("no JWT key paths configured, generating an ephemeral key pair")
		err = auth.Init(cfg.Auth.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("no database configured: set DATABASE_URL or PG_HOST")
	}
	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(rootCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	store := database.NewStore(pool)

	opts := []match.Option{match.WithQuestionsPerMatch(cfg.Match.QuestionsPerMatch)}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(rootCtx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			// history is best effort, play goes on without it
			logger.Warnf("redis unavailable, match history disabled: %v", err)
		} else {
			defer rdb.Close()
			opts = append(opts, match.WithRecorder(cache.NewEventQueue(rdb, cfg.Redis.Queue)))
			logger.Infof("recording match history to %s", cfg.Redis.Queue)
		}
	}

	registry := presence.NewRegistry()
	gateway := broadcast.NewGateway(registry, logger)
	coordinator := match.NewCoordinator(store, content.NewBank(store, logger), registry, gateway, logger, opts...)
	gateway.AttachRooms(coordinator)
	router := invite.NewRouter(registry, gateway, coordinator, logger)

	arena := handlers.NewArenaServer(registry, gateway, coordinator, router, auth.NewIdentity(store), logger)
	arena.SetOperationTimeout(cfg.Match.OperationTimeout)

	// socket handlers end when baseCtx is cancelled, after the arena drains
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(handlers.ArenaWSHandler(logger, arena)))
	mux.Handle("/api/health", middleware.LogMiddleware(logger)(handlers.HealthHandler(pool)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")
	arena.Drain()
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	logger.Infof("stopped with %d active rooms", coordinator.ActiveRooms())
}
