// cmd/historian/main.go drains the match-event queue in Redis into the
// match_events table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/quizduel/internal/cache"
	"github.com/jason-s-yu/quizduel/internal/config"
	"github.com/jason-s-yu/quizduel/internal/database"
	"github.com/jason-s-yu/quizduel/internal/historian"
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
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is empty, nothing to drain")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("no database configured: set DATABASE_URL or PG_HOST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewEventQueue(rdb, cfg.Redis.Queue),
		database.NewStore(pool),
		historian.Config{BatchSize: cfg.Historian.BatchSize, FlushDelay: cfg.Historian.FlushDelay},
		logger,
	)
	logger.Infof("quizduel-historian started, draining %s", cfg.Redis.Queue)
	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
