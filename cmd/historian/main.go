// cmd/historian is an asynchronous service that pops finished match records from the Redis queue and
// persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/pongarena/internal/cache"
	"github.com/jason-s-yu/pongarena/internal/config"
	"github.com/jason-s-yu/pongarena/internal/database"
	"github.com/jason-s-yu/pongarena/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, redisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("postgres unavailable")
	}
	defer pool.Close()

	store := database.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("failed to migrate database")
	}

	svc := historian.NewService(
		historian.NewRedisSource(rdb, cfg.QueueName),
		store,
		cfg.BatchSize,
		cfg.FlushDelay,
		logger.WithField("queue", cfg.QueueName),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("historian exited with error")
		os.Exit(1)
	}
	logger.Info("historian shutdown complete")
}
