// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/auth"
	"github.com/jason-s-yu/pongarena/internal/cache"
	"github.com/jason-s-yu/pongarena/internal/config"
	"github.com/jason-s-yu/pongarena/internal/database"
	"github.com/jason-s-yu/pongarena/internal/game"
	"github.com/jason-s-yu/pongarena/internal/handlers"
	"github.com/jason-s-yu/pongarena/internal/lobby"
	"github.com/jason-s-yu/pongarena/internal/realtime"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// store is what the server needs from a backend: lobby state plus match history reads.
type store interface {
	lobby.Store
	handlers.MatchHistory
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := newIssuer(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise token issuer")
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	var publisher game.Publisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("redis unavailable")
		}
		defer rdb.Close()
		publisher = cache.NewPublisher(rdb, cfg.QueueName)
		logger.WithField("queue", cfg.QueueName).Info("publishing match records to redis")
	}

	hub := realtime.NewHub(logger.WithField("component", "hub"))

	gameCfg := game.DefaultConfig()
	gameCfg.TickRate = cfg.TickRate
	gameCfg.ScoreLimit = cfg.ScoreLimit
	matches := game.NewManager(ctx, gameCfg, cfg.ReadyTimeout, hub, publisher, logger.WithField("component", "game"))

	lobbies := lobby.NewService(st, hub, matches, cfg.SelectionTimeout, logger.WithField("component", "lobby"))
	matches.OnMatchEnd = func(lobbyID uuid.UUID) {
		if err := lobbies.FinishMatch(context.Background(), lobbyID); err != nil {
			logger.WithError(err).WithField("lobby_id", lobbyID).Error("failed to close lobby after match")
		}
	}

	api := handlers.NewServer(lobbies, matches, hub, issuer, st, logger)
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.Routes(cfg.AllowedOrigins),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		matches.Shutdown(shutdownCtx)
		lobbies.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.NewIssuerFromFiles(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
	}
	return auth.NewIssuer(cfg.TokenTTL)
}

func openStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (store, func(), error) {
	log := logger.WithField("driver", cfg.StoreDriver)
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		s, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("using sqlite store")
		return s, func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("failed to close sqlite store")
			}
		}, nil
	case config.StorePostgres:
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s := database.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return s, pool.Close, nil
	default:
		log.Warn("using in-memory store; lobbies will not survive a restart")
		return database.NewMemoryStore(), func() {}, nil
	}
}
