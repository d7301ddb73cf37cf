package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unisell/server/internal/cache"
	"unisell/server/internal/config"
	"unisell/server/internal/database"
	"unisell/server/internal/handlers"
	"unisell/server/internal/logger"
	"unisell/server/internal/messaging"
	"unisell/server/internal/routes"
	"unisell/server/internal/store"
	"unisell/server/internal/utils"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// backend is the selected message store with its account directory
type backend struct {
	messages store.MessageStore
	accounts store.Directory
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Store.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &backend{
			messages: store.NewPostgres(pool),
			accounts: store.NewPostgresDirectory(pool),
			close:    pool.Close,
		}, nil

	case config.DriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		messages := store.NewMongo(db)
		if cfg.Store.AutoMigrate {
			if err := messages.EnsureIndexes(ctx); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
		}
		return &backend{
			messages: messages,
			accounts: store.NewMongoDirectory(db),
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, messages are lost on restart")
		return &backend{
			messages: store.NewMemory(),
			accounts: store.NewMemoryDirectory(),
			close:    func() {},
		}, nil
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func run() error {
	cfg, envFound, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if !envFound {
		log.Info("no .env file found, using process environment")
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = "development-only-secret"
		log.Warn("JWT_SECRET not set, using an insecure development secret")
	}
	utils.SetSecret([]byte(secret))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	b, err := openBackend(ctx, cfg, log)
	cancel()
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer b.close()

	accounts := b.accounts
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Connect(ctx, cfg.Redis.URL, log)
		cancel()
		if err != nil {
			return err
		}
		defer rdb.Close()
		accounts = cache.NewDirectory(rdb, accounts, cfg.Redis.CacheTTL, log.Named("account-cache"))
	}

	svc := messaging.NewService(b.messages, accounts,
		messaging.WithMaxLength(cfg.Messages.MaxLength),
		messaging.WithLogger(log.Named("messaging")))

	app := routes.NewApp(log, cfg.CORSOrigins, routes.Deps{
		Messages:      handlers.NewMessageHandler(svc, log.Named("http")),
		StoreDriver:   cfg.Store.Driver,
		Ping:          svc.Ping,
		SendPerMinute: cfg.Messages.SendPerMinute,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("store", cfg.Store.Driver))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	return app.ShutdownWithTimeout(cfg.ShutdownTimeout)
}

func main() {
	if err := run(); err != nil {
		logger.New(os.Getenv("APP_ENV"), "error").Fatal("server exited", zap.Error(err))
	}
}
