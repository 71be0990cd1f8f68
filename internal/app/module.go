// Package app composes the courier application graph.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courier-im/courier/internal/bus"
	"github.com/courier-im/courier/internal/config"
	"github.com/courier-im/courier/internal/home"
	"github.com/courier-im/courier/internal/lock"
	"github.com/courier-im/courier/internal/logging"
	"github.com/courier-im/courier/internal/provider"
	"github.com/courier-im/courier/internal/store"
	intsync "github.com/courier-im/courier/internal/sync"
)

// Params holds the resolved invocation settings passed to the fx module.
type Params struct {
	ConfigPath string
}

// Module returns the fx module wiring config, logging, store, provider
// client and the reconciliation engine, with lifecycle hooks that release
// the run lock and close the store on shutdown.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideClient,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = home.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger() (*zap.Logger, error) {
	if err := home.EnsureDir(); err != nil {
		return nil, err
	}
	return logging.New(home.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	l, err := lock.Acquire(home.Dir())
	if err != nil {
		return nil, err
	}
	logger.Info("run lock acquired", zap.String("dir", home.Dir()))
	return l, nil
}

func provideStore(cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = home.DBPath()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("store opened", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) *provider.Client {
	return provider.NewClient(provider.ClientOptions{
		BaseURL:     cfg.Provider.BaseURL,
		AccountSID:  cfg.Provider.AccountSID,
		AuthToken:   cfg.Provider.AuthToken,
		PageSizeMax: cfg.Provider.PageSizeMax,
	}, logger)
}

func provideEngine(db *store.DB, client *provider.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, client, cfg.Provider.OwnAddresses, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing run lock", zap.Error(err))
			}
			return nil
		},
	})
}
