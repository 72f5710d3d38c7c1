package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/internal/storage"
	"github.com/mselser95/hyperdrive-amm/internal/vault"
	"github.com/mselser95/hyperdrive-amm/pkg/cache"
	"github.com/mselser95/hyperdrive-amm/pkg/config"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
	"github.com/mselser95/hyperdrive-amm/pkg/healthprobe"
	"github.com/mselser95/hyperdrive-amm/pkg/httpserver"
	"github.com/mselser95/hyperdrive-amm/pkg/stream"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	// Setup pool
	hyperPool, err := setupPool(cfg, logger, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup pool: %w", err)
	}

	// Setup storage
	poolStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	// Setup event stream
	hub := stream.NewHub(&stream.HubConfig{
		BufferSize: cfg.StreamBufferSize,
		Logger:     logger,
	})

	recorder := NewRecorder(hyperPool, poolStorage, hub, logger)

	// Setup quote cache
	quoteCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	// Setup HTTP server
	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Pool:          hyperPool,
		Recorder:      recorder,
		QuoteCache:    quoteCache,
		QuoteCacheTTL: cfg.QuoteCacheTTL,
		Stream:        hub,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		pool:          hyperPool,
		storage:       poolStorage,
		hub:           hub,
		recorder:      recorder,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupPool(cfg *config.Config, logger *zap.Logger, opts *Options) (*pool.Pool, error) {
	path := cfg.PoolConfigPath
	if opts.PoolConfigPath != "" {
		path = opts.PoolConfigPath
	}

	poolCfg, err := config.LoadPoolFile(path)
	if err != nil {
		return nil, fmt.Errorf("load pool file: %w", err)
	}

	initialPrice, err := fixedpoint.Parse(cfg.VaultInitialSharePrice)
	if err != nil {
		return nil, fmt.Errorf("parse VAULT_INITIAL_SHARE_PRICE: %w", err)
	}
	apr, err := fixedpoint.Parse(cfg.VaultAPR)
	if err != nil {
		return nil, fmt.Errorf("parse VAULT_APR: %w", err)
	}

	src := vault.NewMockSource(initialPrice, apr, time.Now)

	hyperPool, err := pool.New(pool.Options{
		Config: poolCfg,
		Vault:  src,
		Ledger: ledger.NewMemoryLedger(),
		Logger: logger,
		Now:    time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	logger.Info("pool-created",
		zap.String("pool-config", path),
		zap.Int64("position-duration", poolCfg.PositionDuration),
		zap.Int64("checkpoint-duration", poolCfg.CheckpointDuration),
		zap.String("time-stretch", poolCfg.TimeStretch.String()),
		zap.String("vault-apr", cfg.VaultAPR))

	return hyperPool, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items
		MaxCost:     1000,  // Maximum 1000 cached responses
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
