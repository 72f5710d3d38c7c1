package app

import (
	"context"
	"sync"

	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/internal/storage"
	"github.com/mselser95/hyperdrive-amm/pkg/config"
	"github.com/mselser95/hyperdrive-amm/pkg/healthprobe"
	"github.com/mselser95/hyperdrive-amm/pkg/httpserver"
	"github.com/mselser95/hyperdrive-amm/pkg/stream"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	pool          *pool.Pool
	storage       storage.Storage
	hub           *stream.Hub
	recorder      *Recorder
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// PoolConfigPath overrides the pool parameter file from the
	// environment, primarily for tests.
	PoolConfigPath string
}
