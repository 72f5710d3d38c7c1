package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Start checkpoint minter
	a.wg.Add(1)
	go a.runCheckpointMinter()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// runCheckpointMinter mints due checkpoints on the grid so matured
// positions settle even when no trader touches the pool.
func (a *App) runCheckpointMinter() {
	defer a.wg.Done()

	duration := a.pool.Config().CheckpointDuration
	ticker := time.NewTicker(time.Duration(duration) * time.Second / 4)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.mintDueCheckpoint(duration)
		}
	}
}

func (a *App) mintDueCheckpoint(duration int64) {
	now := time.Now().Unix()
	checkpointTime := now - now%duration

	if _, minted := a.pool.CheckpointAt(checkpointTime); minted {
		return
	}

	if err := a.pool.Checkpoint(a.ctx, checkpointTime); err != nil {
		a.logger.Warn("checkpoint-mint-failed",
			zap.Int64("checkpoint-time", checkpointTime),
			zap.Error(err))
		return
	}

	a.logger.Info("checkpoint-minted", zap.Int64("checkpoint-time", checkpointTime))
	a.recorder.RecordCheckpoint(a.ctx, checkpointTime)
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
