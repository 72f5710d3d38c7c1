package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreOperation pretty-prints a committed operation to console.
func (c *ConsoleStorage) StoreOperation(ctx context.Context, rec *OperationRecord) error {
	fmt.Println("\n" + "────────────────────────────────────────────────────────────")
	fmt.Printf("POOL OPERATION: %s\n", rec.Operation)
	fmt.Println("────────────────────────────────────────────────────────────")
	fmt.Printf("ID:        %s\n", rec.ID)
	fmt.Printf("Trader:    %s\n", rec.Trader)
	if rec.MaturityTime != 0 {
		fmt.Printf("Maturity:  %s\n", time.Unix(rec.MaturityTime, 0).Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("In:        %s\n", rec.AmountIn)
	fmt.Printf("Out:       %s\n", rec.AmountOut)
	fmt.Printf("Reserves:  z=%s y=%s\n", rec.ShareReserves, rec.BondReserves)
	fmt.Printf("Time:      %s\n", rec.ExecutedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("────────────────────────────────────────────────────────────")
	return nil
}

// StoreCheckpoint logs a minted checkpoint.
func (c *ConsoleStorage) StoreCheckpoint(ctx context.Context, rec *CheckpointRecord) error {
	c.logger.Info("checkpoint",
		zap.Int64("checkpoint-time", rec.CheckpointTime),
		zap.String("share-price", rec.SharePrice))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	return nil
}
