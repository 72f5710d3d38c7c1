// Package storage persists committed pool operations and checkpoint
// snapshots for offline analysis.
package storage

import (
	"context"
	"time"
)

// OperationRecord is one committed pool operation.
type OperationRecord struct {
	ID           string
	Operation    string
	Trader       string
	MaturityTime int64
	// AmountIn and AmountOut are 18-decimal strings; input and output
	// are denominated per operation (base in / bonds out for an open
	// long, and so on).
	AmountIn  string
	AmountOut string
	// Reserve snapshot after the operation committed.
	ShareReserves string
	BondReserves  string
	ExecutedAt    time.Time
}

// CheckpointRecord is one minted checkpoint.
type CheckpointRecord struct {
	CheckpointTime int64
	SharePrice     string
	MintedAt       time.Time
}

// Storage is the interface for persisting pool activity.
type Storage interface {
	// StoreOperation stores a committed operation.
	StoreOperation(ctx context.Context, rec *OperationRecord) error

	// StoreCheckpoint stores a minted checkpoint.
	StoreCheckpoint(ctx context.Context, rec *CheckpointRecord) error

	// Close closes the storage connection.
	Close() error
}
