package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreOperation stores a committed pool operation.
func (p *PostgresStorage) StoreOperation(ctx context.Context, rec *OperationRecord) error {
	query := `
		INSERT INTO pool_operations (
			id, operation, trader, maturity_time,
			amount_in, amount_out, share_reserves, bond_reserves,
			executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.Operation,
		rec.Trader,
		rec.MaturityTime,
		rec.AmountIn,
		rec.AmountOut,
		rec.ShareReserves,
		rec.BondReserves,
		rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}

	p.logger.Debug("operation-stored",
		zap.String("operation-id", rec.ID),
		zap.String("operation", rec.Operation))

	return nil
}

// StoreCheckpoint stores a minted checkpoint.
func (p *PostgresStorage) StoreCheckpoint(ctx context.Context, rec *CheckpointRecord) error {
	query := `
		INSERT INTO pool_checkpoints (
			checkpoint_time, share_price, minted_at
		) VALUES (
			$1, $2, $3
		) ON CONFLICT (checkpoint_time) DO NOTHING
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.CheckpointTime,
		rec.SharePrice,
		rec.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	p.logger.Debug("checkpoint-stored",
		zap.Int64("checkpoint-time", rec.CheckpointTime),
		zap.String("share-price", rec.SharePrice))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
