package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/internal/storage"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
	"github.com/mselser95/hyperdrive-amm/pkg/stream"
	"go.uber.org/zap"
)

// Recorder persists committed pool operations and pushes them onto the
// event stream. Persistence failures are logged and swallowed so that
// a storage outage never rejects trades.
type Recorder struct {
	pool    *pool.Pool
	storage storage.Storage
	hub     *stream.Hub
	logger  *zap.Logger
}

// NewRecorder creates a new operation recorder.
func NewRecorder(p *pool.Pool, store storage.Storage, hub *stream.Hub, logger *zap.Logger) *Recorder {
	return &Recorder{
		pool:    p,
		storage: store,
		hub:     hub,
		logger:  logger,
	}
}

// RecordOperation stores and streams a committed pool operation.
func (r *Recorder) RecordOperation(ctx context.Context, operation string, trader common.Address, maturityTime int64, amountIn, amountOut fixedpoint.FixedPoint) {
	st := r.pool.State()

	rec := &storage.OperationRecord{
		ID:            uuid.NewString(),
		Operation:     operation,
		Trader:        trader.Hex(),
		MaturityTime:  maturityTime,
		AmountIn:      amountIn.String(),
		AmountOut:     amountOut.String(),
		ShareReserves: st.ShareReserves.String(),
		BondReserves:  st.BondReserves.String(),
		ExecutedAt:    time.Now().UTC(),
	}

	if err := r.storage.StoreOperation(ctx, rec); err != nil {
		r.logger.Error("store-operation-failed",
			zap.String("operation", operation),
			zap.String("id", rec.ID),
			zap.Error(err))
	}

	if r.hub != nil {
		r.hub.Publish(stream.Event{
			Type: "operation",
			Time: rec.ExecutedAt.Unix(),
			Data: operationEvent{
				ID:            rec.ID,
				Operation:     rec.Operation,
				Trader:        rec.Trader,
				MaturityTime:  rec.MaturityTime,
				AmountIn:      rec.AmountIn,
				AmountOut:     rec.AmountOut,
				ShareReserves: rec.ShareReserves,
				BondReserves:  rec.BondReserves,
			},
		})
	}
}

// RecordCheckpoint stores and streams a minted checkpoint.
func (r *Recorder) RecordCheckpoint(ctx context.Context, checkpointTime int64) {
	cp, minted := r.pool.CheckpointAt(checkpointTime)
	if !minted {
		return
	}

	rec := &storage.CheckpointRecord{
		CheckpointTime: checkpointTime,
		SharePrice:     cp.SharePrice.String(),
		MintedAt:       time.Now().UTC(),
	}

	if err := r.storage.StoreCheckpoint(ctx, rec); err != nil {
		r.logger.Error("store-checkpoint-failed",
			zap.Int64("checkpoint-time", checkpointTime),
			zap.Error(err))
	}

	if r.hub != nil {
		r.hub.Publish(stream.Event{
			Type: "checkpoint",
			Time: rec.MintedAt.Unix(),
			Data: checkpointEvent{
				CheckpointTime: rec.CheckpointTime,
				SharePrice:     rec.SharePrice,
			},
		})
	}
}

type operationEvent struct {
	ID            string `json:"id"`
	Operation     string `json:"operation"`
	Trader        string `json:"trader"`
	MaturityTime  int64  `json:"maturity_time,omitempty"`
	AmountIn      string `json:"amount_in"`
	AmountOut     string `json:"amount_out"`
	ShareReserves string `json:"share_reserves"`
	BondReserves  string `json:"bond_reserves"`
}

type checkpointEvent struct {
	CheckpointTime int64  `json:"checkpoint_time"`
	SharePrice     string `json:"share_price"`
}
