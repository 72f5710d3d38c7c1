package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/internal/storage"
	"github.com/mselser95/hyperdrive-amm/internal/vault"
	"github.com/mselser95/hyperdrive-amm/pkg/config"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
	"github.com/mselser95/hyperdrive-amm/pkg/stream"
)

const testPoolFile = `
[pool]
initial_share_price = "1.0"
minimum_share_reserves = "1.0"
minimum_transaction_amount = "0.0001"
position_duration_seconds = 31536000
checkpoint_duration_seconds = 86400
time_stretch = "0.05"

[fees]
curve = "0.01"
flat = "0.0005"
governance = "0.15"
`

func writePoolFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte(testPoolFile), 0o600))
	return path
}

func testConfig(poolPath string) *config.Config {
	return &config.Config{
		LogLevel:               "info",
		HTTPPort:               "0",
		PoolConfigPath:         poolPath,
		VaultInitialSharePrice: "1.0",
		VaultAPR:               "0.05",
		QuoteCacheTTL:          time.Second,
		StreamBufferSize:       16,
		StorageMode:            "console",
	}
}

func TestNewAndShutdown(t *testing.T) {
	cfg := testConfig(writePoolFile(t))

	application, err := New(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NotNil(t, application)

	assert.NotNil(t, application.pool)
	assert.NotNil(t, application.recorder)

	require.NoError(t, application.Shutdown())
}

func TestNewRejectsMissingPoolFile(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.toml"))

	_, err := New(cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestOptionsOverridePoolConfigPath(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.toml"))
	override := writePoolFile(t)

	application, err := New(cfg, zap.NewNop(), &Options{PoolConfigPath: override})
	require.NoError(t, err)
	require.NoError(t, application.Shutdown())
}

type capturingStorage struct {
	operations  []*storage.OperationRecord
	checkpoints []*storage.CheckpointRecord
}

func (c *capturingStorage) StoreOperation(_ context.Context, rec *storage.OperationRecord) error {
	c.operations = append(c.operations, rec)
	return nil
}

func (c *capturingStorage) StoreCheckpoint(_ context.Context, rec *storage.CheckpointRecord) error {
	c.checkpoints = append(c.checkpoints, rec)
	return nil
}

func (c *capturingStorage) Close() error { return nil }

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()

	src := vault.NewMockSource(fixedpoint.One(), fixedpoint.Zero(), time.Now)
	p, err := pool.New(pool.Options{
		Config: pool.Config{
			InitialSharePrice:        fixedpoint.One(),
			MinimumShareReserves:     fixedpoint.One(),
			MinimumTransactionAmount: fixedpoint.MustParse("0.0001"),
			PositionDuration:         365 * 86_400,
			CheckpointDuration:       86_400,
			TimeStretch:              fixedpoint.MustParse("0.05"),
		},
		Vault:  src,
		Ledger: ledger.NewMemoryLedger(),
		Now:    time.Now,
	})
	require.NoError(t, err)
	return p
}

func TestRecorderStoresOperations(t *testing.T) {
	p := newTestPool(t)
	store := &capturingStorage{}
	hub := stream.NewHub(&stream.HubConfig{BufferSize: 4, Logger: zap.NewNop()})
	t.Cleanup(hub.Close)

	recorder := NewRecorder(p, store, hub, zap.NewNop())

	trader := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	recorder.RecordOperation(context.Background(), "open-long", trader, 100,
		fixedpoint.FromUint64(10_000), fixedpoint.FromUint64(10_200))

	require.Len(t, store.operations, 1)
	rec := store.operations[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "open-long", rec.Operation)
	assert.Equal(t, trader.Hex(), rec.Trader)
	assert.Equal(t, "10000", rec.AmountIn)
	assert.Equal(t, "10200", rec.AmountOut)
}

func TestRecorderSkipsUnmintedCheckpoints(t *testing.T) {
	p := newTestPool(t)
	store := &capturingStorage{}

	recorder := NewRecorder(p, store, nil, zap.NewNop())

	recorder.RecordCheckpoint(context.Background(), 12345)
	assert.Empty(t, store.checkpoints)
}

func TestRecorderStoresMintedCheckpoints(t *testing.T) {
	p := newTestPool(t)
	store := &capturingStorage{}

	ctx := context.Background()
	lp := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	_, err := p.Initialize(ctx, lp, fixedpoint.FromUint64(100_000), fixedpoint.MustParse("0.05"))
	require.NoError(t, err)

	now := time.Now().Unix()
	checkpointTime := now - now%86_400
	require.NoError(t, p.Checkpoint(ctx, checkpointTime))

	recorder := NewRecorder(p, store, nil, zap.NewNop())
	recorder.RecordCheckpoint(ctx, checkpointTime)

	require.Len(t, store.checkpoints, 1)
	assert.Equal(t, checkpointTime, store.checkpoints[0].CheckpointTime)
	assert.Equal(t, "1", store.checkpoints[0].SharePrice)
}
