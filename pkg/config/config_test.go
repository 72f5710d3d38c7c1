package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "console", cfg.StorageMode)
	assert.Equal(t, "pool.toml", cfg.PoolConfigPath)
	assert.Equal(t, 500*time.Millisecond, cfg.QuoteCacheTTL)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORAGE_MODE", "postgres")
	t.Setenv("STREAM_BUFFER_SIZE", "1024")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StorageMode)
	assert.Equal(t, 1024, cfg.StreamBufferSize)
}

func TestLoadFromEnvRejectsBadStorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "redis")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestParsePoolFile(t *testing.T) {
	cfg, err := ParsePoolFile(`
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
`)
	require.NoError(t, err)

	assert.Equal(t, int64(31_536_000), cfg.PositionDuration)
	assert.Equal(t, int64(86_400), cfg.CheckpointDuration)
	assert.Equal(t, "0.05", cfg.TimeStretch.String())
	assert.Equal(t, "0.01", cfg.Fees.Curve.String())
}

func TestParsePoolFileRejectsBadDurations(t *testing.T) {
	_, err := ParsePoolFile(`
[pool]
position_duration_seconds = 100
checkpoint_duration_seconds = 33
`)
	assert.Error(t, err, "position duration must be a multiple of checkpoint duration")
}

func TestParsePoolFileRejectsBadDecimal(t *testing.T) {
	_, err := ParsePoolFile(`
[pool]
initial_share_price = "not-a-number"
position_duration_seconds = 86400
checkpoint_duration_seconds = 86400
`)
	assert.Error(t, err)
}
