package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/mselser95/hyperdrive-amm/internal/fees"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// poolFile mirrors the TOML layout of a pool parameter file. Decimal
// values are strings so that 18-decimal precision survives parsing.
type poolFile struct {
	Pool struct {
		InitialSharePrice         string `toml:"initial_share_price"`
		MinimumShareReserves      string `toml:"minimum_share_reserves"`
		MinimumTransactionAmount  string `toml:"minimum_transaction_amount"`
		PositionDurationSeconds   int64  `toml:"position_duration_seconds"`
		CheckpointDurationSeconds int64  `toml:"checkpoint_duration_seconds"`
		TimeStretch               string `toml:"time_stretch"`
	} `toml:"pool"`
	Fees struct {
		Curve      string `toml:"curve"`
		Flat       string `toml:"flat"`
		Governance string `toml:"governance"`
	} `toml:"fees"`
}

// LoadPoolFile parses a pool parameter file into a pool configuration.
func LoadPoolFile(path string) (pool.Config, error) {
	var file poolFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return pool.Config{}, fmt.Errorf("decode pool file %s: %w", path, err)
	}
	return poolConfigFromFile(file)
}

// ParsePoolFile parses pool parameters from TOML source.
func ParsePoolFile(data string) (pool.Config, error) {
	var file poolFile
	if _, err := toml.Decode(data, &file); err != nil {
		return pool.Config{}, fmt.Errorf("decode pool file: %w", err)
	}
	return poolConfigFromFile(file)
}

func poolConfigFromFile(file poolFile) (pool.Config, error) {
	parse := func(field, value, fallback string) (fixedpoint.FixedPoint, error) {
		if value == "" {
			value = fallback
		}
		v, err := fixedpoint.Parse(value)
		if err != nil {
			return fixedpoint.Zero(), fmt.Errorf("parse %s %q: %w", field, value, err)
		}
		return v, nil
	}

	cfg := pool.Config{
		PositionDuration:   file.Pool.PositionDurationSeconds,
		CheckpointDuration: file.Pool.CheckpointDurationSeconds,
	}
	var err error
	if cfg.InitialSharePrice, err = parse("initial_share_price", file.Pool.InitialSharePrice, "1.0"); err != nil {
		return pool.Config{}, err
	}
	if cfg.MinimumShareReserves, err = parse("minimum_share_reserves", file.Pool.MinimumShareReserves, "1.0"); err != nil {
		return pool.Config{}, err
	}
	if cfg.MinimumTransactionAmount, err = parse("minimum_transaction_amount", file.Pool.MinimumTransactionAmount, "0.0001"); err != nil {
		return pool.Config{}, err
	}
	if cfg.TimeStretch, err = parse("time_stretch", file.Pool.TimeStretch, "0.045"); err != nil {
		return pool.Config{}, err
	}

	var schedule fees.Schedule
	if schedule.Curve, err = parse("fees.curve", file.Fees.Curve, "0"); err != nil {
		return pool.Config{}, err
	}
	if schedule.Flat, err = parse("fees.flat", file.Fees.Flat, "0"); err != nil {
		return pool.Config{}, err
	}
	if schedule.Governance, err = parse("fees.governance", file.Fees.Governance, "0"); err != nil {
		return pool.Config{}, err
	}
	cfg.Fees = schedule

	if err := cfg.Validate(); err != nil {
		return pool.Config{}, fmt.Errorf("validate pool file: %w", err)
	}
	return cfg, nil
}
