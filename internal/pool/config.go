package pool

import (
	"fmt"
	"math"

	"github.com/mselser95/hyperdrive-amm/internal/fees"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// Config holds the immutable pool parameters fixed at deployment.
type Config struct {
	// InitialSharePrice is the vault share price when the pool was
	// deployed (µ). Trades price against µ·ze rather than raw shares
	// so that interest accrued before deployment is neutral.
	InitialSharePrice fixedpoint.FixedPoint

	// MinimumShareReserves is the share reserve floor (z_min). The
	// first LP's contribution permanently endows this amount.
	MinimumShareReserves fixedpoint.FixedPoint

	// MinimumTransactionAmount rejects dust trades and contributions.
	MinimumTransactionAmount fixedpoint.FixedPoint

	// PositionDuration is the term length in seconds. Must be a
	// multiple of CheckpointDuration.
	PositionDuration int64

	// CheckpointDuration is the checkpoint grid spacing in seconds.
	CheckpointDuration int64

	// TimeStretch calibrates the curve's rate sensitivity (t_s).
	TimeStretch fixedpoint.FixedPoint

	// Fees is the pool's fee schedule.
	Fees fees.Schedule
}

// Validate rejects configurations the pool cannot operate under.
func (c Config) Validate() error {
	if c.InitialSharePrice.IsZero() {
		return fmt.Errorf("initial share price must be positive: %w", fixedpoint.ErrInvalidInput)
	}
	if c.MinimumShareReserves.IsZero() {
		return fmt.Errorf("minimum share reserves must be positive: %w", fixedpoint.ErrInvalidInput)
	}
	if c.CheckpointDuration <= 0 {
		return fmt.Errorf("checkpoint duration must be positive: %w", fixedpoint.ErrInvalidInput)
	}
	if c.PositionDuration <= 0 || c.PositionDuration%c.CheckpointDuration != 0 {
		return fmt.Errorf("position duration must be a positive multiple of checkpoint duration: %w", fixedpoint.ErrInvalidInput)
	}
	if c.TimeStretch.IsZero() || c.TimeStretch.Gte(fixedpoint.One()) {
		return fmt.Errorf("time stretch must be in (0, 1): %w", fixedpoint.ErrInvalidInput)
	}
	if err := c.Fees.Validate(); err != nil {
		return fmt.Errorf("fee schedule: %w", err)
	}
	return nil
}

const secondsPerYear = 365 * 24 * 60 * 60

// annualizedDuration returns the position duration as a fraction of a
// year in fixed point.
func (c Config) annualizedDuration() fixedpoint.FixedPoint {
	frac, err := fixedpoint.FromUint64(uint64(c.PositionDuration)).DivDown(fixedpoint.FromUint64(secondsPerYear))
	if err != nil {
		return fixedpoint.Zero()
	}
	return frac
}

// TimeStretchForRate returns a time stretch calibrated so that the
// curve's sensitivity matches the target rate, following the
// empirically fitted calibration 5.24592/(0.04665*apr_pct).
func TimeStretchForRate(apr fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	pct := apr.Float64() * 100
	if pct <= 0 {
		pct = 1
	}
	tau := 5.24592 / (0.04665 * pct)
	return fixedpoint.MustParse(fmt.Sprintf("%.18f", math.Min(1/tau, 0.999999999999999999)))
}
