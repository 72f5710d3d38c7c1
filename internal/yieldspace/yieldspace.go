// Package yieldspace solves the YieldSpace trading invariant
//
//	k = (c / µ) · (µ · ze)^(1-t) + y^(1-t)
//
// for the four trade directions the pool supports. Every solver rounds
// so that the pool keeps the benefit: amounts paid to traders are
// underestimated and amounts charged to traders are overestimated.
package yieldspace

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// ErrInsufficientLiquidity is returned when the invariant has no
// solution at the requested trade size.
var ErrInsufficientLiquidity = errors.New("insufficient liquidity")

// Curve captures the reserve levels and pricing parameters needed to
// quote a trade. ShareReserves must already be the effective share
// reserves (share reserves minus the share adjustment).
type Curve struct {
	ShareReserves     fixedpoint.FixedPoint // ze
	BondReserves      fixedpoint.FixedPoint // y
	SharePrice        fixedpoint.FixedPoint // c
	InitialSharePrice fixedpoint.FixedPoint // µ
	TimeStretch       fixedpoint.FixedPoint // t
}

// EffectiveShareReserves computes z - zeta, the share reserves net of
// the zeroing adjustment. A positive adjustment shrinks the curve's
// view of the reserves; a negative one grows it.
func EffectiveShareReserves(shareReserves fixedpoint.FixedPoint, shareAdjustment *big.Int) (fixedpoint.FixedPoint, error) {
	ze := new(big.Int).Sub(shareReserves.Big(), shareAdjustment)
	if ze.Sign() < 0 {
		return fixedpoint.FixedPoint{}, fmt.Errorf("effective share reserves: %w", ErrInsufficientLiquidity)
	}
	return fixedpoint.FromBig(ze)
}

func (c Curve) oneMinusT() (fixedpoint.FixedPoint, error) {
	return fixedpoint.One().Sub(c.TimeStretch)
}

// SpotPrice returns p = ((µ · ze) / y)^t. The price is recomputed on
// every quote rather than stored.
func (c Curve) SpotPrice() (fixedpoint.FixedPoint, error) {
	ratio, err := c.InitialSharePrice.MulDown(c.ShareReserves).DivDown(c.BondReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return ratio.Pow(c.TimeStretch)
}

// KUp computes the invariant, overestimating the result.
func (c Curve) KUp() (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err := c.InitialSharePrice.MulUp(c.ShareReserves).Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = c.SharePrice.MulDivUp(zTerm, c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := c.BondReserves.Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return zTerm.Add(yTerm), nil
}

// KDown computes the invariant, underestimating the result.
func (c Curve) KDown() (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err := c.InitialSharePrice.MulDown(c.ShareReserves).Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = c.SharePrice.MulDivDown(zTerm, c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := c.BondReserves.Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return zTerm.Add(yTerm), nil
}

// powInverse raises v to 1/(1-t). When larger is true the exponent is
// rounded so the result is overestimated, otherwise underestimated.
func powInverse(v, oneMinusT fixedpoint.FixedPoint, larger bool) (fixedpoint.FixedPoint, error) {
	var exp fixedpoint.FixedPoint
	var err error
	// For v >= 1 a larger exponent grows the result; for v < 1 it
	// shrinks it, so the exponent rounding flips around one.
	if v.Gte(fixedpoint.One()) == larger {
		exp, err = fixedpoint.One().DivUp(oneMinusT)
	} else {
		exp, err = fixedpoint.One().DivDown(oneMinusT)
	}
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return v.Pow(exp)
}

// BondsOutGivenSharesIn returns the bonds a trader receives for
// providing dz shares. The output is underestimated.
func (c Curve) BondsOutGivenSharesIn(dz fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	// Round k up to make the subtrahend on the bond side larger.
	k, err := c.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// (c / µ) · (µ · (ze + dz))^(1 - t), rounded down.
	zTerm, err := c.InitialSharePrice.MulDown(c.ShareReserves.Add(dz)).Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = c.SharePrice.MulDivDown(zTerm, c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	yTerm, err := k.Sub(zTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("bonds out: curve has no solution: %w", ErrInsufficientLiquidity)
	}
	yTerm, err = powInverse(yTerm, omt, true)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	out, err := c.BondReserves.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("bonds out: %w", ErrInsufficientLiquidity)
	}
	return out, nil
}

// SharesInGivenBondsOutUp returns the shares a trader must provide to
// receive dy bonds. The input is overestimated.
func (c Curve) SharesInGivenBondsOutUp(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	yRemaining, err := c.BondReserves.Sub(dy)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: bond reserves exhausted: %w", ErrInsufficientLiquidity)
	}
	yTerm, err := yRemaining.Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	diff, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: %w", ErrInsufficientLiquidity)
	}
	zTerm, err := diff.MulDivUp(c.InitialSharePrice, c.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = powInverse(zTerm, omt, true)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = zTerm.DivUp(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	in, err := zTerm.Sub(c.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: %w", ErrInsufficientLiquidity)
	}
	return in, nil
}

// SharesInGivenBondsOutDown returns the shares a trader must provide to
// receive dy bonds, underestimating the input. Used where the pool pays
// the shares, such as the net curve position in present value.
func (c Curve) SharesInGivenBondsOutDown(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	yRemaining, err := c.BondReserves.Sub(dy)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: bond reserves exhausted: %w", ErrInsufficientLiquidity)
	}
	yTerm, err := yRemaining.Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	diff, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: %w", ErrInsufficientLiquidity)
	}
	zTerm, err := diff.MulDivDown(c.InitialSharePrice, c.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = powInverse(zTerm, omt, false)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = zTerm.DivDown(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	in, err := zTerm.Sub(c.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares in: %w", ErrInsufficientLiquidity)
	}
	return in, nil
}

// SharesOutGivenBondsIn returns the shares a trader receives for
// selling dy bonds into the pool. The output is underestimated.
func (c Curve) SharesOutGivenBondsIn(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	yTerm, err := c.BondReserves.Add(dy).Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	diff, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("shares out: %w", ErrInsufficientLiquidity)
	}
	zTerm, err := diff.MulDivUp(c.InitialSharePrice, c.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = powInverse(zTerm, omt, true)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zTerm, err = zTerm.DivUp(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// The new share reserves cannot exceed the old ones; clamp the
	// one-wei rounding excess to zero.
	return c.ShareReserves.SaturatingSub(zTerm), nil
}
