package yieldspace

import (
	"fmt"
	"math/big"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// MaxBuySharesIn returns the share payment that moves the spot price to
// its upper bound of one. At p = 1 the invariant collapses to
// k = ((c/µ) + 1) · (µ · ze')^(1-t), which pins the optimal reserves.
func (c Curve) MaxBuySharesIn() (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	cOverMu, err := c.SharePrice.DivUp(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err := k.DivDown(cOverMu.Add(fixedpoint.One()))
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err = powInverse(optimal, omt, false)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err = optimal.DivDown(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	in, err := optimal.Sub(c.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("max buy shares in: %w", ErrInsufficientLiquidity)
	}
	return in, nil
}

// MaxBuyBondsOut returns the maximum amount of bonds that can be bought
// before the spot price reaches one. The result is underestimated.
func (c Curve) MaxBuyBondsOut() (fixedpoint.FixedPoint, error) {
	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	cOverMu, err := c.SharePrice.DivDown(c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err := k.DivUp(cOverMu.Add(fixedpoint.One()))
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err = powInverse(optimalY, omt, true)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	out, err := c.BondReserves.Sub(optimalY)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("max buy bonds out: %w", ErrInsufficientLiquidity)
	}
	return out, nil
}

// MaxSellBondsIn returns the maximum amount of bonds that can be sold
// before the share reserves would fall below minShareReserves. The
// share adjustment shifts the floor when it is negative.
func (c Curve) MaxSellBondsIn(shareAdjustment *big.Int, minShareReserves fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if shareAdjustment != nil && shareAdjustment.Sign() < 0 {
		neg, err := fixedpoint.FromBig(new(big.Int).Neg(shareAdjustment))
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		minShareReserves = minShareReserves.Add(neg)
	}

	omt, err := c.oneMinusT()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := c.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// Substituting z = zMin into the invariant leaves the maximum bond
	// reserves y' = (k - (c/µ)·(µ·zMin)^(1-t))^(1/(1-t)).
	floorTerm, err := c.InitialSharePrice.MulUp(minShareReserves).Pow(omt)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	floorTerm, err = c.SharePrice.MulDivUp(floorTerm, c.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err := k.Sub(floorTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("max sell bonds in: %w", ErrInsufficientLiquidity)
	}
	optimalY, err = powInverse(optimalY, omt, false)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	in, err := optimalY.Sub(c.BondReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("max sell bonds in: %w", ErrInsufficientLiquidity)
	}
	return in, nil
}
