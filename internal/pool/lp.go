package pool

import (
	"math/big"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// presentValue estimates the LPs' claim on the pool in shares: the
// reserves above the floor, plus what unwinding the net outstanding
// position against the curve would return.
func (p *Pool) presentValue(st MarketState, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	pv := st.ShareReserves.Signed()
	pv.Sub(pv, p.cfg.MinimumShareReserves.Signed())

	netCurve, err := p.netCurveTrade(st, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	pv.Add(pv, netCurve)

	netFlat, err := p.netFlatTrade(st, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	pv.Add(pv, netFlat)

	if pv.Sign() < 0 {
		pv.SetInt64(0)
	}
	return fixedpoint.FromBig(pv)
}

// netCurveTrade values the curve leg of unwinding all outstanding
// positions, in shares. A net long book means the pool sells bonds; a
// net short book means it buys them back.
func (p *Pool) netCurveTrade(st MarketState, sharePrice fixedpoint.FixedPoint) (*big.Int, error) {
	tauLong := p.normalizedTimeRemaining(st.LongAverageMaturityTime)
	tauShort := p.normalizedTimeRemaining(st.ShortAverageMaturityTime)

	longCurve := st.LongsOutstanding.MulDown(tauLong)
	shortCurve := st.ShortsOutstanding.MulDown(tauShort)

	crv, err := p.curve(st, sharePrice)
	if err != nil {
		return nil, err
	}

	if longCurve.Gt(shortCurve) {
		// Net long: unwinding pays the excess bonds' sale proceeds out
		// of the reserves. Bonds beyond what the curve can absorb are
		// marked at zero.
		net, err := longCurve.Sub(shortCurve)
		if err != nil {
			return nil, err
		}
		maxSell, err := crv.MaxSellBondsIn(st.shareAdjustment(), p.cfg.MinimumShareReserves)
		if err != nil {
			return nil, err
		}
		proceeds, err := crv.SharesOutGivenBondsIn(net.Min(maxSell))
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(proceeds.Signed()), nil
	}
	if shortCurve.Gt(longCurve) {
		// Net short: unwinding has shorts buying the deficit back,
		// paying shares into the reserves. Bonds beyond the curve's
		// capacity are marked at one base each.
		net, err := shortCurve.Sub(longCurve)
		if err != nil {
			return nil, err
		}
		maxBuy, err := crv.MaxBuyBondsOut()
		if err != nil {
			return nil, err
		}
		buyable := net.Min(maxBuy)
		cost, err := crv.SharesInGivenBondsOutUp(buyable)
		if err != nil {
			return nil, err
		}
		if net.Gt(buyable) {
			overflow, err := net.Sub(buyable)
			if err != nil {
				return nil, err
			}
			extra, err := overflow.DivUp(sharePrice)
			if err != nil {
				return nil, err
			}
			cost = cost.Add(extra)
		}
		return cost.Signed(), nil
	}
	return new(big.Int), nil
}

// netFlatTrade values the matured legs: shorts pay their face value in
// at close while longs take theirs out.
func (p *Pool) netFlatTrade(st MarketState, sharePrice fixedpoint.FixedPoint) (*big.Int, error) {
	tauLong := p.normalizedTimeRemaining(st.LongAverageMaturityTime)
	tauShort := p.normalizedTimeRemaining(st.ShortAverageMaturityTime)

	one := fixedpoint.One()
	longMatured, err := one.Sub(tauLong)
	if err != nil {
		return nil, err
	}
	shortMatured, err := one.Sub(tauShort)
	if err != nil {
		return nil, err
	}

	longFlat, err := st.LongsOutstanding.MulDown(longMatured).DivDown(sharePrice)
	if err != nil {
		return nil, err
	}
	shortFlat, err := st.ShortsOutstanding.MulDown(shortMatured).DivDown(sharePrice)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(shortFlat.Signed(), longFlat.Signed()), nil
}

// normalizedTimeRemaining converts a fixed-point average maturity time
// into a normalized time remaining in [0, 1].
func (p *Pool) normalizedTimeRemaining(avgMaturity fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	if avgMaturity.IsZero() {
		return fixedpoint.Zero()
	}
	latest := fixedpoint.FromUint64(uint64(p.latestCheckpointTime()))
	remaining, err := avgMaturity.Sub(latest)
	if err != nil {
		return fixedpoint.Zero()
	}
	tau, err := remaining.DivDown(fixedpoint.FromUint64(uint64(p.cfg.PositionDuration)))
	if err != nil {
		return fixedpoint.Zero()
	}
	return tau.Min(fixedpoint.One())
}

// effectiveLPSupply is the denominator of the LP share price: active
// LP shares plus withdrawal shares still waiting for idle capital.
func (st MarketState) effectiveLPSupply() fixedpoint.FixedPoint {
	return st.LPTotalSupply.Add(st.WithdrawalSharesOutstanding)
}

// lpSharePrice returns the present value per effective LP share.
func (p *Pool) lpSharePrice(st MarketState, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	supply := st.effectiveLPSupply()
	if supply.IsZero() {
		return fixedpoint.Zero(), nil
	}
	pv, err := p.presentValue(st, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return pv.DivDown(supply)
}

// rescaleBondReserves adjusts the share adjustment and bond reserves
// proportionally to a change in share reserves so that liquidity
// changes do not move the spot price.
func rescaleBondReserves(st *MarketState, oldShareReserves, oldEffective fixedpoint.FixedPoint) error {
	if oldShareReserves.IsZero() || oldEffective.IsZero() {
		return nil
	}
	if zeta := st.shareAdjustment(); zeta.Sign() != 0 {
		scaled := new(big.Int).Mul(zeta, st.ShareReserves.Signed())
		scaled.Quo(scaled, oldShareReserves.Signed())
		st.ShareAdjustment = scaled
	}
	newEffective, err := effectiveReserves(*st)
	if err != nil {
		return err
	}
	scaled, err := st.BondReserves.MulDivDown(newEffective, oldEffective)
	if err != nil {
		return err
	}
	st.BondReserves = scaled
	return nil
}

func effectiveReserves(st MarketState) (fixedpoint.FixedPoint, error) {
	raw := new(big.Int).Sub(st.ShareReserves.Signed(), st.shareAdjustment())
	if raw.Sign() < 0 {
		return fixedpoint.Zero(), ErrInsufficientLiquidity
	}
	return fixedpoint.FromBig(raw)
}
