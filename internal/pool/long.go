package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// OpenLongResult reports the position minted by OpenLong.
type OpenLongResult struct {
	MaturityTime int64
	BondProceeds fixedpoint.FixedPoint
}

// OpenLong deposits base and buys bonds at a discount. The position is
// backdated to the latest checkpoint, so its maturity is always one
// full position duration from a checkpoint boundary.
func (p *Pool) OpenLong(ctx context.Context, trader common.Address, baseAmount, minOutput fixedpoint.FixedPoint) (OpenLongResult, error) {
	var out OpenLongResult
	if err := p.lock(); err != nil {
		return out, err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return out, ErrNotInitialized
	}
	if baseAmount.Lt(p.cfg.MinimumTransactionAmount) {
		return out, ErrMinimumTransactionAmount
	}

	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return out, fmt.Errorf("price per share: %w", err)
	}
	st := p.state.Clone()
	if err := p.ensureCheckpoint(&st, c); err != nil {
		return out, err
	}

	// Round the trader's share credit down.
	shares, err := baseAmount.DivDown(c)
	if err != nil {
		return out, err
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return out, err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return out, err
	}
	bondsOut, err := crv.BondsOutGivenSharesIn(shares)
	if err != nil {
		return out, err
	}

	curveFeeBonds, err := p.cfg.Fees.OpenLongCurveFee(shares, c, price)
	if err != nil {
		return out, err
	}
	govFeeShares, err := p.cfg.Fees.OpenLongGovernanceFee(curveFeeBonds, c, price)
	if err != nil {
		return out, err
	}
	bondProceeds, err := bondsOut.Sub(curveFeeBonds)
	if err != nil {
		return out, ErrInsufficientLiquidity
	}
	if bondProceeds.Lt(minOutput) {
		return out, ErrOutputLimitExceeded
	}

	maturityTime := p.latestCheckpointTime() + p.cfg.PositionDuration

	st.ShareReserves = st.ShareReserves.Add(shares).SaturatingSub(govFeeShares)
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(govFeeShares)
	bondsRemaining, err := st.BondReserves.Sub(bondProceeds)
	if err != nil {
		return out, ErrInsufficientLiquidity
	}
	st.BondReserves = bondsRemaining
	st.LongAverageMaturityTime = growAverage(
		st.LongAverageMaturityTime, st.LongsOutstanding, bondProceeds, maturityTime)
	st.LongsOutstanding = st.LongsOutstanding.Add(bondProceeds)
	st.LongExposure = st.LongExposure.Add(bondProceeds)

	if err := p.checkSolvency(st, c); err != nil {
		return out, err
	}

	if _, err := p.vault.Deposit(ctx, baseAmount); err != nil {
		return out, fmt.Errorf("vault deposit: %w", err)
	}
	if err := p.ledger.Mint(ledger.LongAssetID(maturityTime), trader, bondProceeds); err != nil {
		return out, err
	}
	p.state = st

	p.logger.Info("open-long",
		zap.String("trader", trader.Hex()),
		zap.String("base_amount", baseAmount.String()),
		zap.String("bond_proceeds", bondProceeds.String()),
		zap.Int64("maturity_time", maturityTime),
	)
	observeOperation("open-long", baseAmount)
	p.observeState()
	return OpenLongResult{MaturityTime: maturityTime, BondProceeds: bondProceeds}, nil
}

// CloseLong sells a long position back to the pool. The portion of the
// term already elapsed redeems flat at face value; the remainder is
// sold on the curve. Positions past maturity draw on the zombie
// reserves set aside when their checkpoint settled.
func (p *Pool) CloseLong(ctx context.Context, trader common.Address, maturityTime int64, bondAmount, minOutput fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if err := p.lock(); err != nil {
		return fixedpoint.Zero(), err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return fixedpoint.Zero(), ErrNotInitialized
	}
	if bondAmount.Lt(p.cfg.MinimumTransactionAmount) {
		return fixedpoint.Zero(), ErrMinimumTransactionAmount
	}
	if err := p.validMaturity(maturityTime); err != nil {
		return fixedpoint.Zero(), err
	}
	if bondAmount.Gt(p.ledger.BalanceOf(ledger.LongAssetID(maturityTime), trader)) {
		return fixedpoint.Zero(), ledger.ErrInsufficientBalance
	}

	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("price per share: %w", err)
	}
	st := p.state.Clone()
	if err := p.ensureCheckpoint(&st, c); err != nil {
		return fixedpoint.Zero(), err
	}

	var proceeds fixedpoint.FixedPoint
	if maturityTime <= st.LastSettledTime {
		proceeds, err = p.closeMaturedLong(&st, bondAmount, c)
	} else {
		proceeds, err = p.closeActiveLong(&st, bondAmount, maturityTime, c)
	}
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if err := p.checkSolvency(st, c); err != nil {
		return fixedpoint.Zero(), err
	}
	if proceeds.MulDown(c).Lt(minOutput) {
		return fixedpoint.Zero(), ErrOutputLimitExceeded
	}

	baseProceeds, err := p.vault.Withdraw(ctx, proceeds)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("vault withdraw: %w", err)
	}
	if err := p.ledger.Burn(ledger.LongAssetID(maturityTime), trader, bondAmount); err != nil {
		return fixedpoint.Zero(), err
	}
	p.state = st

	p.logger.Info("close-long",
		zap.String("trader", trader.Hex()),
		zap.Int64("maturity_time", maturityTime),
		zap.String("bond_amount", bondAmount.String()),
		zap.String("base_proceeds", baseProceeds.String()),
	)
	observeOperation("close-long", baseProceeds)
	p.observeState()
	return baseProceeds, nil
}

// closeMaturedLong pays face value minus the flat fee from the zombie
// reserves.
func (p *Pool) closeMaturedLong(st *MarketState, bondAmount, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	flatFee, err := p.cfg.Fees.FlatFee(bondAmount, fixedpoint.Zero(), fixedpoint.One())
	if err != nil {
		return fixedpoint.Zero(), err
	}
	baseOwed, err := bondAmount.Sub(flatFee)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	// Rounds down against the trader.
	shares, err := baseOwed.DivDown(sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	shares = shares.Min(st.ZombieShareReserves)
	st.ZombieShareReserves = st.ZombieShareReserves.SaturatingSub(shares)
	st.ZombieBaseProceeds = st.ZombieBaseProceeds.SaturatingSub(baseOwed)
	return shares, nil
}

// closeActiveLong splits the close into flat and curve legs and
// charges fees on each.
func (p *Pool) closeActiveLong(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	tau := p.timeRemaining(maturityTime)

	matured, err := fixedpoint.One().Sub(tau)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	// Flat payout rounds down: the trader receives less.
	flatShares, err := bondAmount.MulDown(matured).DivDown(sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}

	crv, err := p.curve(*st, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return fixedpoint.Zero(), err
	}
	// The curve leg rounds down so the trader sells fewer bonds back.
	curveBonds := bondAmount.MulDown(tau)
	curveShares := fixedpoint.Zero()
	if !curveBonds.IsZero() {
		curveShares, err = crv.SharesOutGivenBondsIn(curveBonds)
		if err != nil {
			return fixedpoint.Zero(), err
		}
	}

	curveFee, err := p.cfg.Fees.CloseLongCurveFee(bondAmount, tau, sharePrice, price)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	flatFee, err := p.cfg.Fees.FlatFee(bondAmount, tau, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	gov := p.cfg.Fees.GovernanceShare(curveFee.Add(flatFee))

	proceeds, err := flatShares.Add(curveShares).Sub(curveFee.Add(flatFee))
	if err != nil {
		return fixedpoint.Zero(), ErrInsufficientLiquidity
	}

	st.ShareReserves = st.ShareReserves.SaturatingSub(proceeds.Add(gov))
	// The flat leg leaves through the share adjustment so only the
	// curve leg moves the effective reserves the pool prices against.
	st.ShareAdjustment = new(big.Int).Sub(st.shareAdjustment(), flatShares.Signed())
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(gov)
	st.BondReserves = st.BondReserves.Add(curveBonds)
	p.reduceLongsOutstanding(st, bondAmount, maturityTime)
	return proceeds, nil
}
