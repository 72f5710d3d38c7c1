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

// OpenShortResult reports the position minted by OpenShort.
type OpenShortResult struct {
	MaturityTime int64
	BaseDeposit  fixedpoint.FixedPoint
}

// OpenShort sells bondAmount of bonds the trader does not hold. The
// trader deposits the maximum possible loss up front: the face value
// minus what the pool pays for the bonds. In exchange the short
// collects the vault's variable yield on the full face value.
func (p *Pool) OpenShort(ctx context.Context, trader common.Address, bondAmount, maxDeposit fixedpoint.FixedPoint) (OpenShortResult, error) {
	var out OpenShortResult
	if err := p.lock(); err != nil {
		return out, err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return out, ErrNotInitialized
	}
	if bondAmount.Lt(p.cfg.MinimumTransactionAmount) {
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

	crv, err := p.curve(st, c)
	if err != nil {
		return out, err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return out, err
	}
	principal, err := crv.SharesOutGivenBondsIn(bondAmount)
	if err != nil {
		return out, err
	}

	curveFee, err := p.cfg.Fees.OpenShortCurveFee(bondAmount, c, price)
	if err != nil {
		return out, err
	}
	gov := p.cfg.Fees.GovernanceShare(curveFee)

	// The pool pays principal minus the full curve fee; the LP part of
	// the fee stays in the reserves.
	traderCredit, err := principal.Sub(curveFee)
	if err != nil {
		return out, ErrNegativeProceeds
	}
	basePaid := traderCredit.MulDown(c)

	checkpointTime := p.latestCheckpointTime()
	openPrice := p.checkpoints.Get(checkpointTime).SharePrice
	if openPrice.IsZero() {
		openPrice = c
	}

	// Deposit covers the face value marked at the checkpoint's open
	// price, less the pool's payment. Rounds up: the short posts more.
	faceValue, err := bondAmount.MulDivUp(c, openPrice)
	if err != nil {
		return out, err
	}
	deposit, err := faceValue.Sub(basePaid)
	if err != nil {
		return out, ErrNegativeProceeds
	}
	if deposit.Lt(p.cfg.MinimumTransactionAmount) {
		return out, ErrMinimumTransactionAmount
	}
	if !maxDeposit.IsZero() && deposit.Gt(maxDeposit) {
		return out, ErrOutputLimitExceeded
	}

	maturityTime := checkpointTime + p.cfg.PositionDuration

	poolShareDelta, err := principal.Sub(curveFee.SaturatingSub(gov))
	if err != nil {
		return out, err
	}
	reservesRemaining, err := st.ShareReserves.Sub(poolShareDelta)
	if err != nil {
		return out, ErrInsufficientLiquidity
	}
	st.ShareReserves = reservesRemaining
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(gov)
	st.BondReserves = st.BondReserves.Add(bondAmount)
	st.ShortAverageMaturityTime = growAverage(
		st.ShortAverageMaturityTime, st.ShortsOutstanding, bondAmount, maturityTime)
	st.ShortsOutstanding = st.ShortsOutstanding.Add(bondAmount)

	if err := p.checkSolvency(st, c); err != nil {
		return out, err
	}

	// The deposit sits in the vault as collateral outside the reserves.
	if _, err := p.vault.Deposit(ctx, deposit); err != nil {
		return out, fmt.Errorf("vault deposit: %w", err)
	}
	if err := p.ledger.Mint(ledger.ShortAssetID(maturityTime), trader, bondAmount); err != nil {
		return out, err
	}
	p.state = st

	p.logger.Info("open-short",
		zap.String("trader", trader.Hex()),
		zap.String("bond_amount", bondAmount.String()),
		zap.String("base_deposit", deposit.String()),
		zap.Int64("maturity_time", maturityTime),
	)
	observeOperation("open-short", deposit)
	p.observeState()
	return OpenShortResult{MaturityTime: maturityTime, BaseDeposit: deposit}, nil
}

// CloseShort buys back the shorted bonds and returns the trader's
// remaining margin plus accrued variable interest. Matured positions
// draw on the zombie reserves.
func (p *Pool) CloseShort(ctx context.Context, trader common.Address, maturityTime int64, bondAmount, minOutput fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
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
	if bondAmount.Gt(p.ledger.BalanceOf(ledger.ShortAssetID(maturityTime), trader)) {
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
		proceeds, err = p.closeMaturedShort(&st, bondAmount, maturityTime, c)
	} else {
		proceeds, err = p.closeActiveShort(&st, bondAmount, maturityTime, c)
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
	if err := p.ledger.Burn(ledger.ShortAssetID(maturityTime), trader, bondAmount); err != nil {
		return fixedpoint.Zero(), err
	}
	p.state = st

	p.logger.Info("close-short",
		zap.String("trader", trader.Hex()),
		zap.Int64("maturity_time", maturityTime),
		zap.String("bond_amount", bondAmount.String()),
		zap.String("base_proceeds", baseProceeds.String()),
	)
	observeOperation("close-short", baseProceeds)
	p.observeState()
	return baseProceeds, nil
}

// closeMaturedShort pays the interest set aside at settlement from the
// zombie reserves.
func (p *Pool) closeMaturedShort(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	openPrice := p.openSharePrice(maturityTime)
	closePrice := sharePrice
	if cp := p.checkpoints.Get(maturityTime); cp.Minted() {
		closePrice = cp.SharePrice
	}

	interest := fixedpoint.Zero()
	if closePrice.Gt(openPrice) {
		spread, err := closePrice.Sub(openPrice)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		baseInterest, err := bondAmount.MulDivDown(spread, openPrice)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		interest = baseInterest
	}
	flatFee, err := p.cfg.Fees.FlatFee(bondAmount, fixedpoint.Zero(), fixedpoint.One())
	if err != nil {
		return fixedpoint.Zero(), err
	}
	baseOwed := interest.SaturatingSub(flatFee)
	shares, err := baseOwed.DivDown(sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	shares = shares.Min(st.ZombieShareReserves)
	st.ZombieShareReserves = st.ZombieShareReserves.SaturatingSub(shares)
	st.ZombieBaseProceeds = st.ZombieBaseProceeds.SaturatingSub(baseOwed)
	return shares, nil
}

// closeActiveShort charges the trader for buying the curve leg back
// and returns margin plus interest on the face value.
func (p *Pool) closeActiveShort(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	tau := p.timeRemaining(maturityTime)
	openPrice := p.openSharePrice(maturityTime)

	crv, err := p.curve(*st, sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return fixedpoint.Zero(), err
	}

	// Buyback legs round up: the trader owes more shares.
	curveBonds := bondAmount.MulUp(tau)
	payment := fixedpoint.Zero()
	if !curveBonds.IsZero() {
		payment, err = crv.SharesInGivenBondsOutUp(curveBonds)
		if err != nil {
			return fixedpoint.Zero(), err
		}
	}
	matured, err := fixedpoint.One().Sub(tau)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	// Flat repayment rounds up too.
	flatShares, err := bondAmount.MulUp(matured).DivUp(sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
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

	// The short's locked value is the face value plus variable
	// interest since open, in current shares. Rounds down: the
	// trader's claim never exceeds what was locked.
	lockedShares, err := bondAmount.MulDivDown(sharePrice, openPrice.MulDown(sharePrice))
	if err != nil {
		return fixedpoint.Zero(), err
	}
	owed := payment.Add(flatShares).Add(curveFee).Add(flatFee)
	proceeds, err := lockedShares.Sub(owed)
	if err != nil {
		return fixedpoint.Zero(), ErrNegativeProceeds
	}

	st.ShareReserves = st.ShareReserves.Add(payment.Add(flatShares)).
		Add(curveFee.Add(flatFee).SaturatingSub(gov))
	// The flat repayment enters through the share adjustment; only the
	// curve buyback moves the effective reserves.
	st.ShareAdjustment = new(big.Int).Add(st.shareAdjustment(), flatShares.Signed())
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(gov)
	remaining, err := st.BondReserves.Sub(curveBonds)
	if err != nil {
		return fixedpoint.Zero(), ErrInsufficientLiquidity
	}
	st.BondReserves = remaining
	p.reduceShortsOutstanding(st, bondAmount, maturityTime)
	return proceeds, nil
}
