package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// lockedLPAddress holds the minimum share reserves' LP shares, which
// can never be redeemed. Seeding the floor through a burned LP
// position keeps the share price math uniform for every other LP.
var lockedLPAddress = common.Address{}

// Initialize seeds the reserves with the first contribution and prices
// the bond reserves so the pool opens at the target fixed rate. The
// minimum share reserves are endowed permanently; the caller receives
// LP shares for the remainder.
func (p *Pool) Initialize(ctx context.Context, lp common.Address, contribution, apr fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if err := p.lock(); err != nil {
		return fixedpoint.Zero(), err
	}
	defer p.unlock()

	if p.state.Initialized() {
		return fixedpoint.Zero(), ErrAlreadyInitialized
	}
	if contribution.Lt(p.cfg.MinimumTransactionAmount) {
		return fixedpoint.Zero(), ErrMinimumTransactionAmount
	}

	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("price per share: %w", err)
	}

	st := p.state.Clone()
	if err := p.ensureCheckpoint(&st, c); err != nil {
		return fixedpoint.Zero(), err
	}

	shares, err := contribution.DivDown(c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	lpShares, err := shares.Sub(p.cfg.MinimumShareReserves)
	if err != nil || lpShares.Lt(p.cfg.MinimumTransactionAmount) {
		return fixedpoint.Zero(), ErrMinimumShareReserves
	}

	bonds, err := p.initialBondReserves(shares, apr)
	if err != nil {
		return fixedpoint.Zero(), err
	}

	st.ShareReserves = shares
	st.BondReserves = bonds
	st.LPTotalSupply = shares

	if _, err := p.vault.Deposit(ctx, contribution); err != nil {
		return fixedpoint.Zero(), fmt.Errorf("vault deposit: %w", err)
	}
	if err := p.ledger.Mint(ledger.LPAssetID(), lockedLPAddress, p.cfg.MinimumShareReserves); err != nil {
		return fixedpoint.Zero(), err
	}
	if err := p.ledger.Mint(ledger.LPAssetID(), lp, lpShares); err != nil {
		return fixedpoint.Zero(), err
	}
	p.state = st

	p.logger.Info("initialize",
		zap.String("lp", lp.Hex()),
		zap.String("contribution", contribution.String()),
		zap.String("target_apr", apr.String()),
		zap.String("lp_shares", lpShares.String()),
	)
	observeOperation("initialize", contribution)
	p.observeState()
	return lpShares, nil
}

// initialBondReserves solves for the bond reserves that put the spot
// price at the target rate: y = µ·ze·(1 + r·t)^(1/t_s).
func (p *Pool) initialBondReserves(shares, apr fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	growth := fixedpoint.One().Add(apr.MulDown(p.cfg.annualizedDuration()))
	invStretch, err := fixedpoint.One().DivDown(p.cfg.TimeStretch)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	factor, err := growth.Pow(invStretch)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return p.cfg.InitialSharePrice.MulDown(shares).MulDown(factor), nil
}

// AddLiquidity mints LP shares against a base contribution, priced on
// the withdrawable reserves so that margin locked behind open longs
// does not dilute the join. The bond reserves scale proportionally so
// the fixed rate is unchanged. The caller's rate bounds protect
// against joining a mispriced pool.
func (p *Pool) AddLiquidity(ctx context.Context, lp common.Address, contribution, minAPR, maxAPR fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if err := p.lock(); err != nil {
		return fixedpoint.Zero(), err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return fixedpoint.Zero(), ErrNotInitialized
	}
	if contribution.Lt(p.cfg.MinimumTransactionAmount) {
		return fixedpoint.Zero(), ErrMinimumTransactionAmount
	}

	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("price per share: %w", err)
	}
	st := p.state.Clone()
	if err := p.ensureCheckpoint(&st, c); err != nil {
		return fixedpoint.Zero(), err
	}

	crv, err := p.curve(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return fixedpoint.Zero(), err
	}
	rate, err := p.rateFromPrice(price)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if rate.Lt(minAPR) || rate.Gt(maxAPR) {
		return fixedpoint.Zero(), ErrInvalidAPRBounds
	}

	shares, err := contribution.DivDown(c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	withdrawable := p.withdrawableShares(st, c)
	if withdrawable.IsZero() {
		return fixedpoint.Zero(), ErrInsufficientLiquidity
	}
	lpShares, err := shares.MulDivDown(st.effectiveLPSupply(), withdrawable)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if lpShares.Lt(p.cfg.MinimumTransactionAmount) {
		return fixedpoint.Zero(), ErrMinimumTransactionAmount
	}

	oldShares := st.ShareReserves
	oldEffective, err := effectiveReserves(st)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	st.ShareReserves = st.ShareReserves.Add(shares)
	if err := rescaleBondReserves(&st, oldShares, oldEffective); err != nil {
		return fixedpoint.Zero(), err
	}
	st.LPTotalSupply = st.LPTotalSupply.Add(lpShares)

	if _, err := p.vault.Deposit(ctx, contribution); err != nil {
		return fixedpoint.Zero(), fmt.Errorf("vault deposit: %w", err)
	}
	if err := p.ledger.Mint(ledger.LPAssetID(), lp, lpShares); err != nil {
		return fixedpoint.Zero(), err
	}
	p.state = st

	p.logger.Info("add-liquidity",
		zap.String("lp", lp.Hex()),
		zap.String("contribution", contribution.String()),
		zap.String("lp_shares", lpShares.String()),
	)
	observeOperation("add-liquidity", contribution)
	p.observeState()
	return lpShares, nil
}

// RemoveLiquidityResult reports the immediate base payout and any
// withdrawal shares minted for the deferred remainder.
type RemoveLiquidityResult struct {
	BaseProceeds     fixedpoint.FixedPoint
	WithdrawalShares fixedpoint.FixedPoint
}

// RemoveLiquidity burns LP shares for the holder's pro-rata slice of
// the withdrawable reserves. Margin locked behind open positions
// cannot leave, so that slice is minted as withdrawal shares that
// redeem as positions close.
func (p *Pool) RemoveLiquidity(ctx context.Context, lp common.Address, lpShares, minOutput fixedpoint.FixedPoint) (RemoveLiquidityResult, error) {
	var out RemoveLiquidityResult
	if err := p.lock(); err != nil {
		return out, err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return out, ErrNotInitialized
	}
	if lpShares.Lt(p.cfg.MinimumTransactionAmount) {
		return out, ErrMinimumTransactionAmount
	}
	if lpShares.Gt(p.ledger.BalanceOf(ledger.LPAssetID(), lp)) {
		return out, ledger.ErrInsufficientBalance
	}

	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return out, fmt.Errorf("price per share: %w", err)
	}
	st := p.state.Clone()
	if err := p.ensureCheckpoint(&st, c); err != nil {
		return out, err
	}

	// The holder's pro-rata slice of the withdrawable reserves pays
	// out immediately. The slice backing open position margin becomes
	// withdrawal shares, redeemed as those positions close.
	withdrawable := p.withdrawableShares(st, c)
	claim, err := withdrawable.MulDivDown(lpShares, st.effectiveLPSupply())
	if err != nil {
		return out, err
	}
	marginClaim, err := lpShares.MulDivDown(
		st.ShareReserves.SaturatingSub(withdrawable), st.ShareReserves)
	if err != nil {
		return out, err
	}

	idle := p.idleShares(st, c)
	paid := claim.Min(idle)
	withdrawalShares := marginClaim
	if paid.Lt(claim) && !claim.IsZero() {
		deferred, err := claim.Sub(paid)
		if err != nil {
			return out, err
		}
		backed := lpShares.SaturatingSub(marginClaim)
		extra, err := backed.MulDivDown(deferred, claim)
		if err != nil {
			return out, err
		}
		withdrawalShares = withdrawalShares.Add(extra)
	}

	oldShares := st.ShareReserves
	oldEffective, err := effectiveReserves(st)
	if err != nil {
		return out, err
	}
	st.ShareReserves = st.ShareReserves.SaturatingSub(paid)
	if err := rescaleBondReserves(&st, oldShares, oldEffective); err != nil {
		return out, err
	}
	lpRemaining, err := st.LPTotalSupply.Sub(lpShares)
	if err != nil {
		return out, err
	}
	st.LPTotalSupply = lpRemaining
	st.WithdrawalSharesOutstanding = st.WithdrawalSharesOutstanding.Add(withdrawalShares)

	if err := p.checkSolvency(st, c); err != nil {
		return out, err
	}

	if paid.MulDown(c).Lt(minOutput) {
		return out, ErrOutputLimitExceeded
	}
	baseProceeds, err := p.vault.Withdraw(ctx, paid)
	if err != nil {
		return out, fmt.Errorf("vault withdraw: %w", err)
	}
	if err := p.ledger.Burn(ledger.LPAssetID(), lp, lpShares); err != nil {
		return out, err
	}
	if !withdrawalShares.IsZero() {
		if err := p.ledger.Mint(ledger.WithdrawalShareAssetID(), lp, withdrawalShares); err != nil {
			return out, err
		}
	}
	p.state = st

	p.logger.Info("remove-liquidity",
		zap.String("lp", lp.Hex()),
		zap.String("lp_shares", lpShares.String()),
		zap.String("base_proceeds", baseProceeds.String()),
		zap.String("withdrawal_shares", withdrawalShares.String()),
	)
	observeOperation("remove-liquidity", baseProceeds)
	p.observeState()
	return RemoveLiquidityResult{BaseProceeds: baseProceeds, WithdrawalShares: withdrawalShares}, nil
}
