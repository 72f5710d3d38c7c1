package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// distributeExcessIdle moves idle capital into the withdrawal pool,
// marking outstanding withdrawal shares ready to redeem at the current
// LP share price. Runs on every checkpoint.
func (p *Pool) distributeExcessIdle(st *MarketState, sharePrice fixedpoint.FixedPoint) error {
	if st.WithdrawalSharesOutstanding.IsZero() {
		return nil
	}
	idle := p.idleShares(*st, sharePrice)
	if idle.IsZero() {
		return nil
	}
	lpPrice, err := p.lpSharePrice(*st, sharePrice)
	if err != nil || lpPrice.IsZero() {
		return err
	}

	maxPayout := st.WithdrawalSharesOutstanding.MulDown(lpPrice)
	payout := idle.Min(maxPayout)
	redeemed, err := payout.DivDown(lpPrice)
	if err != nil {
		return err
	}
	redeemed = redeemed.Min(st.WithdrawalSharesOutstanding)
	if redeemed.IsZero() {
		return nil
	}

	oldShares := st.ShareReserves
	oldEffective, err := effectiveReserves(*st)
	if err != nil {
		return err
	}
	st.ShareReserves = st.ShareReserves.SaturatingSub(payout)
	if err := rescaleBondReserves(st, oldShares, oldEffective); err != nil {
		return err
	}
	st.WithdrawalSharesOutstanding = st.WithdrawalSharesOutstanding.SaturatingSub(redeemed)
	st.WithdrawalSharesReadyToRedeem = st.WithdrawalSharesReadyToRedeem.Add(redeemed)
	st.WithdrawalShareProceeds = st.WithdrawalShareProceeds.Add(payout)

	p.logger.Debug("distribute-excess-idle",
		zap.String("payout_shares", payout.String()),
		zap.String("shares_marked_ready", redeemed.String()),
	)
	return nil
}

// RedeemWithdrawalSharesResult reports the base paid out and how many
// withdrawal shares were actually consumed.
type RedeemWithdrawalSharesResult struct {
	BaseProceeds   fixedpoint.FixedPoint
	SharesRedeemed fixedpoint.FixedPoint
}

// RedeemWithdrawalShares burns withdrawal shares that have been marked
// ready and pays out their set-aside proceeds. Shares still waiting on
// idle capital are left untouched.
func (p *Pool) RedeemWithdrawalShares(ctx context.Context, lp common.Address, shares, minOutputPerShare fixedpoint.FixedPoint) (RedeemWithdrawalSharesResult, error) {
	var out RedeemWithdrawalSharesResult
	if err := p.lock(); err != nil {
		return out, err
	}
	defer p.unlock()

	if !p.state.Initialized() {
		return out, ErrNotInitialized
	}
	if shares.Gt(p.ledger.BalanceOf(ledger.WithdrawalShareAssetID(), lp)) {
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

	redeemable := shares.Min(st.WithdrawalSharesReadyToRedeem)
	if redeemable.IsZero() {
		return out, nil
	}
	proceeds, err := st.WithdrawalShareProceeds.MulDivDown(redeemable, st.WithdrawalSharesReadyToRedeem)
	if err != nil {
		return out, err
	}

	st.WithdrawalSharesReadyToRedeem = st.WithdrawalSharesReadyToRedeem.SaturatingSub(redeemable)
	st.WithdrawalShareProceeds = st.WithdrawalShareProceeds.SaturatingSub(proceeds)

	baseOut := proceeds.MulDown(c)
	if !redeemable.IsZero() {
		perShare, err := baseOut.DivDown(redeemable)
		if err != nil {
			return out, err
		}
		if perShare.Lt(minOutputPerShare) {
			return out, ErrOutputLimitExceeded
		}
	}

	baseProceeds, err := p.vault.Withdraw(ctx, proceeds)
	if err != nil {
		return out, fmt.Errorf("vault withdraw: %w", err)
	}
	if err := p.ledger.Burn(ledger.WithdrawalShareAssetID(), lp, redeemable); err != nil {
		return out, err
	}
	p.state = st

	p.logger.Info("redeem-withdrawal-shares",
		zap.String("lp", lp.Hex()),
		zap.String("shares_redeemed", redeemable.String()),
		zap.String("base_proceeds", baseProceeds.String()),
	)
	observeOperation("redeem-withdrawal-shares", baseProceeds)
	p.observeState()
	return RedeemWithdrawalSharesResult{BaseProceeds: baseProceeds, SharesRedeemed: redeemable}, nil
}
