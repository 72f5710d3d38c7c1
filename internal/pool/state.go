package pool

import (
	"math/big"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// MarketState is the pool's mutable accounting state. Operations work
// on a deep copy and swap it in only after every invariant check has
// passed, so a failed trade can never leave partial writes behind.
type MarketState struct {
	// ShareReserves is z, the vault shares backing the curve.
	ShareReserves fixedpoint.FixedPoint

	// ShareAdjustment is zeta, a signed correction subtracted from z
	// to get the effective reserves the curve prices against.
	ShareAdjustment *big.Int

	// BondReserves is y.
	BondReserves fixedpoint.FixedPoint

	// LPTotalSupply mirrors the ledger's LP supply, kept in state so
	// that pure previews do not need ledger access.
	LPTotalSupply fixedpoint.FixedPoint

	// LongsOutstanding and ShortsOutstanding are face values in bonds.
	LongsOutstanding  fixedpoint.FixedPoint
	ShortsOutstanding fixedpoint.FixedPoint

	// LongAverageMaturityTime and ShortAverageMaturityTime are
	// open-amount-weighted averages in unix seconds, used by the
	// present value calculation.
	LongAverageMaturityTime  fixedpoint.FixedPoint
	ShortAverageMaturityTime fixedpoint.FixedPoint

	// LongExposure is the base the pool owes long holders at maturity.
	// Idle capital excludes it so longs stay fully backed.
	LongExposure fixedpoint.FixedPoint

	// Withdrawal pool. Outstanding shares wait for idle capital;
	// ready shares have proceeds set aside and can be redeemed.
	WithdrawalSharesOutstanding   fixedpoint.FixedPoint
	WithdrawalSharesReadyToRedeem fixedpoint.FixedPoint
	WithdrawalShareProceeds       fixedpoint.FixedPoint

	// Zombie reserves back matured positions that were settled by a
	// checkpoint but not yet closed by their holders.
	ZombieBaseProceeds  fixedpoint.FixedPoint
	ZombieShareReserves fixedpoint.FixedPoint

	// GovernanceFeesAccrued is the fee collector's claim in shares.
	GovernanceFeesAccrued fixedpoint.FixedPoint

	// LastSettledTime is the most recent checkpoint whose matured
	// positions have been netted out of the reserves.
	LastSettledTime int64
}

// NewMarketState returns an empty state with a zero share adjustment.
func NewMarketState() MarketState {
	return MarketState{ShareAdjustment: new(big.Int)}
}

// Clone returns a deep copy of the state.
func (s MarketState) Clone() MarketState {
	out := s
	out.ShareAdjustment = new(big.Int).Set(s.shareAdjustment())
	return out
}

func (s MarketState) shareAdjustment() *big.Int {
	if s.ShareAdjustment == nil {
		return new(big.Int)
	}
	return s.ShareAdjustment
}

// Initialized reports whether the reserves have been seeded.
func (s MarketState) Initialized() bool {
	return !s.ShareReserves.IsZero()
}
