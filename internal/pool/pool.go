// Package pool implements a fixed-rate AMM over a yield-bearing vault.
// Longs buy bonds at a discount and redeem them one-for-one at
// maturity; shorts deposit the bonds' maximum loss and collect the
// vault's variable yield on the shorted face value. Liquidity
// providers take the other side of the net position and earn fees.
package pool

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/hyperdrive-amm/internal/checkpoint"
	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/vault"
	"github.com/mselser95/hyperdrive-amm/internal/yieldspace"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// Options bundles the pool's dependencies.
type Options struct {
	Config Config
	Vault  vault.Source
	Ledger ledger.Ledger
	Logger *zap.Logger

	// Now supplies the clock. Defaults to time.Now.
	Now func() time.Time
}

// Pool is the AMM engine. All operations are serialized behind a
// single mutex; state mutations follow a copy-validate-commit pattern.
type Pool struct {
	cfg    Config
	vault  vault.Source
	ledger ledger.Ledger
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	owner       atomic.Uint64
	state       MarketState
	checkpoints *checkpoint.Store
}

// New validates the configuration and returns an uninitialized pool.
func New(opts Options) (*Pool, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if opts.Vault == nil || opts.Ledger == nil {
		return nil, fmt.Errorf("vault and ledger are required: %w", fixedpoint.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pool{
		cfg:         opts.Config,
		vault:       opts.Vault,
		ledger:      opts.Ledger,
		logger:      logger,
		now:         now,
		state:       NewMarketState(),
		checkpoints: checkpoint.NewStore(opts.Config.CheckpointDuration),
	}, nil
}

// Config returns the pool's immutable configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// State returns a copy of the current market state.
func (p *Pool) State() MarketState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// goid parses the current goroutine's id from the runtime stack
// header ("goroutine N [running]:"). Ids start at 1, so zero is free
// as the unowned sentinel.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// lock acquires the operation lock. A vault adapter that calls back
// into the pool from inside an operation does so on the same
// goroutine, so re-entry is detected before touching the mutex and
// fails instead of self-deadlocking. Other goroutines queue as usual.
func (p *Pool) lock() error {
	id := goid()
	if p.owner.Load() == id {
		return ErrReentrantCall
	}
	p.mu.Lock()
	p.owner.Store(id)
	return nil
}

func (p *Pool) unlock() {
	p.owner.Store(0)
	p.mu.Unlock()
}

// curve builds the pricing curve for a state snapshot.
func (p *Pool) curve(st MarketState, sharePrice fixedpoint.FixedPoint) (yieldspace.Curve, error) {
	ze, err := yieldspace.EffectiveShareReserves(st.ShareReserves, st.shareAdjustment())
	if err != nil {
		return yieldspace.Curve{}, err
	}
	return yieldspace.Curve{
		ShareReserves:     ze,
		BondReserves:      st.BondReserves,
		SharePrice:        sharePrice,
		InitialSharePrice: p.cfg.InitialSharePrice,
		TimeStretch:       p.cfg.TimeStretch,
	}, nil
}

// SpotPrice returns the current bond spot price in base.
func (p *Pool) SpotPrice(ctx context.Context) (fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	st := p.state.Clone()
	p.mu.Unlock()

	if !st.Initialized() {
		return fixedpoint.Zero(), ErrNotInitialized
	}
	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("price per share: %w", err)
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return crv.SpotPrice()
}

// SpotRate returns the pool's fixed rate implied by the spot price,
// annualized over the position duration: r = (1 - p) / (p * t).
func (p *Pool) SpotRate(ctx context.Context) (fixedpoint.FixedPoint, error) {
	price, err := p.SpotPrice(ctx)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return p.rateFromPrice(price)
}

func (p *Pool) rateFromPrice(price fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	num, err := fixedpoint.One().Sub(price)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	denom := price.MulDown(p.cfg.annualizedDuration())
	if denom.IsZero() {
		return fixedpoint.Zero(), fixedpoint.ErrDivisionByZero
	}
	return num.DivDown(denom)
}

// latestCheckpointTime returns the checkpoint boundary at or before now.
func (p *Pool) latestCheckpointTime() int64 {
	return p.checkpoints.Latest(p.now().Unix())
}

// timeRemaining returns the normalized time remaining for a maturity,
// measured from the latest checkpoint and clamped to [0, 1].
func (p *Pool) timeRemaining(maturityTime int64) fixedpoint.FixedPoint {
	latest := p.latestCheckpointTime()
	if maturityTime <= latest {
		return fixedpoint.Zero()
	}
	frac, err := fixedpoint.FromUint64(uint64(maturityTime - latest)).
		DivDown(fixedpoint.FromUint64(uint64(p.cfg.PositionDuration)))
	if err != nil {
		return fixedpoint.Zero()
	}
	return frac.Min(fixedpoint.One())
}

// Checkpoint mints the checkpoint for the given time if it is due and
// unminted, settling any positions that matured at or before it. It is
// called implicitly by every operation and may also be called directly
// to keep a quiet pool's accounting current.
func (p *Pool) Checkpoint(ctx context.Context, checkpointTime int64) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	if !p.checkpoints.Aligned(checkpointTime) || checkpointTime > p.now().Unix() {
		return checkpoint.ErrInvalidTime
	}
	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return fmt.Errorf("price per share: %w", err)
	}
	st := p.state.Clone()
	if err := p.applyCheckpoint(&st, checkpointTime, c); err != nil {
		return err
	}
	p.state = st
	return nil
}

// CheckpointAt returns the minted checkpoint at the given time, if any.
func (p *Pool) CheckpointAt(checkpointTime int64) (checkpoint.Checkpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := p.checkpoints.Get(checkpointTime)
	return cp, cp.Minted()
}

// ensureCheckpoint mints the latest due checkpoint on the working
// state. Callers hold the operation lock.
func (p *Pool) ensureCheckpoint(st *MarketState, sharePrice fixedpoint.FixedPoint) error {
	return p.applyCheckpoint(st, p.latestCheckpointTime(), sharePrice)
}

// applyCheckpoint mints the checkpoint at checkpointTime, settles all
// maturities in (LastSettledTime, checkpointTime], collects zombie
// interest and distributes idle capital to the withdrawal pool.
func (p *Pool) applyCheckpoint(st *MarketState, checkpointTime int64, sharePrice fixedpoint.FixedPoint) error {
	cp := p.checkpoints.Get(checkpointTime)
	if !cp.Minted() {
		if err := p.checkpoints.Put(checkpoint.Checkpoint{
			Time:       checkpointTime,
			SharePrice: sharePrice,
		}); err != nil {
			return err
		}
		p.logger.Debug("checkpoint-minted",
			zap.Int64("checkpoint_time", checkpointTime),
			zap.String("share_price", sharePrice.String()),
		)
	}

	if st.LastSettledTime == 0 && !st.Initialized() {
		st.LastSettledTime = checkpointTime
		return nil
	}

	for at := st.LastSettledTime + p.cfg.CheckpointDuration; at <= checkpointTime; at += p.cfg.CheckpointDuration {
		if err := p.settleMaturity(st, at, sharePrice); err != nil {
			return err
		}
		st.LastSettledTime = at
	}

	p.collectZombieInterest(st, sharePrice)
	if err := p.distributeExcessIdle(st, sharePrice); err != nil {
		return err
	}
	return nil
}

// settleMaturity nets positions maturing at the given time out of the
// reserves and parks their proceeds in the zombie reserves. The
// settlement price is the checkpoint minted at the maturity, or the
// nearest earlier one when checkpoints were skipped.
func (p *Pool) settleMaturity(st *MarketState, maturityTime int64, currentPrice fixedpoint.FixedPoint) error {
	price := currentPrice
	if cp := p.checkpoints.Get(maturityTime); cp.Minted() {
		price = cp.SharePrice
	} else if cp, err := p.checkpoints.NearestAtOrBefore(maturityTime); err == nil {
		price = cp.SharePrice
	}

	maturedLongs := p.ledger.TotalSupply(ledger.LongAssetID(maturityTime))
	if !maturedLongs.IsZero() {
		if err := p.settleMaturedLongs(st, maturedLongs, maturityTime, price); err != nil {
			return err
		}
	}
	maturedShorts := p.ledger.TotalSupply(ledger.ShortAssetID(maturityTime))
	if !maturedShorts.IsZero() {
		if err := p.settleMaturedShorts(st, maturedShorts, maturityTime, price); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) settleMaturedLongs(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64, price fixedpoint.FixedPoint) error {
	flatFee, err := p.cfg.Fees.FlatFee(bondAmount, fixedpoint.Zero(), price)
	if err != nil {
		return err
	}
	gov := p.cfg.Fees.GovernanceShare(flatFee)

	// Long holders redeem face value minus the flat fee. Rounds down
	// so settlement never over-draws the reserves.
	shares, err := bondAmount.DivDown(price)
	if err != nil {
		return err
	}
	proceeds, err := shares.Sub(flatFee)
	if err != nil {
		return err
	}

	st.ShareReserves = st.ShareReserves.SaturatingSub(proceeds.Add(gov))
	// Settlement trades entirely flat: the adjustment tracks the full
	// outflow so the effective reserves, and the price, are unchanged.
	st.ShareAdjustment = new(big.Int).Sub(st.shareAdjustment(), proceeds.Add(gov).Signed())
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(gov)
	st.ZombieShareReserves = st.ZombieShareReserves.Add(proceeds)
	st.ZombieBaseProceeds = st.ZombieBaseProceeds.Add(proceeds.MulDown(price))
	p.reduceLongsOutstanding(st, bondAmount, maturityTime)
	return nil
}

func (p *Pool) settleMaturedShorts(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64, price fixedpoint.FixedPoint) error {
	openPrice := p.openSharePrice(maturityTime)

	// Short holders collect the variable interest accrued on the face
	// value over the term, minus the flat fee.
	interest := fixedpoint.Zero()
	if price.Gt(openPrice) {
		spread, err := price.Sub(openPrice)
		if err != nil {
			return err
		}
		grown, err := bondAmount.MulDivDown(spread, openPrice)
		if err != nil {
			return err
		}
		interest, err = grown.DivDown(price)
		if err != nil {
			return err
		}
	}
	flatFee, err := p.cfg.Fees.FlatFee(bondAmount, fixedpoint.Zero(), price)
	if err != nil {
		return err
	}
	gov := p.cfg.Fees.GovernanceShare(flatFee)
	proceeds := interest.SaturatingSub(flatFee)

	st.ShareReserves = st.ShareReserves.SaturatingSub(proceeds)
	// The flat fee is paid by the short out of interest, so only the
	// governance part leaves the LP reserves.
	st.GovernanceFeesAccrued = st.GovernanceFeesAccrued.Add(gov)
	st.ShareReserves = st.ShareReserves.SaturatingSub(gov)
	// All-flat settlement: mirror the outflow in the adjustment so the
	// curve does not reprice.
	st.ShareAdjustment = new(big.Int).Sub(st.shareAdjustment(), proceeds.Add(gov).Signed())
	st.ZombieShareReserves = st.ZombieShareReserves.Add(proceeds)
	st.ZombieBaseProceeds = st.ZombieBaseProceeds.Add(proceeds.MulDown(price))
	p.reduceShortsOutstanding(st, bondAmount, maturityTime)
	return nil
}

// collectZombieInterest skims interest accrued on zombie reserves into
// the LP reserves. Zombie positions are owed a fixed base amount, so
// any share price growth on the parked shares belongs to LPs.
func (p *Pool) collectZombieInterest(st *MarketState, sharePrice fixedpoint.FixedPoint) {
	if st.ZombieShareReserves.IsZero() || sharePrice.IsZero() {
		return
	}
	// Round what zombies are owed up so the skim stays conservative.
	owedShares, err := st.ZombieBaseProceeds.DivUp(sharePrice)
	if err != nil {
		return
	}
	if st.ZombieShareReserves.Gt(owedShares) {
		excess, err := st.ZombieShareReserves.Sub(owedShares)
		if err != nil {
			return
		}
		st.ZombieShareReserves = owedShares
		st.ShareReserves = st.ShareReserves.Add(excess)
	}
}

// openSharePrice returns the vault share price recorded when positions
// maturing at maturityTime were opened.
func (p *Pool) openSharePrice(maturityTime int64) fixedpoint.FixedPoint {
	openTime := maturityTime - p.cfg.PositionDuration
	if cp := p.checkpoints.Get(openTime); cp.Minted() {
		return cp.SharePrice
	}
	if cp, err := p.checkpoints.NearestAtOrBefore(openTime); err == nil {
		return cp.SharePrice
	}
	return p.cfg.InitialSharePrice
}

func (p *Pool) reduceLongsOutstanding(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64) {
	st.LongAverageMaturityTime = reduceAverage(
		st.LongAverageMaturityTime, st.LongsOutstanding, bondAmount, maturityTime)
	st.LongsOutstanding = st.LongsOutstanding.SaturatingSub(bondAmount)
	st.LongExposure = st.LongExposure.SaturatingSub(bondAmount)
}

func (p *Pool) reduceShortsOutstanding(st *MarketState, bondAmount fixedpoint.FixedPoint, maturityTime int64) {
	st.ShortAverageMaturityTime = reduceAverage(
		st.ShortAverageMaturityTime, st.ShortsOutstanding, bondAmount, maturityTime)
	st.ShortsOutstanding = st.ShortsOutstanding.SaturatingSub(bondAmount)
}

// growAverage folds a new position into an amount-weighted average
// maturity time.
func growAverage(avg, outstanding, amount fixedpoint.FixedPoint, maturityTime int64) fixedpoint.FixedPoint {
	total := outstanding.Add(amount)
	if total.IsZero() {
		return fixedpoint.Zero()
	}
	mt := fixedpoint.FromUint64(uint64(maturityTime))
	weighted := avg.MulDown(outstanding).Add(mt.MulDown(amount))
	next, err := weighted.DivDown(total)
	if err != nil {
		return avg
	}
	return next
}

// reduceAverage removes a closed position from the weighted average.
func reduceAverage(avg, outstanding, amount fixedpoint.FixedPoint, maturityTime int64) fixedpoint.FixedPoint {
	if amount.Gte(outstanding) {
		return fixedpoint.Zero()
	}
	remaining, err := outstanding.Sub(amount)
	if err != nil {
		return fixedpoint.Zero()
	}
	mt := fixedpoint.FromUint64(uint64(maturityTime))
	weighted := avg.MulDown(outstanding).SaturatingSub(mt.MulDown(amount))
	next, err := weighted.DivDown(remaining)
	if err != nil {
		return avg
	}
	return next
}

// checkSolvency verifies the reserve floor and that idle capital still
// covers the pool's long exposure.
func (p *Pool) checkSolvency(st MarketState, sharePrice fixedpoint.FixedPoint) error {
	if st.ShareReserves.Lt(p.cfg.MinimumShareReserves) {
		solvencyRejectionsTotal.Inc()
		return ErrMinimumShareReserves
	}
	reservesBase := st.ShareReserves.MulDown(sharePrice)
	floorBase := p.cfg.MinimumShareReserves.MulDown(sharePrice)
	if reservesBase.Lt(st.LongExposure.Add(floorBase)) {
		solvencyRejectionsTotal.Inc()
		return ErrInsufficientLiquidity
	}
	return nil
}

// idleShares returns the capital not backing longs or the reserve
// floor, available for withdrawals.
func (p *Pool) idleShares(st MarketState, sharePrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	exposureShares := fixedpoint.Zero()
	if !sharePrice.IsZero() {
		if v, err := st.LongExposure.DivUp(sharePrice); err == nil {
			exposureShares = v
		}
	}
	return st.ShareReserves.
		SaturatingSub(p.cfg.MinimumShareReserves).
		SaturatingSub(exposureShares)
}

// withdrawableShares returns the share reserves not backing open
// position margin. LP entry and exit price against this slice rather
// than the full reserves, so locked margin neither dilutes a joining
// LP nor leaves with an exiting one.
func (p *Pool) withdrawableShares(st MarketState, sharePrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	exposureShares := fixedpoint.Zero()
	if !sharePrice.IsZero() {
		if v, err := st.LongExposure.DivUp(sharePrice); err == nil {
			exposureShares = v
		}
	}
	return st.ShareReserves.SaturatingSub(exposureShares)
}

// validMaturity checks that a maturity sits on the checkpoint grid and
// within one position duration of the present.
func (p *Pool) validMaturity(maturityTime int64) error {
	if !p.checkpoints.Aligned(maturityTime) {
		return ErrInvalidMaturityTime
	}
	if maturityTime > p.latestCheckpointTime()+p.cfg.PositionDuration {
		return ErrInvalidMaturityTime
	}
	return nil
}
