package pool

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/hyperdrive-amm/internal/fees"
	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/testutil"
	"github.com/mselser95/hyperdrive-amm/internal/vault"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

const (
	day = int64(86_400)

	// A checkpoint-aligned start time.
	startTime = int64(19_676 * 86_400)
)

var (
	lpAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	traderAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fixture struct {
	pool  *Pool
	clock *testutil.Clock
	vault *vault.MockSource
}

func newFixture(t *testing.T, vaultAPR fixedpoint.FixedPoint, schedule fees.Schedule) *fixture {
	t.Helper()
	clk := testutil.NewClock(time.Unix(startTime, 0))
	src := vault.NewMockSource(fixedpoint.One(), vaultAPR, clk.Now)
	p, err := New(Options{
		Config: Config{
			InitialSharePrice:        fixedpoint.One(),
			MinimumShareReserves:     fixedpoint.One(),
			MinimumTransactionAmount: fixedpoint.MustParse("0.0001"),
			PositionDuration:         365 * day,
			CheckpointDuration:       day,
			TimeStretch:              fixedpoint.MustParse("0.05"),
			Fees:                     schedule,
		},
		Vault:  src,
		Ledger: ledger.NewMemoryLedger(),
		Now:    clk.Now,
	})
	require.NoError(t, err)
	return &fixture{pool: p, clock: clk, vault: src}
}

func (f *fixture) initialize(t *testing.T) fixedpoint.FixedPoint {
	t.Helper()
	lpShares, err := f.pool.Initialize(context.Background(), lpAddr,
		fixedpoint.FromUint64(100_000), fixedpoint.MustParse("0.05"))
	require.NoError(t, err)
	return lpShares
}

func TestInitializeSetsTargetRate(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	lpShares := f.initialize(t)

	// One share is permanently endowed to the reserve floor.
	assert.InEpsilon(t, 99_999.0, lpShares.Float64(), 1e-12)

	rate, err := f.pool.SpotRate(context.Background())
	require.NoError(t, err)
	assert.InEpsilon(t, 0.05, rate.Float64(), 1e-6)
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)

	_, err := f.pool.Initialize(context.Background(), lpAddr,
		fixedpoint.FromUint64(1_000), fixedpoint.MustParse("0.05"))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestOperationsRequireInitialization(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	ctx := context.Background()

	_, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10), fixedpoint.Zero())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = f.pool.AddLiquidity(ctx, lpAddr, fixedpoint.FromUint64(10), fixedpoint.Zero(), fixedpoint.One())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOpenLongBuysBondsAtDiscount(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	assert.True(t, res.BondProceeds.Gt(fixedpoint.FromUint64(10_000)),
		"bonds cost less than face value, got %s", res.BondProceeds)
	assert.True(t, res.BondProceeds.Lt(fixedpoint.FromUint64(10_600)),
		"proceeds should stay near the 5%% discount, got %s", res.BondProceeds)
	assert.Equal(t, startTime+365*day, res.MaturityTime)

	bal := f.pool.ledger.BalanceOf(ledger.LongAssetID(res.MaturityTime), traderAddr)
	assert.True(t, bal.Eq(res.BondProceeds))
}

func TestOpenLongLowersFixedRate(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	before, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)
	_, err = f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(20_000), fixedpoint.Zero())
	require.NoError(t, err)
	after, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)

	assert.True(t, after.Lt(before), "buying bonds must lower the rate: %s -> %s", before, after)
}

func TestOpenCloseLongRoundTripZeroFees(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	proceeds, err := f.pool.CloseLong(ctx, traderAddr, res.MaturityTime, res.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)

	assert.True(t, proceeds.Lte(fixedpoint.FromUint64(10_000)),
		"an immediate round trip cannot profit, got %s", proceeds)
	assert.InEpsilon(t, 10_000.0, proceeds.Float64(), 1e-4)
}

func TestLongHeldToMaturityRedeemsFaceValue(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	f.clock.SetUnix(res.MaturityTime)
	proceeds, err := f.pool.CloseLong(ctx, traderAddr, res.MaturityTime, res.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)

	assert.InEpsilon(t, res.BondProceeds.Float64(), proceeds.Float64(), 1e-6,
		"a matured long redeems at face value")
}

func TestLongMinOutputGuard(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	_, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.FromUint64(20_000))
	assert.ErrorIs(t, err, ErrOutputLimitExceeded)
}

func TestCloseLongRejectsBadMaturity(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	_, err := f.pool.CloseLong(ctx, traderAddr, startTime+365*day+1, fixedpoint.FromUint64(10), fixedpoint.Zero())
	assert.ErrorIs(t, err, ErrInvalidMaturityTime)

	_, err = f.pool.CloseLong(ctx, traderAddr, startTime+2*365*day, fixedpoint.FromUint64(10), fixedpoint.Zero())
	assert.ErrorIs(t, err, ErrInvalidMaturityTime)
}

func TestOpenShortDepositIsMaxLoss(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	// At a 5% rate the short's max loss is roughly the 5% discount.
	assert.True(t, res.BaseDeposit.Gt(fixedpoint.FromUint64(300)), "deposit too small: %s", res.BaseDeposit)
	assert.True(t, res.BaseDeposit.Lt(fixedpoint.FromUint64(700)), "deposit too large: %s", res.BaseDeposit)

	proceeds, err := f.pool.CloseShort(ctx, traderAddr, res.MaturityTime, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)
	assert.True(t, proceeds.Lte(res.BaseDeposit),
		"an immediate round trip cannot profit: deposit %s, proceeds %s", res.BaseDeposit, proceeds)
	assert.InEpsilon(t, res.BaseDeposit.Float64(), proceeds.Float64(), 0.02)
}

func TestShortHeldToMaturityEarnsVaultYield(t *testing.T) {
	f := newFixture(t, fixedpoint.MustParse("0.10"), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	f.clock.SetUnix(res.MaturityTime)
	proceeds, err := f.pool.CloseShort(ctx, traderAddr, res.MaturityTime, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	// The short collects one year of 10% variable yield on the face.
	assert.InEpsilon(t, 1_000.0, proceeds.Float64(), 0.02)
}

func TestOpenShortRaisesFixedRate(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	before, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)
	_, err = f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(20_000), fixedpoint.Zero())
	require.NoError(t, err)
	after, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)

	assert.True(t, after.Gt(before), "selling bonds must raise the rate: %s -> %s", before, after)
}

func TestAddLiquidityIsProportionalWithoutPositions(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	rateBefore, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)

	lp2 := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	shares, err := f.pool.AddLiquidity(ctx, lp2, fixedpoint.FromUint64(50_000), fixedpoint.Zero(), fixedpoint.One())
	require.NoError(t, err)
	assert.InEpsilon(t, 50_000.0, shares.Float64(), 1e-4)

	rateAfter, err := f.pool.SpotRate(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, rateBefore.Float64(), rateAfter.Float64(), 1e-9,
		"adding liquidity must not move the rate")
}

func TestAddLiquidityRespectsRateBounds(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	_, err := f.pool.AddLiquidity(ctx, lpAddr, fixedpoint.FromUint64(1_000),
		fixedpoint.MustParse("0.06"), fixedpoint.MustParse("0.10"))
	assert.ErrorIs(t, err, ErrInvalidAPRBounds)

	_, err = f.pool.AddLiquidity(ctx, lpAddr, fixedpoint.FromUint64(1_000),
		fixedpoint.Zero(), fixedpoint.MustParse("0.01"))
	assert.ErrorIs(t, err, ErrInvalidAPRBounds)
}

func TestRemoveLiquidityRecoversContribution(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	lp2 := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	shares, err := f.pool.AddLiquidity(ctx, lp2, fixedpoint.FromUint64(50_000), fixedpoint.Zero(), fixedpoint.One())
	require.NoError(t, err)

	res, err := f.pool.RemoveLiquidity(ctx, lp2, shares, fixedpoint.Zero())
	require.NoError(t, err)

	assert.True(t, res.WithdrawalShares.IsZero(), "idle capital covers the whole claim")
	assert.InEpsilon(t, 50_000.0, res.BaseProceeds.Float64(), 1e-4)
}

func TestRemoveLiquidityDefersWhenCapitalIsLocked(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	lpShares := f.initialize(t)
	ctx := context.Background()

	long, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(50_000), fixedpoint.Zero())
	require.NoError(t, err)

	res, err := f.pool.RemoveLiquidity(ctx, lpAddr, lpShares, fixedpoint.Zero())
	require.NoError(t, err)
	assert.False(t, res.WithdrawalShares.IsZero(),
		"capital backing the long cannot leave immediately")

	// Once the long is closed the idle returns and the next checkpoint
	// frees the withdrawal pool.
	_, err = f.pool.CloseLong(ctx, traderAddr, long.MaturityTime, long.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.pool.Checkpoint(ctx, startTime+day))

	redeem, err := f.pool.RedeemWithdrawalShares(ctx, lpAddr, res.WithdrawalShares, fixedpoint.Zero())
	require.NoError(t, err)
	assert.False(t, redeem.SharesRedeemed.IsZero())
	assert.False(t, redeem.BaseProceeds.IsZero())
}

func TestAddRemoveLiquidityWorkedScenario(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	ctx := context.Background()

	// Hand-built book with margin already locked behind open longs.
	st := NewMarketState()
	st.ShareReserves = fixedpoint.FromUint64(100_000)
	st.BondReserves = fixedpoint.FromUint64(150_000)
	st.LPTotalSupply = fixedpoint.FromUint64(100_000)
	st.LongExposure = fixedpoint.FromUint64(10_000)
	st.LastSettledTime = startTime
	f.pool.state = st

	lp2 := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	shares, err := f.pool.AddLiquidity(ctx, lp2, fixedpoint.FromUint64(20_000),
		fixedpoint.Zero(), fixedpoint.One())
	require.NoError(t, err)

	// The join prices against the 90,000 withdrawable shares, not the
	// full reserves: 20,000 * 100,000 / 90,000.
	assert.InEpsilon(t, 22_222.222222, shares.Float64(), 1e-6)

	after := f.pool.State()
	assert.InEpsilon(t, 180_000.0, after.BondReserves.Float64(), 1e-9,
		"bond reserves scale with the effective share reserves")

	res, err := f.pool.RemoveLiquidity(ctx, lp2, shares, fixedpoint.Zero())
	require.NoError(t, err)

	// Exiting immediately recovers the contribution up to rounding,
	// never more, with the margin-backed slice deferred.
	assert.InDelta(t, 20_000.0, res.BaseProceeds.Float64(), 0.5)
	assert.True(t, res.BaseProceeds.Lte(fixedpoint.FromUint64(20_000)))
	assert.InEpsilon(t, 1_851.85, res.WithdrawalShares.Float64(), 1e-3)
}

func TestRedeemWithoutReadySharesPaysNothing(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	res, err := f.pool.RedeemWithdrawalShares(ctx, lpAddr, fixedpoint.Zero(), fixedpoint.Zero())
	require.NoError(t, err)
	assert.True(t, res.BaseProceeds.IsZero())
	assert.True(t, res.SharesRedeemed.IsZero())
}

func TestPositionsBackdateToCheckpoint(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	// Half a day into the checkpoint window the maturity still pins to
	// the window's start.
	f.clock.Advance(12 * time.Hour)
	res, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(1_000), fixedpoint.Zero())
	require.NoError(t, err)
	assert.Equal(t, startTime+365*day, res.MaturityTime)

	short, err := f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(1_000), fixedpoint.Zero())
	require.NoError(t, err)
	assert.Equal(t, res.MaturityTime, short.MaturityTime)
}

func TestCheckpointRejectsFutureAndMisaligned(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	assert.Error(t, f.pool.Checkpoint(ctx, startTime+1))
	assert.Error(t, f.pool.Checkpoint(ctx, startTime+day))
}

func TestGovernanceFeesAccrue(t *testing.T) {
	schedule := fees.Schedule{
		Curve:      fixedpoint.MustParse("0.01"),
		Flat:       fixedpoint.MustParse("0.0005"),
		Governance: fixedpoint.MustParse("0.15"),
	}
	withFees := newFixture(t, fixedpoint.Zero(), schedule)
	withFees.initialize(t)
	noFees := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	noFees.initialize(t)
	ctx := context.Background()

	paid, err := withFees.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)
	free, err := noFees.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	assert.True(t, paid.BondProceeds.Lt(free.BondProceeds), "fees must reduce proceeds")
	assert.False(t, withFees.pool.State().GovernanceFeesAccrued.IsZero())
	assert.True(t, noFees.pool.State().GovernanceFeesAccrued.IsZero())
}

func TestOversizedLongRejected(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	max, err := f.pool.MaxOpenLong(ctx)
	require.NoError(t, err)

	_, err = f.pool.OpenLong(ctx, traderAddr, max.MulDown(fixedpoint.FromUint64(10)), fixedpoint.Zero())
	assert.Error(t, err)
}

func TestOversizedShortRejected(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	max, err := f.pool.MaxOpenShort(ctx)
	require.NoError(t, err)

	_, err = f.pool.OpenShort(ctx, traderAddr, max.MulDown(fixedpoint.FromUint64(10)), fixedpoint.Zero())
	assert.Error(t, err)
}

func TestPreviewMatchesExecution(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	quote, err := f.pool.PreviewOpenLong(ctx, fixedpoint.FromUint64(10_000))
	require.NoError(t, err)

	res, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)

	assert.InEpsilon(t, quote.Amount.Float64(), res.BondProceeds.Float64(), 1e-9)
	assert.Equal(t, quote.MaturityTime, res.MaturityTime)
}

// reentrantVault calls back into the pool from inside Deposit, the
// way a misbehaving yield-source adapter would.
type reentrantVault struct {
	vault.Source
	pool     *Pool
	innerErr error
}

func (v *reentrantVault) Deposit(ctx context.Context, baseAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if _, err := v.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(100), fixedpoint.Zero()); err != nil {
		v.innerErr = err
		return fixedpoint.Zero(), err
	}
	return v.Source.Deposit(ctx, baseAmount)
}

func TestVaultCallbackCannotReenter(t *testing.T) {
	clk := testutil.NewClock(time.Unix(startTime, 0))
	rv := &reentrantVault{Source: vault.NewMockSource(fixedpoint.One(), fixedpoint.Zero(), clk.Now)}
	p, err := New(Options{
		Config: Config{
			InitialSharePrice:        fixedpoint.One(),
			MinimumShareReserves:     fixedpoint.One(),
			MinimumTransactionAmount: fixedpoint.MustParse("0.0001"),
			PositionDuration:         365 * day,
			CheckpointDuration:       day,
			TimeStretch:              fixedpoint.MustParse("0.05"),
		},
		Vault:  rv,
		Ledger: ledger.NewMemoryLedger(),
		Now:    clk.Now,
	})
	require.NoError(t, err)
	rv.pool = p

	done := make(chan struct{})
	var initErr error
	go func() {
		defer close(done)
		_, initErr = p.Initialize(context.Background(), lpAddr,
			fixedpoint.FromUint64(100_000), fixedpoint.MustParse("0.05"))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("initialize neither returned nor errored")
	}

	require.ErrorIs(t, initErr, ErrReentrantCall)
	require.ErrorIs(t, rv.innerErr, ErrReentrantCall)
	assert.False(t, p.State().Initialized(), "a failed initialize must not commit")
}

func TestCloseLongFlatLegDoesNotRepriceCurve(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	long, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)
	before := f.pool.State()

	f.clock.Advance(183 * 24 * time.Hour)

	_, err = f.pool.CloseLong(ctx, traderAddr, long.MaturityTime, long.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)
	after := f.pool.State()

	// The matured fraction redeemed flat and left through the share
	// adjustment, not through the effective reserves.
	require.Equal(t, -1, after.ShareAdjustment.Sign())

	matured, err := fixedpoint.FromUint64(183).DivDown(fixedpoint.FromUint64(365))
	require.NoError(t, err)
	expectedFlat := long.BondProceeds.MulDown(matured)
	flat, err := fixedpoint.FromBig(new(big.Int).Neg(after.ShareAdjustment))
	require.NoError(t, err)
	assert.InEpsilon(t, expectedFlat.Float64(), flat.Float64(), 1e-6)

	zeBefore, err := effectiveReserves(before)
	require.NoError(t, err)
	zeAfter, err := effectiveReserves(after)
	require.NoError(t, err)
	zDelta := before.ShareReserves.Float64() - after.ShareReserves.Float64()
	zeDelta := zeBefore.Float64() - zeAfter.Float64()
	assert.Less(t, zeDelta, zDelta, "the flat leg must not drain the curve")
	assert.InEpsilon(t, zDelta-expectedFlat.Float64(), zeDelta, 1e-6)
}

func TestCloseShortFlatLegEntersShareAdjustment(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	short, err := f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(5_000), fixedpoint.Zero())
	require.NoError(t, err)

	f.clock.Advance(183 * 24 * time.Hour)

	_, err = f.pool.CloseShort(ctx, traderAddr, short.MaturityTime, fixedpoint.FromUint64(5_000), fixedpoint.Zero())
	require.NoError(t, err)

	assert.Equal(t, 1, f.pool.State().ShareAdjustment.Sign(),
		"the flat repayment enters through the share adjustment")
}

func TestAddLiquidityScalesShareAdjustment(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	long, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)
	f.clock.Advance(183 * 24 * time.Hour)
	_, err = f.pool.CloseLong(ctx, traderAddr, long.MaturityTime, long.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)

	before := f.pool.State()
	require.Equal(t, -1, before.ShareAdjustment.Sign())
	priceBefore, err := f.pool.SpotPrice(ctx)
	require.NoError(t, err)

	_, err = f.pool.AddLiquidity(ctx, lpAddr, fixedpoint.FromUint64(20_000),
		fixedpoint.Zero(), fixedpoint.FromUint64(1_000_000))
	require.NoError(t, err)
	after := f.pool.State()

	priceAfter, err := f.pool.SpotPrice(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, priceBefore.Float64(), priceAfter.Float64(), 1e-9,
		"liquidity changes must not move the spot price")

	// zeta scales with the reserves.
	ratio := after.ShareReserves.Float64() / before.ShareReserves.Float64()
	zetaBefore := new(big.Int).Neg(before.ShareAdjustment)
	zetaAfter := new(big.Int).Neg(after.ShareAdjustment)
	wantBefore, err := fixedpoint.FromBig(zetaBefore)
	require.NoError(t, err)
	wantAfter, err := fixedpoint.FromBig(zetaAfter)
	require.NoError(t, err)
	assert.InEpsilon(t, wantBefore.Float64()*ratio, wantAfter.Float64(), 1e-6)
}

func TestPreviewReportsPriceImpact(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	long, err := f.pool.PreviewOpenLong(ctx, fixedpoint.FromUint64(10_000))
	require.NoError(t, err)
	assert.True(t, long.SpotPriceAfter.Gt(long.SpotPrice), "buying bonds should push the price up")

	short, err := f.pool.PreviewOpenShort(ctx, fixedpoint.FromUint64(10_000))
	require.NoError(t, err)
	assert.True(t, short.SpotPriceAfter.Lt(short.SpotPrice), "selling bonds should push the price down")
}

func TestSolvencyHoldsAcrossOperationSequence(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	long, err := f.pool.OpenLong(ctx, traderAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero())
	require.NoError(t, err)
	short, err := f.pool.OpenShort(ctx, traderAddr, fixedpoint.FromUint64(5_000), fixedpoint.Zero())
	require.NoError(t, err)
	_, err = f.pool.AddLiquidity(ctx, lpAddr, fixedpoint.FromUint64(10_000), fixedpoint.Zero(), fixedpoint.One())
	require.NoError(t, err)
	_, err = f.pool.CloseShort(ctx, traderAddr, short.MaturityTime, fixedpoint.FromUint64(5_000), fixedpoint.Zero())
	require.NoError(t, err)
	_, err = f.pool.CloseLong(ctx, traderAddr, long.MaturityTime, long.BondProceeds, fixedpoint.Zero())
	require.NoError(t, err)

	st := f.pool.State()
	assert.True(t, st.ShareReserves.Gte(f.pool.Config().MinimumShareReserves))
	assert.True(t, st.LongsOutstanding.IsZero())
	assert.True(t, st.ShortsOutstanding.IsZero())
}

func TestPresentValueTracksReserves(t *testing.T) {
	f := newFixture(t, fixedpoint.Zero(), fees.Schedule{})
	f.initialize(t)
	ctx := context.Background()

	pv, err := f.pool.PresentValue(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, 99_999.0, pv.Float64(), 1e-9)

	lpPrice, err := f.pool.LPSharePrice(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.0, lpPrice.Float64(), 1e-4)
}
