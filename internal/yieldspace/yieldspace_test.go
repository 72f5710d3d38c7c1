package yieldspace

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

func testCurve() Curve {
	return Curve{
		ShareReserves:     fixedpoint.FromUint64(100_000),
		BondReserves:      fixedpoint.FromUint64(150_000),
		SharePrice:        fixedpoint.One(),
		InitialSharePrice: fixedpoint.One(),
		TimeStretch:       fixedpoint.MustParse("0.05"),
	}
}

func TestSpotPriceBelowOne(t *testing.T) {
	c := testCurve()

	p, err := c.SpotPrice()
	require.NoError(t, err)

	assert.True(t, p.Lt(fixedpoint.One()), "spot price must be below one when µ·ze < y, got %s", p)
	assert.InEpsilon(t, 0.97994, p.Float64(), 1e-3)
}

func TestInvariantPreservedAcrossTrade(t *testing.T) {
	c := testCurve()

	kBefore, err := c.KDown()
	require.NoError(t, err)

	dz := fixedpoint.FromUint64(1_000)
	dy, err := c.BondsOutGivenSharesIn(dz)
	require.NoError(t, err)

	after := c
	after.ShareReserves = c.ShareReserves.Add(dz)
	after.BondReserves, err = c.BondReserves.Sub(dy)
	require.NoError(t, err)

	kAfter, err := after.KDown()
	require.NoError(t, err)

	assert.InEpsilon(t, kBefore.Float64(), kAfter.Float64(), 1e-9)
}

func TestBuyThenSellReturnsNoMoreThanPaid(t *testing.T) {
	c := testCurve()

	dz := fixedpoint.FromUint64(5_000)
	dy, err := c.BondsOutGivenSharesIn(dz)
	require.NoError(t, err)
	assert.True(t, dy.Gt(dz), "bonds trade at a discount, so dy > dz")

	after := c
	after.ShareReserves = c.ShareReserves.Add(dz)
	after.BondReserves, err = c.BondReserves.Sub(dy)
	require.NoError(t, err)

	back, err := after.SharesOutGivenBondsIn(dy)
	require.NoError(t, err)

	assert.True(t, back.Lte(dz), "round trip must not mint value: paid %s, got back %s", dz, back)
	assert.InEpsilon(t, dz.Float64(), back.Float64(), 1e-9)
}

func TestSharesInRoundingOrdering(t *testing.T) {
	c := testCurve()
	dy := fixedpoint.FromUint64(2_000)

	up, err := c.SharesInGivenBondsOutUp(dy)
	require.NoError(t, err)
	down, err := c.SharesInGivenBondsOutDown(dy)
	require.NoError(t, err)

	assert.True(t, up.Gte(down), "overestimate %s must be >= underestimate %s", up, down)
	assert.InEpsilon(t, up.Float64(), down.Float64(), 1e-9)
}

func TestBuyingBondsRaisesSpotPrice(t *testing.T) {
	c := testCurve()
	p0, err := c.SpotPrice()
	require.NoError(t, err)

	dz := fixedpoint.FromUint64(10_000)
	dy, err := c.BondsOutGivenSharesIn(dz)
	require.NoError(t, err)

	after := c
	after.ShareReserves = c.ShareReserves.Add(dz)
	after.BondReserves, err = c.BondReserves.Sub(dy)
	require.NoError(t, err)

	p1, err := after.SpotPrice()
	require.NoError(t, err)
	assert.True(t, p1.Gt(p0), "buying bonds must raise the price: %s -> %s", p0, p1)
}

func TestSellingBondsLowersSpotPrice(t *testing.T) {
	c := testCurve()
	p0, err := c.SpotPrice()
	require.NoError(t, err)

	dy := fixedpoint.FromUint64(10_000)
	dz, err := c.SharesOutGivenBondsIn(dy)
	require.NoError(t, err)

	after := c
	after.ShareReserves, err = c.ShareReserves.Sub(dz)
	require.NoError(t, err)
	after.BondReserves = c.BondReserves.Add(dy)

	p1, err := after.SpotPrice()
	require.NoError(t, err)
	assert.True(t, p1.Lt(p0), "selling bonds must lower the price: %s -> %s", p0, p1)
}

func TestInsufficientLiquidity(t *testing.T) {
	c := testCurve()

	// Asking for more bonds than exist has no solution.
	_, err := c.SharesInGivenBondsOutUp(fixedpoint.FromUint64(200_000))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestMaxBuyDrivesPriceToOne(t *testing.T) {
	c := testCurve()

	dz, err := c.MaxBuySharesIn()
	require.NoError(t, err)
	dy, err := c.MaxBuyBondsOut()
	require.NoError(t, err)

	after := c
	after.ShareReserves = c.ShareReserves.Add(dz)
	after.BondReserves, err = c.BondReserves.Sub(dy)
	require.NoError(t, err)

	p, err := after.SpotPrice()
	require.NoError(t, err)
	assert.InEpsilon(t, 1.0, p.Float64(), 1e-6)
}

func TestMaxSellRespectsReserveFloor(t *testing.T) {
	c := testCurve()
	zMin := fixedpoint.FromUint64(1_000)

	dy, err := c.MaxSellBondsIn(big.NewInt(0), zMin)
	require.NoError(t, err)

	dz, err := c.SharesOutGivenBondsIn(dy)
	require.NoError(t, err)

	remaining, err := c.ShareReserves.Sub(dz)
	require.NoError(t, err)
	assert.InEpsilon(t, zMin.Float64(), remaining.Float64(), 1e-6)
}

func TestEffectiveShareReserves(t *testing.T) {
	z := fixedpoint.FromUint64(100)

	ze, err := EffectiveShareReserves(z, fixedpoint.FromUint64(40).Signed())
	require.NoError(t, err)
	assert.True(t, ze.Eq(fixedpoint.FromUint64(60)))

	ze, err = EffectiveShareReserves(z, new(big.Int).Neg(fixedpoint.FromUint64(40).Signed()))
	require.NoError(t, err)
	assert.True(t, ze.Eq(fixedpoint.FromUint64(140)))

	_, err = EffectiveShareReserves(z, fixedpoint.FromUint64(200).Signed())
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}
