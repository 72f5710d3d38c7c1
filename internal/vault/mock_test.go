package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

type fakeClock struct {
	at time.Time
}

func (f *fakeClock) Now() time.Time          { return f.at }
func (f *fakeClock) Advance(d time.Duration) { f.at = f.at.Add(d) }

func TestMockSourceAccruesLinearly(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1_700_000_000, 0)}
	src := NewMockSource(fixedpoint.One(), fixedpoint.MustParse("0.05"), clk.Now)
	ctx := context.Background()

	p, err := src.PricePerShare(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.0, p.Float64(), 1e-12)

	clk.Advance(365 * 24 * time.Hour)

	p, err = src.PricePerShare(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.05, p.Float64(), 1e-9)
}

func TestMockSourceDepositWithdrawRoundTrip(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1_700_000_000, 0)}
	src := NewMockSource(fixedpoint.One(), fixedpoint.MustParse("0.10"), clk.Now)
	ctx := context.Background()

	shares, err := src.Deposit(ctx, fixedpoint.FromUint64(1_000))
	require.NoError(t, err)
	assert.InEpsilon(t, 1_000.0, shares.Float64(), 1e-12)

	// Half a year at 10% APR grows the share price 5%.
	clk.Advance(365 * 12 * time.Hour)

	base, err := src.Withdraw(ctx, shares)
	require.NoError(t, err)
	assert.InEpsilon(t, 1_050.0, base.Float64(), 1e-9)
	assert.True(t, src.TotalShares().IsZero())
}

func TestMockSourceRejectsOverdraw(t *testing.T) {
	src := NewMockSource(fixedpoint.One(), fixedpoint.Zero(), nil)
	ctx := context.Background()

	_, err := src.Deposit(ctx, fixedpoint.FromUint64(10))
	require.NoError(t, err)

	_, err = src.Withdraw(ctx, fixedpoint.FromUint64(11))
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestMockSourceDepositAtElevatedPrice(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1_700_000_000, 0)}
	src := NewMockSource(fixedpoint.MustParse("2"), fixedpoint.Zero(), clk.Now)
	ctx := context.Background()

	shares, err := src.Deposit(ctx, fixedpoint.FromUint64(100))
	require.NoError(t, err)
	assert.InEpsilon(t, 50.0, shares.Float64(), 1e-12)
}
