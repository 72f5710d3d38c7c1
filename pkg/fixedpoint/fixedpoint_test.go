package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"1.5", "1.5"},
		{"0.000000000000000001", "0.000000000000000001"},
		{"123456789.987654321", "123456789.987654321"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, in := range []string{"-1", "abc", "1.1234567890123456789"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestMulRounding(t *testing.T) {
	third := MustParse("0.333333333333333333")
	three := FromUint64(3)

	down := third.MulDown(three)
	up := third.MulUp(three)

	assert.Equal(t, "0.999999999999999999", down.String())
	assert.Equal(t, "0.999999999999999999", up.String())

	// A product with a remainder must differ by exactly one wei.
	a := FromRawUint64(10)
	b := MustParse("0.3")
	assert.Equal(t, int64(3), a.MulDown(b).Big().Int64())
	assert.Equal(t, int64(3), a.MulUp(b).Big().Int64())

	c := FromRawUint64(5)
	assert.Equal(t, int64(1), c.MulDown(b).Big().Int64())
	assert.Equal(t, int64(2), c.MulUp(b).Big().Int64())
}

func TestDivRounding(t *testing.T) {
	one := One()
	three := FromUint64(3)

	down, err := one.DivDown(three)
	require.NoError(t, err)
	up, err := one.DivUp(three)
	require.NoError(t, err)

	assert.Equal(t, "0.333333333333333333", down.String())
	assert.Equal(t, "0.333333333333333334", up.String())
}

func TestDivByZero(t *testing.T) {
	_, err := One().DivDown(Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = One().MulDivUp(One(), Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestSubUnderflow(t *testing.T) {
	_, err := FromUint64(1).Sub(FromUint64(2))
	assert.ErrorIs(t, err, ErrUnderflow)

	got, err := FromUint64(2).Sub(FromUint64(1))
	require.NoError(t, err)
	assert.True(t, got.Eq(One()))

	assert.True(t, FromUint64(1).SaturatingSub(FromUint64(2)).IsZero())
}

func TestDivOverflowRejected(t *testing.T) {
	max, err := FromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))
	require.NoError(t, err)
	tiny := FromRawUint64(1)

	_, err = max.DivDown(tiny)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = max.DivUp(tiny)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = max.MulDivDown(max, One())
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = max.MulDivUp(max, One())
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivFullWidth(t *testing.T) {
	// 2^200-scale operands overflow a naive 256-bit intermediate but
	// must survive the full-width product.
	huge, err := FromBig(new(big.Int).Lsh(big.NewInt(1), 200))
	require.NoError(t, err)

	got, err := huge.MulDivDown(huge, huge)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(huge))
}

func TestPowIdentities(t *testing.T) {
	x := MustParse("42.5")

	got, err := x.Pow(Zero())
	require.NoError(t, err)
	assert.True(t, got.Eq(One()), "x^0 = 1")

	got, err = Zero().Pow(x)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "0^y = 0")
}

func TestPowAccuracy(t *testing.T) {
	tests := []struct {
		base, exp string
		want      float64
	}{
		{"2", "2", 4},
		{"4", "0.5", 2},
		{"9", "0.5", 3},
		{"2", "10", 1024},
		{"100000", "0.92", 39810.71705534972},
		{"0.5", "2", 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.base+"^"+tt.exp, func(t *testing.T) {
			got, err := MustParse(tt.base).Pow(MustParse(tt.exp))
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want, got.Float64(), 1e-12)
		})
	}
}

func TestExpLnRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "0.5", "1", "2.5", "1000", "123456.789"} {
		x := MustParse(s)
		lnx, err := lnWad(x.Big())
		require.NoError(t, err)
		back, err := expWad(lnx)
		require.NoError(t, err)
		assert.InEpsilon(t, x.Float64(), FixedPoint{i: back}.Float64(), 1e-9, "exp(ln(%s))", s)
	}
}

func TestLnRejectsNonPositive(t *testing.T) {
	_, err := lnWad(big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExpOverflow(t *testing.T) {
	_, err := expWad(new(big.Int).Set(expMaxInput))
	assert.ErrorIs(t, err, ErrOverflow)
}
