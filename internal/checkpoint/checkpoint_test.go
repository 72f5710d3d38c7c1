package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

const day = int64(86_400)

func TestLatestAlignsToGrid(t *testing.T) {
	s := NewStore(day)

	assert.Equal(t, int64(0), s.Latest(day-1))
	assert.Equal(t, day, s.Latest(day))
	assert.Equal(t, day, s.Latest(day+3600))
	assert.True(t, s.Aligned(7*day))
	assert.False(t, s.Aligned(7*day+1))
}

func TestPutRejectsOffGridTimes(t *testing.T) {
	s := NewStore(day)

	err := s.Put(Checkpoint{Time: day + 1, SharePrice: fixedpoint.One()})
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestGetReturnsZeroValueWhenUnminted(t *testing.T) {
	s := NewStore(day)

	cp := s.Get(3 * day)
	assert.Equal(t, 3*day, cp.Time)
	assert.False(t, cp.Minted())

	require.NoError(t, s.Put(Checkpoint{Time: 3 * day, SharePrice: fixedpoint.MustParse("1.05")}))
	cp = s.Get(3 * day)
	assert.True(t, cp.Minted())
	assert.Equal(t, "1.05", cp.SharePrice.String())
}

func TestNearestAtOrBeforeSkipsGaps(t *testing.T) {
	s := NewStore(day)
	require.NoError(t, s.Put(Checkpoint{Time: day, SharePrice: fixedpoint.One()}))
	require.NoError(t, s.Put(Checkpoint{Time: 2 * day, SharePrice: fixedpoint.MustParse("1.01")}))

	// Days 3 and 4 were never minted; the nearest minted checkpoint
	// backfills them.
	cp, err := s.NearestAtOrBefore(4 * day)
	require.NoError(t, err)
	assert.Equal(t, 2*day, cp.Time)
	assert.Equal(t, "1.01", cp.SharePrice.String())

	_, err = s.NearestAtOrBefore(day - 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimesSorted(t *testing.T) {
	s := NewStore(day)
	for _, at := range []int64{5 * day, day, 3 * day} {
		require.NoError(t, s.Put(Checkpoint{Time: at, SharePrice: fixedpoint.One()}))
	}
	assert.Equal(t, []int64{day, 3 * day, 5 * day}, s.Times())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStore(day)
	require.NoError(t, s.Put(Checkpoint{Time: day, SharePrice: fixedpoint.One()}))

	c := s.Clone()
	require.NoError(t, c.Put(Checkpoint{Time: 2 * day, SharePrice: fixedpoint.MustParse("1.02")}))

	assert.False(t, s.Get(2*day).Minted(), "clone writes must not leak into the original")
	assert.True(t, c.Get(day).Minted())
}
