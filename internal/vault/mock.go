package vault

import (
	"context"
	"sync"
	"time"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

const secondsPerYear = 365 * 24 * 60 * 60

// MockSource is an in-memory yield source that accrues interest
// linearly at a fixed APR. It backs local deployments and tests where
// no real vault is available.
type MockSource struct {
	mu sync.Mutex

	apr          fixedpoint.FixedPoint
	initialPrice fixedpoint.FixedPoint
	startedAt    time.Time
	now          func() time.Time

	totalShares fixedpoint.FixedPoint
}

// NewMockSource creates a mock vault whose share price starts at
// initialPrice and grows linearly at apr per year. The now function
// supplies the clock; pass time.Now outside of tests.
func NewMockSource(initialPrice, apr fixedpoint.FixedPoint, now func() time.Time) *MockSource {
	if now == nil {
		now = time.Now
	}
	return &MockSource{
		apr:          apr,
		initialPrice: initialPrice,
		startedAt:    now(),
		now:          now,
		totalShares:  fixedpoint.Zero(),
	}
}

// PricePerShare implements Source.
func (m *MockSource) PricePerShare(_ context.Context) (fixedpoint.FixedPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceLocked(), nil
}

func (m *MockSource) priceLocked() fixedpoint.FixedPoint {
	elapsed := m.now().Sub(m.startedAt)
	if elapsed <= 0 {
		return m.initialPrice
	}
	fraction, err := fixedpoint.FromUint64(uint64(elapsed / time.Second)).DivDown(fixedpoint.FromUint64(secondsPerYear))
	if err != nil {
		return m.initialPrice
	}
	growth := fixedpoint.One().Add(m.apr.MulDown(fraction))
	return m.initialPrice.MulDown(growth)
}

// Deposit implements Source.
func (m *MockSource) Deposit(_ context.Context, baseAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shares, err := baseAmount.DivDown(m.priceLocked())
	if err != nil {
		return fixedpoint.Zero(), err
	}
	m.totalShares = m.totalShares.Add(shares)
	return shares, nil
}

// Withdraw implements Source.
func (m *MockSource) Withdraw(_ context.Context, shareAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if shareAmount.Gt(m.totalShares) {
		return fixedpoint.Zero(), ErrInsufficientShares
	}
	remaining, err := m.totalShares.Sub(shareAmount)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	m.totalShares = remaining
	return shareAmount.MulDown(m.priceLocked()), nil
}

// TotalShares returns the vault shares currently held by the pool.
func (m *MockSource) TotalShares() fixedpoint.FixedPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalShares
}
