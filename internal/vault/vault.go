// Package vault abstracts the yield source that pool capital is
// deposited into. The pool denominates reserves in vault shares and
// consults the vault's share price whenever it needs to convert
// between base and shares.
package vault

import (
	"context"
	"errors"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

var (
	// ErrInsufficientShares is returned when a withdrawal exceeds the
	// depositor's share balance.
	ErrInsufficientShares = errors.New("vault: insufficient shares")
)

// Source is a yield-bearing vault. Deposits convert base to shares at
// the current share price and withdrawals convert back. The share
// price is monotone non-decreasing for well-behaved sources, but
// implementations backed by real vaults may report drawdowns.
type Source interface {
	// Deposit converts baseAmount of base into vault shares and
	// credits them to the pool. Returns the shares minted.
	Deposit(ctx context.Context, baseAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error)

	// Withdraw burns shareAmount of the pool's vault shares and
	// returns the base proceeds.
	Withdraw(ctx context.Context, shareAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error)

	// PricePerShare returns the current base value of one vault share.
	PricePerShare(ctx context.Context) (fixedpoint.FixedPoint, error)
}
