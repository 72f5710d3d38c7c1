package pool

import "errors"

var (
	// ErrNotInitialized is returned by every trading operation before
	// Initialize has seeded the reserves.
	ErrNotInitialized = errors.New("pool: not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("pool: already initialized")

	// ErrMinimumTransactionAmount is returned when a trade or
	// contribution is below the configured floor.
	ErrMinimumTransactionAmount = errors.New("pool: amount below minimum transaction amount")

	// ErrMinimumShareReserves is returned when an operation would
	// drain the share reserves below the configured floor.
	ErrMinimumShareReserves = errors.New("pool: share reserves below minimum")

	// ErrInsufficientLiquidity is returned when the curve cannot
	// absorb the requested trade or solvency would be violated.
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")

	// ErrOutputLimitExceeded is returned when a trade's proceeds fall
	// outside the caller's slippage bound.
	ErrOutputLimitExceeded = errors.New("pool: output limit exceeded")

	// ErrInvalidMaturityTime is returned when a close references a
	// maturity that is not on the checkpoint grid or in the future
	// beyond one position duration.
	ErrInvalidMaturityTime = errors.New("pool: invalid maturity time")

	// ErrInvalidAPRBounds is returned when the pool rate is outside
	// the caller's accepted range.
	ErrInvalidAPRBounds = errors.New("pool: fixed rate outside accepted bounds")

	// ErrReentrantCall is returned when an operation is invoked from
	// within another operation's critical section.
	ErrReentrantCall = errors.New("pool: reentrant call")

	// ErrNegativeProceeds is returned when a short position's proceeds
	// would be negative after fees.
	ErrNegativeProceeds = errors.New("pool: negative trade proceeds")
)
