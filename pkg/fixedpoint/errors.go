package fixedpoint

import "errors"

var (
	// ErrOverflow indicates a result that cannot be represented in 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow indicates a subtraction below zero.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrDivisionByZero indicates a division with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidInput indicates a value outside the function's domain,
	// such as the logarithm of zero.
	ErrInvalidInput = errors.New("invalid input")
)
