// Package fixedpoint implements 18-decimal fixed-point arithmetic on
// 256-bit unsigned values. Every operation that can round carries its
// rounding direction in its name; callers pick the direction that favors
// the pool's solvency.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"
)

// scale is the fixed-point scaling factor, 1e18.
var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// maxUint256 is the largest representable value, 2^256 - 1.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// FixedPoint is an unsigned 18-decimal fixed-point number in [0, 2^256).
// The zero value is ready to use and represents 0.
type FixedPoint struct {
	i *big.Int
}

// Zero returns the fixed-point zero.
func Zero() FixedPoint {
	return FixedPoint{i: new(big.Int)}
}

// One returns the fixed-point one (1e18).
func One() FixedPoint {
	return FixedPoint{i: new(big.Int).Set(scale)}
}

// FromBig creates a FixedPoint from a raw scaled integer.
func FromBig(v *big.Int) (FixedPoint, error) {
	if v == nil || v.Sign() < 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w: negative or nil value", ErrInvalidInput)
	}
	if v.Cmp(maxUint256) > 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrOverflow)
	}
	return FixedPoint{i: new(big.Int).Set(v)}, nil
}

// FromUint64 creates a FixedPoint representing the whole number v.
func FromUint64(v uint64) FixedPoint {
	return FixedPoint{i: new(big.Int).Mul(new(big.Int).SetUint64(v), scale)}
}

// FromRawUint64 creates a FixedPoint from an already-scaled raw value.
func FromRawUint64(v uint64) FixedPoint {
	return FixedPoint{i: new(big.Int).SetUint64(v)}
}

// Parse parses a decimal string such as "1.5" or "0.000001" into a
// FixedPoint. At most 18 fractional digits are accepted.
func Parse(s string) (FixedPoint, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w: %q", ErrInvalidInput, s)
	}
	if len(frac) > 18 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w: more than 18 fractional digits in %q", ErrInvalidInput, s)
	}
	v := new(big.Int).Mul(w, scale)
	if frac != "" {
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok || f.Sign() < 0 {
			return FixedPoint{}, fmt.Errorf("fixedpoint: %w: %q", ErrInvalidInput, s)
		}
		for i := len(frac); i < 18; i++ {
			f.Mul(f, big.NewInt(10))
		}
		v.Add(v, f)
	}
	return FromBig(v)
}

// MustParse parses a decimal string and panics on failure. Intended for
// constants and tests.
func MustParse(s string) FixedPoint {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (f FixedPoint) big() *big.Int {
	if f.i == nil {
		return new(big.Int)
	}
	return f.i
}

// Big returns a copy of the raw scaled integer.
func (f FixedPoint) Big() *big.Int {
	return new(big.Int).Set(f.big())
}

// Signed returns the value as a signed big integer for mixed-sign
// accounting such as the share adjustment.
func (f FixedPoint) Signed() *big.Int {
	return f.Big()
}

// Float64 returns an approximate float representation. Only used for
// metrics and logging, never for accounting.
func (f FixedPoint) Float64() float64 {
	r := new(big.Rat).SetFrac(f.big(), scale)
	v, _ := r.Float64()
	return v
}

// String renders the value as a decimal string with trailing zeros trimmed.
func (f FixedPoint) String() string {
	q, r := new(big.Int).QuoRem(f.big(), scale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%018s", r.String())
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

// IsZero reports whether the value is zero.
func (f FixedPoint) IsZero() bool {
	return f.big().Sign() == 0
}

// Cmp compares f and o, returning -1, 0, or 1.
func (f FixedPoint) Cmp(o FixedPoint) int {
	return f.big().Cmp(o.big())
}

// Lt reports f < o.
func (f FixedPoint) Lt(o FixedPoint) bool { return f.Cmp(o) < 0 }

// Lte reports f <= o.
func (f FixedPoint) Lte(o FixedPoint) bool { return f.Cmp(o) <= 0 }

// Gt reports f > o.
func (f FixedPoint) Gt(o FixedPoint) bool { return f.Cmp(o) > 0 }

// Gte reports f >= o.
func (f FixedPoint) Gte(o FixedPoint) bool { return f.Cmp(o) >= 0 }

// Eq reports f == o.
func (f FixedPoint) Eq(o FixedPoint) bool { return f.Cmp(o) == 0 }

// Min returns the smaller of f and o.
func (f FixedPoint) Min(o FixedPoint) FixedPoint {
	if f.Lt(o) {
		return f
	}
	return o
}

// Max returns the larger of f and o.
func (f FixedPoint) Max(o FixedPoint) FixedPoint {
	if f.Gt(o) {
		return f
	}
	return o
}

// checked bounds a result to the uint256 range. The infallible
// operations (Add, MulDown, MulUp) cannot report overflow; they rely
// on every external value entering through Parse/FromBig, whose bound
// keeps the descaled product and sum of realistic pool quantities far
// below 2^256.
func checked(v *big.Int) (FixedPoint, error) {
	if v.Cmp(maxUint256) > 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrOverflow)
	}
	return FixedPoint{i: v}, nil
}

// Add returns f + o.
func (f FixedPoint) Add(o FixedPoint) FixedPoint {
	return FixedPoint{i: new(big.Int).Add(f.big(), o.big())}
}

// Sub returns f - o, failing with ErrUnderflow when o > f.
func (f FixedPoint) Sub(o FixedPoint) (FixedPoint, error) {
	if f.Lt(o) {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %s - %s: %w", f, o, ErrUnderflow)
	}
	return FixedPoint{i: new(big.Int).Sub(f.big(), o.big())}, nil
}

// SaturatingSub returns f - o, or zero when o > f.
func (f FixedPoint) SaturatingSub(o FixedPoint) FixedPoint {
	if f.Lt(o) {
		return Zero()
	}
	return FixedPoint{i: new(big.Int).Sub(f.big(), o.big())}
}

// MulDown returns f * o rounded toward zero.
func (f FixedPoint) MulDown(o FixedPoint) FixedPoint {
	p := new(big.Int).Mul(f.big(), o.big())
	return FixedPoint{i: p.Quo(p, scale)}
}

// MulUp returns f * o rounded away from zero.
func (f FixedPoint) MulUp(o FixedPoint) FixedPoint {
	p := new(big.Int).Mul(f.big(), o.big())
	q, r := new(big.Int).QuoRem(p, scale, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return FixedPoint{i: q}
}

// DivDown returns f / o rounded toward zero.
func (f FixedPoint) DivDown(o FixedPoint) (FixedPoint, error) {
	if o.IsZero() {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrDivisionByZero)
	}
	p := new(big.Int).Mul(f.big(), scale)
	return checked(p.Quo(p, o.big()))
}

// DivUp returns f / o rounded away from zero.
func (f FixedPoint) DivUp(o FixedPoint) (FixedPoint, error) {
	if o.IsZero() {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrDivisionByZero)
	}
	p := new(big.Int).Mul(f.big(), scale)
	q, r := new(big.Int).QuoRem(p, o.big(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return checked(q)
}

// MulDivDown returns f * o / d rounded toward zero with a full-width
// intermediate product.
func (f FixedPoint) MulDivDown(o, d FixedPoint) (FixedPoint, error) {
	if d.IsZero() {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrDivisionByZero)
	}
	p := new(big.Int).Mul(f.big(), o.big())
	return checked(p.Quo(p, d.big()))
}

// MulDivUp returns f * o / d rounded away from zero with a full-width
// intermediate product.
func (f FixedPoint) MulDivUp(o, d FixedPoint) (FixedPoint, error) {
	if d.IsZero() {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %w", ErrDivisionByZero)
	}
	p := new(big.Int).Mul(f.big(), o.big())
	q, r := new(big.Int).QuoRem(p, d.big(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return checked(q)
}
