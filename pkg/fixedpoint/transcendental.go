package fixedpoint

import (
	"fmt"
	"math/big"
)

// The natural log and exponential below are ports of the well-known
// 96-bit rational approximations used on-chain (expWad/lnWad). All
// intermediates are signed and fit comfortably in math/big; truncated
// division (Quo) and right shifts match the reference semantics, since
// big.Int right shifts floor toward negative infinity.

var (
	bigOne = big.NewInt(1)

	// maxInt256 bounds the signed reinterpretation of pow inputs.
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	// expMinInput is floor(ln(0.5e-18) * 1e18); below it exp rounds to zero.
	expMinInput = mustBig("-42139678854452767551")
	// expMaxInput is floor(ln((2^255 - 1) / 1e18) * 1e18).
	expMaxInput = mustBig("135305999368893231589")

	five18 = new(big.Int).Exp(big.NewInt(5), big.NewInt(18), nil)

	// ln(2) in 2^96 fixed point.
	ln2X96 = mustBig("54916777467707473351141471128")

	expP0 = mustBig("1346386616545796478920950773328")
	expP1 = mustBig("57155421227552351082224309758442")
	expP2 = mustBig("94201549194550492254356042504812")
	expP3 = mustBig("28719021644029726153956944680412240")
	expP4 = mustBig("4385272521454847904659076985693276")

	expQ0 = mustBig("2855989394907223263936484059900")
	expQ1 = mustBig("50020603652535783019961831881945")
	expQ2 = mustBig("533845033583426703283633433725380")
	expQ3 = mustBig("3604857256930695427073651918091429")
	expQ4 = mustBig("14423608567350463180887372962807573")
	expQ5 = mustBig("26449188498355588339934803723976023")

	// expScale combines the approximation's scale factor with the
	// 1e18 / 2^96 base conversion, in 2^213 basis.
	expScale = mustHex("29d9dc38563c32e5c2f6dc192ee70ef65f9978af3")

	lnP0 = mustBig("3273285459638523848632254066296")
	lnP1 = mustBig("24828157081833163892658089445524")
	lnP2 = mustBig("43456485725739037958740375743393")
	lnP3 = mustBig("11111509109440967052023855526967")
	lnP4 = mustBig("45023709667254063763336534515857")
	lnP5 = mustBig("14706773417378608786704636184526")
	lnP6 = mustBig("795164235651350426258249787498")

	lnQ0 = mustBig("5573035233440673466300451813936")
	lnQ1 = mustBig("71694874799317883764090561454958")
	lnQ2 = mustBig("283447036172924575727196451306956")
	lnQ3 = mustBig("401686690394027663651624208769553")
	lnQ4 = mustBig("204048457590392012362485061816622")
	lnQ5 = mustBig("31853899698501571402653359427138")
	lnQ6 = mustBig("909429971244387300277376558375")

	// Finalization constants: scale factor times 5e18 * 2^96,
	// ln(2) * 5e18 * 2^192, and ln(2^96 / 10^18) * 5e18 * 2^192.
	lnScale  = mustHex("1340daa0d5f769dba1915cef59f0815a5506")
	lnTwoK   = mustHex("267a36c0c95b3975ab3ee5b203a7614a3f75373f047d803ae7b6687f2b3")
	lnAdjust = mustHex("57115e47018c7177eebf7cd370a3356a1b7863008a5ae8028c72b8864284")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

// Pow returns f^o for fractional exponents using exp(o * ln(f)).
// Pow(x, 0) is one for any x, and Pow(0, y) is zero for y > 0. The
// relative error is bounded well below 1e-12 across the useful range.
func (f FixedPoint) Pow(o FixedPoint) (FixedPoint, error) {
	if o.IsZero() {
		return One(), nil
	}
	if f.IsZero() {
		return Zero(), nil
	}
	if f.big().Cmp(maxInt256) > 0 || o.big().Cmp(maxInt256) > 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: pow: %w", ErrOverflow)
	}

	lnx, err := lnWad(f.big())
	if err != nil {
		return FixedPoint{}, err
	}
	ylnx := new(big.Int).Mul(o.big(), lnx)
	ylnx.Quo(ylnx, scale)

	r, err := expWad(ylnx)
	if err != nil {
		return FixedPoint{}, err
	}
	return FixedPoint{i: r}, nil
}

// expWad computes e^x for a signed 18-decimal x.
func expWad(x *big.Int) (*big.Int, error) {
	// Results below 0.5 round to zero.
	if x.Cmp(expMinInput) <= 0 {
		return new(big.Int), nil
	}
	if x.Cmp(expMaxInput) >= 0 {
		return nil, fmt.Errorf("fixedpoint: exp: %w", ErrOverflow)
	}

	// Convert from 1e18 to 2^96 basis: multiply by 2^96 / 1e18 = 2^78 / 5^18.
	x = new(big.Int).Lsh(x, 78)
	x.Quo(x, five18)

	// Factor out powers of two: exp(x) = exp(x') * 2^k with
	// k = round(x / ln 2) and x' = x - k * ln 2.
	k := new(big.Int).Lsh(x, 96)
	k.Quo(k, ln2X96)
	k.Add(k, new(big.Int).Lsh(bigOne, 95))
	k.Rsh(k, 96)
	x.Sub(x, new(big.Int).Mul(k, ln2X96))

	// (6, 7)-term rational approximation on the reduced argument.
	y := new(big.Int).Add(x, expP0)
	y.Mul(y, x)
	y.Rsh(y, 96)
	y.Add(y, expP1)

	p := new(big.Int).Add(y, x)
	p.Sub(p, expP2)
	p.Mul(p, y)
	p.Rsh(p, 96)
	p.Add(p, expP3)
	p.Mul(p, x)
	p.Add(p, new(big.Int).Lsh(expP4, 96))

	q := new(big.Int).Sub(x, expQ0)
	q.Mul(q, x)
	q.Rsh(q, 96)
	q.Add(q, expQ1)
	q.Mul(q, x)
	q.Rsh(q, 96)
	q.Sub(q, expQ2)
	q.Mul(q, x)
	q.Rsh(q, 96)
	q.Add(q, expQ3)
	q.Mul(q, x)
	q.Rsh(q, 96)
	q.Sub(q, expQ4)
	q.Mul(q, x)
	q.Rsh(q, 96)
	q.Add(q, expQ5)

	r := new(big.Int).Quo(p, q)

	// Scale by the approximation factor, 2^k from the range reduction,
	// and the 1e18 / 2^96 base conversion, all in 2^213 basis.
	r.Mul(r, expScale)
	shift := uint(new(big.Int).Sub(big.NewInt(195), k).Int64())
	r.Rsh(r, shift)

	return r, nil
}

// lnWad computes ln(x) for a positive 18-decimal x.
func lnWad(x *big.Int) (*big.Int, error) {
	if x.Sign() <= 0 {
		return nil, fmt.Errorf("fixedpoint: ln of non-positive value: %w", ErrInvalidInput)
	}

	// Reduce to (1, 2) * 2^96: ln(2^k * x') = k ln 2 + ln(x').
	k := int64(x.BitLen() - 1 - 96)
	norm := shiftToX96(x, k)

	// (8, 8)-term rational approximation.
	p := new(big.Int).Add(norm, lnP0)
	p.Mul(p, norm)
	p.Rsh(p, 96)
	p.Add(p, lnP1)
	p.Mul(p, norm)
	p.Rsh(p, 96)
	p.Add(p, lnP2)
	p.Mul(p, norm)
	p.Rsh(p, 96)
	p.Sub(p, lnP3)
	p.Mul(p, norm)
	p.Rsh(p, 96)
	p.Sub(p, lnP4)
	p.Mul(p, norm)
	p.Rsh(p, 96)
	p.Sub(p, lnP5)
	p.Mul(p, norm)
	p.Sub(p, new(big.Int).Lsh(lnP6, 96))

	q := new(big.Int).Add(norm, lnQ0)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ1)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ2)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ3)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ4)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ5)
	q.Mul(q, norm)
	q.Rsh(q, 96)
	q.Add(q, lnQ6)

	r := new(big.Int).Quo(p, q)

	// Finalize: multiply by the scale factor, add k * ln 2 and the basis
	// correction, then convert back to 1e18 basis.
	r.Mul(r, lnScale)
	r.Add(r, new(big.Int).Mul(lnTwoK, big.NewInt(k)))
	r.Add(r, lnAdjust)
	r.Rsh(r, 174)

	return r, nil
}

// shiftToX96 normalizes a positive x with floor(log2(x)) = 96 + k into
// the (1, 2) * 2^96 range.
func shiftToX96(x *big.Int, k int64) *big.Int {
	if k >= 0 {
		return new(big.Int).Rsh(x, uint(k))
	}
	return new(big.Int).Lsh(x, uint(-k))
}
