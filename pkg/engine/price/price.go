// Package price implements the packed 32-bit price format used across the
// pair engine: an 8-decimal-digit significand in the low 27 bits and a
// 5-bit decimal exponent above it. The decoded value is
// significand * 10^(exponent - refExp), where refExp is fixed per pair
// (it absorbs the decimal difference between the two tokens).
package price

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrInvalidPrice is the stable engine error for out-of-range significands.
var ErrInvalidPrice = errors.New("INVALID_PRICE")

const (
	// SigMin and SigMax bound the normalized significand: exactly 8
	// significant decimal digits, so comparison and multiplication
	// overflow bounds are uniform at every magnitude.
	SigMin = 10_000_000
	SigMax = 99_999_999

	sigBits = 27
	sigMask = (1 << sigBits) - 1

	// DefaultRefExp is the reference exponent for pairs whose tokens share
	// the same decimal count.
	DefaultRefExp = 23
)

// Price32 is the packed on-wire price: sig | exp<<27.
type Price32 uint32

// Encode packs a significand and exponent. No validation; Validate runs on use.
func Encode(sig uint32, exp uint8) Price32 {
	return Price32(uint32(sig&sigMask) | uint32(exp)<<sigBits)
}

// Decode is the inverse of Encode.
func (p Price32) Decode() (sig uint32, exp uint8) {
	return uint32(p) & sigMask, uint8(uint32(p) >> sigBits)
}

// Validate rejects any price whose significand is not 8 decimal digits.
func (p Price32) Validate() error {
	sig, _ := p.Decode()
	if sig < SigMin || sig > SigMax {
		return ErrInvalidPrice
	}
	return nil
}

var pow10 [32]*uint256.Int

func init() {
	v := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := range pow10 {
		pow10[i] = new(uint256.Int).Set(v)
		v.Mul(v, ten)
	}
}

// Rat is an exact rational price: value = Num/Den. One of Num, Den always
// carries the whole power of ten, the other side is the bare significand
// or one, so both fit comfortably below 2^80.
type Rat struct {
	Num *uint256.Int
	Den *uint256.Int
}

// Rat decodes p into an exact rational against the pair's reference exponent.
func (p Price32) Rat(refExp int) Rat {
	sig, exp := p.Decode()
	s := uint256.NewInt(uint64(sig))
	if int(exp) >= refExp {
		return Rat{
			Num: new(uint256.Int).Mul(s, pow10[int(exp)-refExp]),
			Den: uint256.NewInt(1),
		}
	}
	return Rat{
		Num: s,
		Den: pow10[refExp-int(exp)],
	}
}

// Cmp compares two rationals: -1 if a < b, 0 if equal, 1 if a > b.
func (a Rat) Cmp(b Rat) int {
	l := new(uint256.Int).Mul(a.Num, b.Den)
	r := new(uint256.Int).Mul(b.Num, a.Den)
	return l.Cmp(r)
}

// Cmp compares two packed prices by decoded value against a shared refExp.
// Ties in value (same sig, different exp encodings are impossible for
// normalized significands) reduce to exact rational comparison.
func Cmp(a, b Price32, refExp int) int {
	return a.Rat(refExp).Cmp(b.Rat(refExp))
}

// MulFloor returns floor(amount * p).
func (r Rat) MulFloor(amount *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Mul(amount, r.Num)
	return z.Div(z, r.Den)
}

// MulCeil returns ceil(amount * p).
func (r Rat) MulCeil(amount *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Mul(amount, r.Num)
	rem := new(uint256.Int)
	z.DivMod(z, r.Den, rem)
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return z
}

// DivFloor returns floor(amount / p), i.e. how much stock amount money buys.
func (r Rat) DivFloor(amount *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Mul(amount, r.Den)
	return z.Div(z, r.Num)
}
