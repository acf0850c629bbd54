// Package fixedpoint implements the fixed-precision unsigned rationals
// used by the state executor's economic math: 18 fractional digits for
// FLK amounts, 6 for stablecoin amounts. All divisions round toward zero
// and operator order is fixed so that replaying the same transactions
// produces byte-identical state on every replica (spec.md sections 4.2
// and 9).
//
// Go has no const-generic equivalent of the original's HpUfixed<DECIMALS>
// type parameter, so the fractional-digit count is a runtime field set by
// the two constructors below rather than a compile-time type parameter;
// FLK and Stable values are still distinct Go types so they cannot be
// mixed up at a call site.
package fixedpoint

import (
	"github.com/holiman/uint256"
)

const (
	flkDigits    = 18
	stableDigits = 6
)

var (
	flkScale    = pow10(flkDigits)
	stableScale = pow10(stableDigits)
)

func pow10(n int) *uint256.Int {
	v := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 0; i < n; i++ {
		v = new(uint256.Int).Mul(v, ten)
	}
	return v
}

// Value is a fixed-precision unsigned rational, stored as an integer
// number of units of 10^-digits.
type Value struct {
	raw    *uint256.Int
	digits int
}

func newValue(raw *uint256.Int, digits int) Value {
	return Value{raw: raw, digits: digits}
}

// FLK constructs an 18-fractional-digit value from a whole-unit integer.
func FLK(whole uint64) Value {
	return newValue(new(uint256.Int).Mul(uint256.NewInt(whole), flkScale), flkDigits)
}

// Stable constructs a 6-fractional-digit value from a whole-unit integer.
func Stable(whole uint64) Value {
	return newValue(new(uint256.Int).Mul(uint256.NewInt(whole), stableScale), stableDigits)
}

// RawFLK wraps an already-scaled raw integer (as persisted in the
// account/node tables) as an 18-digit value.
func RawFLK(raw uint64) Value {
	return newValue(uint256.NewInt(raw), flkDigits)
}

// RawStable wraps an already-scaled raw integer as a 6-digit value.
func RawStable(raw uint64) Value {
	return newValue(uint256.NewInt(raw), stableDigits)
}

// Percent constructs a dimensionless ratio (18 fractional digits) from a
// whole-number percentage, e.g. Percent(80) == 0.80.
func Percent(pct uint64) Value {
	return Div(FLK(pct), FLK(100))
}

// Raw returns the scaled integer representation.
func (v Value) Raw() uint64 {
	if !v.raw.IsUint64() {
		return ^uint64(0)
	}
	return v.raw.Uint64()
}

// Digits reports the fractional-digit width of v.
func (v Value) Digits() int { return v.digits }

func (v Value) scale() *uint256.Int {
	if v.digits == stableDigits {
		return stableScale
	}
	return flkScale
}

// rescale converts v to the target digit width, truncating toward zero
// when narrowing.
func (v Value) rescale(digits int) Value {
	if digits == v.digits {
		return v
	}
	if digits > v.digits {
		factor := pow10(digits - v.digits)
		return newValue(new(uint256.Int).Mul(v.raw, factor), digits)
	}
	factor := pow10(v.digits - digits)
	return newValue(new(uint256.Int).Div(v.raw, factor), digits)
}

// Add returns a+b, widening to the larger of the two digit widths.
func Add(a, b Value) Value {
	digits := maxInt(a.digits, b.digits)
	a, b = a.rescale(digits), b.rescale(digits)
	return newValue(new(uint256.Int).Add(a.raw, b.raw), digits)
}

// Sub returns a-b; the caller must ensure a >= b, as the type is
// unsigned (mirrors the original's unsigned HpUfixed — underflow panics
// rather than wrapping, since a silent wrap would corrupt replicated
// state).
func Sub(a, b Value) Value {
	digits := maxInt(a.digits, b.digits)
	a, b = a.rescale(digits), b.rescale(digits)
	if a.raw.Lt(b.raw) {
		panic("fixedpoint: subtraction underflow")
	}
	return newValue(new(uint256.Int).Sub(a.raw, b.raw), digits)
}

// Mul returns a*b with digit width a.digits+b.digits, then rescaled down
// (toward zero) to a's digit width: b is the multiplier (a percentage, a
// ratio, a price), so a stablecoin amount times a Percent stays a
// 6-digit stablecoin amount and an FLK amount stays 18-digit.
func Mul(a, b Value) Value {
	product := new(uint256.Int).Mul(a.raw, b.raw)
	wide := newValue(product, a.digits+b.digits)
	return wide.rescale(a.digits)
}

// Div returns a/b rounded toward zero, at the larger of the two input
// digit widths.
func Div(a, b Value) Value {
	digits := maxInt(a.digits, b.digits)
	a, b = a.rescale(2*digits), b.rescale(digits)
	if b.raw.IsZero() {
		panic("fixedpoint: division by zero")
	}
	return newValue(new(uint256.Int).Div(a.raw, b.raw), digits)
}

// Cmp returns -1, 0 or 1 as a is less than, equal to, or greater than b.
func Cmp(a, b Value) int {
	digits := maxInt(a.digits, b.digits)
	a, b = a.rescale(digits), b.rescale(digits)
	return a.raw.Cmp(b.raw)
}

// Min returns the smaller of a and b.
func Min(a, b Value) Value {
	if Cmp(a, b) <= 0 {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
