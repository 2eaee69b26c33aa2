// Package fixedpoint implements the packed fixed-point numeric type used
// for every Price and Quantity in the matching engine. It deliberately
// never touches floating point except at the from_f64/to_f64 boundary.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors. Every fallible constructor or arithmetic operation in
// this package returns one of these, wrapped with fmt.Errorf for context.
var (
	ErrValueOverflow    = errors.New("fixedpoint: value overflow")
	ErrInvalidTickPower = errors.New("fixedpoint: invalid tick power")
	ErrMismatchedTicks  = errors.New("fixedpoint: mismatched tick exponents")
)

const (
	// exponentBits is the width, in bits, of the signed tick exponent
	// packed into the low bits of raw. mantissaBits is the remaining
	// width for the signed mantissa. Together they fill exactly 32 bits.
	exponentBits = 6
	mantissaBits = 32 - exponentBits

	minExponent = -(1 << (exponentBits - 1))
	maxExponent = 1<<(exponentBits-1) - 1

	minMantissa = -(1 << (mantissaBits - 1))
	maxMantissa = 1<<(mantissaBits-1) - 1

	exponentMask = uint32(1<<exponentBits) - 1
)

// Value is a packed fixed-point number: a signed mantissa (raw ticks) and
// a signed tick exponent, packed into a single 32-bit word. It is Copy
// (a plain value type) and cache-line-compact by construction.
type Value struct {
	raw uint32
}

// New builds a Value from a raw mantissa (tick count) and a tick exponent.
// It returns ErrInvalidTickPower if exponent is out of the packed range,
// and ErrValueOverflow if mantissa does not fit the packed mantissa width.
func New(mantissa int64, exponent int) (Value, error) {
	if exponent < minExponent || exponent > maxExponent {
		return Value{}, fmt.Errorf("fixedpoint: tick power %d outside [%d,%d]: %w", exponent, minExponent, maxExponent, ErrInvalidTickPower)
	}
	if mantissa < minMantissa || mantissa > maxMantissa {
		return Value{}, fmt.Errorf("fixedpoint: mantissa %d outside [%d,%d]: %w", mantissa, minMantissa, maxMantissa, ErrValueOverflow)
	}
	m := uint32(int32(mantissa)) << exponentBits
	e := uint32(int32(exponent)) & exponentMask
	return Value{raw: m | e}, nil
}

// MustNew is New but panics on error; only safe for compile-time-known
// constants (symbol tick tables, test fixtures), never for user input.
func MustNew(mantissa int64, exponent int) Value {
	v, err := New(mantissa, exponent)
	if err != nil {
		panic(err)
	}
	return v
}

// FromFloat64 constructs a Value from a float64 at the given tick
// exponent. This is a boundary-only conversion (API ingestion, reporting)
// and is never used on the matching hot path.
func FromFloat64(f float64, exponent int) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("fixedpoint: %v is not representable: %w", f, ErrValueOverflow)
	}
	scale := math.Pow10(-exponent)
	scaled := f * scale
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > 1e-6 {
		return Value{}, fmt.Errorf("fixedpoint: %v does not round-trip at tick power %d: %w", f, exponent, ErrValueOverflow)
	}
	return New(int64(rounded), exponent)
}

// Zero returns the additive identity at the given tick exponent.
func Zero(exponent int) Value {
	v, err := New(0, exponent)
	if err != nil {
		panic(err)
	}
	return v
}

// Mantissa returns the signed raw tick count.
func (v Value) Mantissa() int64 {
	return int64(int32(v.raw) >> exponentBits)
}

// Exponent returns the signed tick exponent.
func (v Value) Exponent() int {
	shifted := (v.raw & exponentMask) << (32 - exponentBits)
	return int(int32(shifted) >> (32 - exponentBits))
}

// ToFloat64 performs a lossy conversion for reporting and boundary
// serialization only; never used inside the matching loop.
func (v Value) ToFloat64() float64 {
	return float64(v.Mantissa()) * math.Pow10(v.Exponent())
}

// IsZero reports whether the mantissa is zero, irrespective of exponent.
func (v Value) IsZero() bool {
	return v.Mantissa() == 0
}

// sameExponent requires two Values to share a tick exponent, returning
// ErrMismatchedTicks if not. Two operands of different tick exponents can
// never be combined implicitly; the caller must rescale explicitly first.
func sameExponent(a, b Value) error {
	if a.Exponent() != b.Exponent() {
		return fmt.Errorf("fixedpoint: %d != %d: %w", a.Exponent(), b.Exponent(), ErrMismatchedTicks)
	}
	return nil
}

// Add returns a + b, checked for overflow. Requires matching exponents.
func (v Value) Add(other Value) (Value, error) {
	if err := sameExponent(v, other); err != nil {
		return Value{}, err
	}
	return New(v.Mantissa()+other.Mantissa(), v.Exponent())
}

// Sub returns a - b, checked for overflow. Requires matching exponents.
func (v Value) Sub(other Value) (Value, error) {
	if err := sameExponent(v, other); err != nil {
		return Value{}, err
	}
	return New(v.Mantissa()-other.Mantissa(), v.Exponent())
}

// Mul returns a * b in raw tick space. Defined only when both operands
// share a tick exponent; the result keeps that exponent. This is a
// programmer error to violate, not a silent rescale.
func (v Value) Mul(other Value) (Value, error) {
	if err := sameExponent(v, other); err != nil {
		return Value{}, err
	}
	return New(v.Mantissa()*other.Mantissa(), v.Exponent())
}

// Div returns a / b (truncating integer division) in raw tick space.
// Defined only when both operands share a tick exponent.
func (v Value) Div(other Value) (Value, error) {
	if err := sameExponent(v, other); err != nil {
		return Value{}, err
	}
	if other.Mantissa() == 0 {
		return Value{}, fmt.Errorf("fixedpoint: division by zero: %w", ErrValueOverflow)
	}
	return New(v.Mantissa()/other.Mantissa(), v.Exponent())
}

// Negate returns -v, checked for overflow (the minimum mantissa has no
// positive counterpart in the packed width).
func (v Value) Negate() (Value, error) {
	return New(-v.Mantissa(), v.Exponent())
}

// Cmp returns -1, 0, or 1 comparing v and other's raw ticks. Ordering is
// bitwise integer ordering of the mantissa; it assumes (and does not
// re-check) that both values share a tick exponent, matching the way
// Price/Quantity are used uniformly within one symbol's tick table.
func (v Value) Cmp(other Value) int {
	a, b := v.Mantissa(), other.Mantissa()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// LessThan is a convenience wrapper around Cmp, used pervasively for
// price-side ordering in the matching engine.
func (v Value) LessThan(other Value) bool { return v.Cmp(other) < 0 }

// GreaterThan is a convenience wrapper around Cmp.
func (v Value) GreaterThan(other Value) bool { return v.Cmp(other) > 0 }

// Equal reports whether two values have identical raw representation.
func (v Value) Equal(other Value) bool { return v.raw == other.raw }

// String renders the value as a decimal string honoring its tick exponent.
func (v Value) String() string {
	exp := v.Exponent()
	if exp >= 0 {
		return fmt.Sprintf("%d", v.Mantissa()*int64(math.Pow10(exp)))
	}
	scale := int64(math.Pow10(-exp))
	m := v.Mantissa()
	whole := m / scale
	frac := m % scale
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%0*d", whole, -exp, frac)
}
