package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsOutOfRangeTickPower(t *testing.T) {
	_, err := New(100, 64)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTickPower)
}

func TestNew_RejectsOverflowingMantissa(t *testing.T) {
	_, err := New(1<<30, -2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValueOverflow)
}

func TestFromFloat64_RoundTrip(t *testing.T) {
	v, err := FromFloat64(101.00, -2)
	require.NoError(t, err)
	assert.Equal(t, int64(10100), v.Mantissa())
	assert.Equal(t, -2, v.Exponent())
	assert.InDelta(t, 101.00, v.ToFloat64(), 1e-9)
}

func TestFromFloat64_RejectsNonRepresentable(t *testing.T) {
	_, err := FromFloat64(101.005, -2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValueOverflow)
}

func TestAddSub_RequireMatchingExponents(t *testing.T) {
	a := MustNew(10100, -2)
	b := MustNew(50, -1)

	_, err := a.Add(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatchedTicks)

	_, err = a.Sub(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatchedTicks)
}

func TestAdd_Happy(t *testing.T) {
	a := MustNew(100, -2)
	b := MustNew(50, -2)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(150), sum.Mantissa())
}

func TestSub_Happy(t *testing.T) {
	a := MustNew(100, -2)
	b := MustNew(30, -2)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(70), diff.Mantissa())
}

func TestMulDiv_RequireMatchingExponents(t *testing.T) {
	a := MustNew(10, -2)
	b := MustNew(10, -1)

	_, err := a.Mul(b)
	assert.ErrorIs(t, err, ErrMismatchedTicks)

	_, err = a.Div(b)
	assert.ErrorIs(t, err, ErrMismatchedTicks)
}

func TestCmp_OrdersByRawTicks(t *testing.T) {
	low := MustNew(10100, -2)
	high := MustNew(10150, -2)

	assert.True(t, low.LessThan(high))
	assert.True(t, high.GreaterThan(low))
	assert.Equal(t, 0, low.Cmp(low))
}

func TestEqual(t *testing.T) {
	a := MustNew(10100, -2)
	b := MustNew(10100, -2)
	c := MustNew(10100, -3)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestZero_IsZero(t *testing.T) {
	z := Zero(-2)
	assert.True(t, z.IsZero())

	nz := MustNew(1, -2)
	assert.False(t, nz.IsZero())
}

func TestString(t *testing.T) {
	v := MustNew(10100, -2)
	assert.Equal(t, "101.00", v.String())

	whole := MustNew(42, 0)
	assert.Equal(t, "42", whole.String())
}

func TestNegate(t *testing.T) {
	v := MustNew(150, -2)
	n, err := v.Negate()
	require.NoError(t, err)
	assert.Equal(t, int64(-150), n.Mantissa())
}
