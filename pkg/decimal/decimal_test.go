package decimal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesScale(t *testing.T) {
	d, err := Parse("5.50")
	require.NoError(t, err)
	assert.Equal(t, "5.50", d.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("12.3.4")
	assert.Error(t, err)

	_, err = Parse("abc")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestAddIsExact(t *testing.T) {
	a, err := Parse("0.1")
	require.NoError(t, err)
	b, err := Parse("0.2")
	require.NoError(t, err)

	sum := a.Add(b)
	assert.Equal(t, "0.3", sum.String())
}

func TestIsNegative(t *testing.T) {
	neg, err := Parse("-2.50")
	require.NoError(t, err)
	assert.True(t, neg.IsNegative())

	zero, err := Parse("0.00")
	require.NoError(t, err)
	assert.False(t, zero.IsNegative())

	negZero, err := Parse("-0")
	require.NoError(t, err)
	assert.False(t, negZero.IsNegative())

	pos, err := Parse("1")
	require.NoError(t, err)
	assert.False(t, pos.IsNegative())
}

func TestRound(t *testing.T) {
	d, err := Parse("5.5")
	require.NoError(t, err)
	assert.Equal(t, "5.50", d.Round(2).String())

	d, err = Parse("2.345")
	require.NoError(t, err)
	assert.Equal(t, "2.35", d.Round(2).String())
}

func TestDivThenRound(t *testing.T) {
	sum, err := Parse("10.00")
	require.NoError(t, err)

	avg := sum.Div(FromInt64(3)).Round(2)
	assert.Equal(t, "3.33", avg.String())
}

func TestCmp(t *testing.T) {
	a, _ := Parse("1.50")
	b, _ := Parse("1.5")
	assert.Equal(t, 0, a.Cmp(b))

	c, _ := Parse("2")
	assert.Equal(t, -1, a.Cmp(c))
	assert.Equal(t, 1, c.Cmp(a))
}

func TestZeroValueUsableAsAccumulator(t *testing.T) {
	acc := Zero()
	inc, _ := Parse("5.50")
	acc = acc.Add(inc)
	acc = acc.Add(inc)
	assert.Equal(t, "11.00", acc.String())
}
