package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteTotalScenario(t *testing.T) {
	// $1,000.00 subtotal, 10% discount, 8.25% tax -> $974.25 total.
	subtotal := Money(100000)

	discount := PercentageOf(subtotal, 1000)
	assert.Equal(t, Money(10000), discount)

	taxable := Sub(subtotal, discount)
	assert.Equal(t, Money(90000), taxable)

	tax := PercentageOf(taxable, 825)
	assert.Equal(t, Money(7425), tax)

	total := Add(taxable, tax)
	assert.Equal(t, Money(97425), total)
}

func TestMulRateRoundsHalfUp(t *testing.T) {
	// 10.01 * 5% = 0.5005 -> rounds up to 0.51? No: 1001 * 500 / 10000 = 50.05 -> 50.
	assert.Equal(t, Money(50), MulRate(1001, 500))
	// 10.10 * 5% = 0.505 -> exactly half, rounds up to 0.51.
	assert.Equal(t, Money(51), MulRate(1010, 500))
	assert.Equal(t, Money(0), MulRate(0, 825))
	assert.Equal(t, Money(-51), MulRate(-1010, 500))
}

func TestMulRateIdempotentOverSameInputs(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Money(7425), MulRate(90000, 825))
	}
}

func TestSumFoldsLeftToRight(t *testing.T) {
	terms := []Money{1, 2, 3, 4, 5}
	assert.Equal(t, Money(15), Sum(terms))
	assert.Equal(t, Money(0), Sum(nil))
}

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(3, 2500)
	assert.NoError(t, err)
	assert.Equal(t, Money(7500), total)

	_, err = LineTotal(0, 2500)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = LineTotal(-1, 2500)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = LineTotal(1, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "974.25", FormatAmount(97425))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "-12.00", FormatAmount(-1200))
}

func TestRateFromPercent(t *testing.T) {
	rate, err := RateFromPercent(8.25)
	assert.NoError(t, err)
	assert.Equal(t, Bps(825), rate)

	rate, err = RateFromPercent(10)
	assert.NoError(t, err)
	assert.Equal(t, Bps(1000), rate)

	_, err = RateFromPercent(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = RateFromPercent(101)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
