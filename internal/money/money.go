// Package money implements fixed-point currency arithmetic in integer
// minor units (cents). Rates are expressed in basis points so that every
// tax or discount computation is a single exact integer multiplication
// followed by one half-up rounding step.
package money

import (
	"errors"
	"fmt"
)

// Money is an amount in minor units of the document currency.
type Money int64

// Bps is a rational multiplier with denominator 10000.
// 825 Bps = 8.25% = 0.0825.
type Bps int64

var ErrInvalidAmount = errors.New("invalid_amount")

func Add(a, b Money) Money { return a + b }

func Sub(a, b Money) Money { return a - b }

// Sum folds the terms left to right. The fold order is fixed so repeated
// computation over the same inputs always yields the same result.
func Sum(terms []Money) Money {
	var total Money
	for _, t := range terms {
		total += t
	}
	return total
}

// MulRate applies a basis-point rate to an amount, rounding half-up to the
// nearest minor unit. The rounding happens exactly once; callers must not
// chain MulRate over already-rounded intermediates of the same computation.
func MulRate(amount Money, rate Bps) Money {
	if amount >= 0 {
		return Money((int64(amount)*int64(rate) + 5000) / 10000)
	}
	return -Money((-int64(amount)*int64(rate) + 5000) / 10000)
}

// PercentageOf returns rate applied to base. Alias of MulRate kept for
// call sites that read as a percentage computation.
func PercentageOf(base Money, rate Bps) Money {
	return MulRate(base, rate)
}

// LineTotal computes quantity x unit price for a line item.
func LineTotal(quantity int64, unitPrice Money) (Money, error) {
	if quantity <= 0 || unitPrice < 0 {
		return 0, ErrInvalidAmount
	}
	return Money(quantity) * unitPrice, nil
}

// FormatAmount renders minor units as a decimal currency string, e.g.
// 97425 -> "974.25".
func FormatAmount(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}

// RateFromPercent converts a percentage expressed with up to two decimal
// places (e.g. 8.25) into basis points. Values outside [0, 100] are
// rejected; the boundary guards callers that bind rates from request JSON.
func RateFromPercent(percent float64) (Bps, error) {
	if percent < 0 || percent > 100 {
		return 0, ErrInvalidAmount
	}
	bps := int64(percent*100 + 0.5)
	return Bps(bps), nil
}
