// Package money handles exact decimal amounts. Amounts are stored as int64
// minor units (cents) everywhere past the API boundary; decimal arithmetic is
// confined to parsing, formatting and installment division.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Exponent is the fixed minor-unit precision: two decimal places.
const Exponent = 2

var (
	ErrNotPositive  = errors.New("amount must be positive")
	ErrTooPrecise   = errors.New("amount has more than two decimal places")
	ErrTooLarge     = errors.New("amount does not fit in minor units")
	ErrBadCount     = errors.New("installment count must be at least 1")
	ErrIndivisible  = errors.New("amount cannot be split into that many positive installments")
	ErrNotParseable = errors.New("amount is not a valid decimal")
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// Parse converts a decimal string like "100.00" into minor units. The amount
// must be strictly positive, carry no value below one cent, and fit in an
// int64 once shifted. Trailing zeros past two places ("1.100") are accepted.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrNotParseable
	}
	if !d.IsPositive() {
		return 0, ErrNotPositive
	}
	if !d.Equal(d.Truncate(Exponent)) {
		return 0, ErrTooPrecise
	}
	minor := d.Shift(Exponent)
	if minor.GreaterThan(maxMinorUnits) {
		return 0, ErrTooLarge
	}
	return minor.IntPart(), nil
}

// Format renders minor units as a fixed two-decimal string.
func Format(cents int64) string {
	return decimal.New(cents, -Exponent).StringFixed(Exponent)
}

// Split divides a total into n installment amounts using round-half-up per
// installment. The rounding remainder goes to the first installment so the
// parts always sum exactly to the total: no cent is ever created or lost.
func Split(total int64, n int) ([]int64, error) {
	if n < 1 {
		return nil, ErrBadCount
	}
	if total <= 0 {
		return nil, ErrNotPositive
	}

	// DivRound rounds half away from zero, which is half-up for positive
	// amounts.
	each := decimal.New(total, 0).DivRound(decimal.NewFromInt(int64(n)), 0).IntPart()
	first := total - each*int64(n-1)

	// Every installment must carry at least one cent. Rounding to zero
	// (total far below n) or an overshoot that drains the first installment
	// (e.g. 9 cents over 6) cannot satisfy that.
	if each < 1 || first < 1 {
		return nil, ErrIndivisible
	}

	parts := make([]int64, n)
	parts[0] = first
	for i := 1; i < n; i++ {
		parts[i] = each
	}
	return parts, nil
}
