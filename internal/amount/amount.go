// Package amount implements the integer money arithmetic used by the escrow
// engine. Values are decimal.Decimal constrained to whole units inside the
// signed 128-bit range; every arithmetic helper saturates at the range bounds
// instead of wrapping.
package amount

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	maxBig = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minBig = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	// Max is 2^127 - 1.
	Max = decimal.NewFromBigInt(maxBig, 0)
	// Min is -2^127.
	Min = decimal.NewFromBigInt(minBig, 0)
)

// Zero is the additive identity.
var Zero = decimal.Zero

// Clamp bounds d to [Min, Max].
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(Max) {
		return Max
	}
	if d.LessThan(Min) {
		return Min
	}
	return d
}

// Add returns a+b, saturating.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Clamp(a.Add(b))
}

// Sub returns a-b, saturating.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Clamp(a.Sub(b))
}

// Mul returns a*b, saturating.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return Clamp(a.Mul(b))
}

// Quo returns a/b truncated toward zero. b must be non-zero.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	q := new(big.Int).Quo(a.BigInt(), b.BigInt())
	return decimal.NewFromBigInt(q, 0)
}

// Min2 returns the smaller of a and b.
func Min2(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FromSeconds converts an unsigned second count to an amount multiplier.
func FromSeconds(s uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(s), 0)
}

// IsWhole reports whether d carries no fractional part.
func IsWhole(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}

// InRange reports whether d fits the signed 128-bit range.
func InRange(d decimal.Decimal) bool {
	return !d.GreaterThan(Max) && !d.LessThan(Min)
}

// Validate checks that d is a whole number inside the 128-bit range.
func Validate(d decimal.Decimal) error {
	if !IsWhole(d) {
		return fmt.Errorf("amount %s has a fractional part", d.String())
	}
	if !InRange(d) {
		return fmt.Errorf("amount %s is outside the 128-bit range", d.String())
	}
	return nil
}

// Parse reads a base-10 integer amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
