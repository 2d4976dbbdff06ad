// Package tokenmath provides fixed-point helpers for token amounts. Every
// rounding step takes an explicit RoundingMode; nothing relies on the
// package-level defaults of the decimal library.
package tokenmath

import (
	"fmt"

	apperrors "leverage_planner/pkg/errors"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DivScale is the number of fractional digits kept by Div before a caller
// rounds the result to a token precision.
const DivScale int32 = 36

// BasisPoints is the denominator used by fee tables.
var BasisPoints = decimal.NewFromInt(10_000)

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// RoundingMode selects the direction a value is rounded to a precision.
type RoundingMode int

const (
	// RoundDown truncates toward zero. Used for amounts the user receives.
	RoundDown RoundingMode = iota
	// RoundUp rounds away from zero. Used for amounts the user owes.
	RoundUp
	// RoundHalfUp rounds to nearest, ties away from zero.
	RoundHalfUp
)

func (m RoundingMode) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundHalfUp:
		return "half-up"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

// Round rounds d to places fractional digits using mode.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundUp:
		return d.RoundUp(places)
	case RoundHalfUp:
		return d.Round(places)
	default:
		return d.RoundDown(places)
	}
}

// Div divides a by b keeping DivScale digits. A zero divisor is a domain error.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, apperrors.NewDomainError("tokenmath.Div", apperrors.ErrDegenerateMath, "division by zero")
	}
	return a.DivRound(b, DivScale), nil
}

// DivRound divides a by b and rounds the quotient to places using mode.
func DivRound(a, b decimal.Decimal, places int32, mode RoundingMode) (decimal.Decimal, error) {
	q, err := Div(a, b)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(q, places, mode), nil
}

// Bps converts basis points into a fraction.
func Bps(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).DivRound(BasisPoints, DivScale)
}

// ToBaseUnits converts a token amount into its on-chain integer form.
func ToBaseUnits(amount decimal.Decimal, precision int32, mode RoundingMode) (*uint256.Int, error) {
	if amount.IsNegative() {
		return nil, apperrors.NewDomainError("tokenmath.ToBaseUnits", apperrors.ErrInvalidArgument,
			fmt.Sprintf("negative amount %s", amount))
	}
	if precision < 0 {
		return nil, apperrors.NewDomainError("tokenmath.ToBaseUnits", apperrors.ErrInvalidArgument,
			fmt.Sprintf("negative precision %d", precision))
	}
	scaled := Round(amount.Shift(precision), 0, mode)
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, apperrors.NewDomainError("tokenmath.ToBaseUnits", apperrors.ErrPrecisionOverflow, amount.String())
	}
	return v, nil
}

// FromBaseUnits converts an on-chain integer back into a token amount.
func FromBaseUnits(v *uint256.Int, precision int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -precision)
}

// AdjustPrecision re-expresses an amount held at one token precision at
// another, e.g. an 18-decimal stablecoin amount as a 6-decimal one.
func AdjustPrecision(amount decimal.Decimal, from, to int32, mode RoundingMode) decimal.Decimal {
	if to >= from {
		return Round(amount, from, mode)
	}
	return Round(amount, to, mode)
}

// ClampZero returns zero for negative values.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// WithinTolerance reports whether |a-b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// MinimalUnit returns the smallest representable amount at precision.
func MinimalUnit(precision int32) decimal.Decimal {
	return decimal.New(1, -precision)
}
