// Package riskratio converts between the leverage representations used by
// lending protocols: loan-to-value, collateralization ratio and multiple.
package riskratio

import (
	"fmt"

	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// Type tags the representation a RiskRatio was constructed from
type Type int

const (
	LTV Type = iota
	CollateralizationRatio
	Multiple
)

func (t Type) String() string {
	switch t {
	case LTV:
		return "ltv"
	case CollateralizationRatio:
		return "collateralization-ratio"
	case Multiple:
		return "multiple"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// RiskRatio is an immutable leverage value. Getters convert on demand and
// return the stored value unchanged when asked for the constructing type.
type RiskRatio struct {
	value decimal.Decimal
	typ   Type
}

// New constructs a RiskRatio of the given type
func New(value decimal.Decimal, typ Type) (RiskRatio, error) {
	switch typ {
	case LTV:
		return FromLTV(value)
	case CollateralizationRatio:
		return FromCollateralizationRatio(value)
	case Multiple:
		return FromMultiple(value)
	}
	return RiskRatio{}, apperrors.NewDomainError("riskratio.New", apperrors.ErrInvalidRiskRatio, typ.String())
}

// FromLTV builds a ratio from a loan-to-value fraction. Values of one or
// more are accepted here and rejected by Validate.
func FromLTV(ltv decimal.Decimal) (RiskRatio, error) {
	if ltv.IsNegative() {
		return RiskRatio{}, apperrors.NewDomainError("riskratio.FromLTV", apperrors.ErrInvalidRiskRatio,
			fmt.Sprintf("negative loan-to-value %s", ltv))
	}
	return RiskRatio{value: ltv, typ: LTV}, nil
}

// FromMultiple builds a ratio from a leverage multiple. A multiple of one
// means no debt.
func FromMultiple(multiple decimal.Decimal) (RiskRatio, error) {
	if multiple.LessThan(tokenmath.One) {
		return RiskRatio{}, apperrors.NewDomainError("riskratio.FromMultiple", apperrors.ErrInvalidRiskRatio,
			fmt.Sprintf("multiple %s below 1", multiple))
	}
	return RiskRatio{value: multiple, typ: Multiple}, nil
}

// FromCollateralizationRatio builds a ratio from collateral value over debt
func FromCollateralizationRatio(cr decimal.Decimal) (RiskRatio, error) {
	if !cr.IsPositive() {
		return RiskRatio{}, apperrors.NewDomainError("riskratio.FromCollateralizationRatio", apperrors.ErrInvalidRiskRatio,
			fmt.Sprintf("non-positive collateralization ratio %s", cr))
	}
	return RiskRatio{value: cr, typ: CollateralizationRatio}, nil
}

// MustFromMultiple panics on invalid input. Intended for tables and tests.
func MustFromMultiple(multiple decimal.Decimal) RiskRatio {
	r, err := FromMultiple(multiple)
	if err != nil {
		panic(err)
	}
	return r
}

// Type returns the constructing representation
func (r RiskRatio) Type() Type {
	return r.typ
}

// Value returns the stored value in its constructing representation
func (r RiskRatio) Value() decimal.Decimal {
	return r.value
}

// LoanToValue returns debt value over collateral value
func (r RiskRatio) LoanToValue() decimal.Decimal {
	switch r.typ {
	case CollateralizationRatio:
		// positive by construction
		return tokenmath.One.DivRound(r.value, tokenmath.DivScale)
	case Multiple:
		return tokenmath.One.Sub(tokenmath.One.DivRound(r.value, tokenmath.DivScale))
	default:
		return r.value
	}
}

// Multiple returns 1/(1-ltv). An LTV of one or more has no finite multiple.
func (r RiskRatio) Multiple() (decimal.Decimal, error) {
	if r.typ == Multiple {
		return r.value, nil
	}
	ltv := r.LoanToValue()
	m, err := tokenmath.Div(tokenmath.One, tokenmath.One.Sub(ltv))
	if err != nil || !m.IsPositive() {
		return decimal.Zero, apperrors.NewDomainError("riskratio.Multiple", apperrors.ErrDegenerateMath,
			fmt.Sprintf("loan-to-value %s has no finite multiple", ltv))
	}
	return m, nil
}

// CollateralizationRatio returns 1/ltv. A zero LTV has no finite ratio.
func (r RiskRatio) CollateralizationRatio() (decimal.Decimal, error) {
	if r.typ == CollateralizationRatio {
		return r.value, nil
	}
	ltv := r.LoanToValue()
	cr, err := tokenmath.Div(tokenmath.One, ltv)
	if err != nil {
		return decimal.Zero, apperrors.NewDomainError("riskratio.CollateralizationRatio", apperrors.ErrDegenerateMath,
			"zero loan-to-value has no finite collateralization ratio")
	}
	return cr, nil
}

// Validate rejects ratios outside 0 <= ltv < 1
func (r RiskRatio) Validate() error {
	ltv := r.LoanToValue()
	if ltv.IsNegative() || ltv.GreaterThanOrEqual(tokenmath.One) {
		return apperrors.NewDomainError("riskratio.Validate", apperrors.ErrInvalidRiskRatio,
			fmt.Sprintf("loan-to-value %s outside [0, 1)", ltv))
	}
	return nil
}

// Cmp compares by loan-to-value
func (r RiskRatio) Cmp(other RiskRatio) int {
	return r.LoanToValue().Cmp(other.LoanToValue())
}

func (r RiskRatio) String() string {
	return fmt.Sprintf("%s(%s)", r.typ, r.value)
}
