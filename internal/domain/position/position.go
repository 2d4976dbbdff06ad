// Package position models a collateral/debt position on a lending protocol.
// Position is a value type: every transition returns a new Position.
package position

import (
	"leverage_planner/internal/domain/riskratio"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// Category holds the protocol risk parameters of a collateral/debt pair
type Category struct {
	MaxLoanToValue       decimal.Decimal `json:"maxLoanToValue"`
	LiquidationThreshold decimal.Decimal `json:"liquidationThreshold"`
	DustLimit            decimal.Decimal `json:"dustLimit"`
}

// Position is collateral and debt priced by the protocol oracle.
// OraclePrice is one unit of collateral in debt tokens.
type Position struct {
	Collateral  Balance         `json:"collateral"`
	Debt        Balance         `json:"debt"`
	Category    Category        `json:"category"`
	OraclePrice decimal.Decimal `json:"oraclePrice"`
}

// New builds a Position
func New(collateral, debt Balance, oraclePrice decimal.Decimal, category Category) Position {
	return Position{
		Collateral:  collateral,
		Debt:        debt,
		Category:    category,
		OraclePrice: oraclePrice,
	}
}

// Deposit adds collateral
func (p Position) Deposit(amount decimal.Decimal) Position {
	p.Collateral = p.Collateral.Add(amount)
	return p
}

// Withdraw removes collateral. Over-withdrawal is left to validation.
func (p Position) Withdraw(amount decimal.Decimal) Position {
	p.Collateral = p.Collateral.Sub(amount)
	return p
}

// Borrow adds debt
func (p Position) Borrow(amount decimal.Decimal) Position {
	p.Debt = p.Debt.Add(amount)
	return p
}

// Payback removes debt. Over-payment is left to validation.
func (p Position) Payback(amount decimal.Decimal) Position {
	p.Debt = p.Debt.Sub(amount)
	return p
}

// WithOraclePrice returns the position repriced
func (p Position) WithOraclePrice(price decimal.Decimal) Position {
	p.OraclePrice = price
	return p
}

// CollateralValue is collateral priced in debt tokens
func (p Position) CollateralValue() decimal.Decimal {
	return p.Collateral.Amount.Mul(p.OraclePrice)
}

// LoanToValue is debt over collateral value, zero when collateral is worthless
func (p Position) LoanToValue() decimal.Decimal {
	value := p.CollateralValue()
	if !value.IsPositive() {
		return decimal.Zero
	}
	return p.Debt.Amount.DivRound(value, tokenmath.DivScale)
}

// RiskRatio returns the current LTV. It fails only for a negative debt leg.
func (p Position) RiskRatio() (riskratio.RiskRatio, error) {
	return riskratio.FromLTV(p.LoanToValue())
}

// MaxRiskRatio is the category max LTV
func (p Position) MaxRiskRatio() (riskratio.RiskRatio, error) {
	return riskratio.FromLTV(p.Category.MaxLoanToValue)
}

// DebtAvailable is the additional debt that collateralAmount supports at max
// LTV given the current debt, never negative.
func (p Position) DebtAvailable(collateralAmount decimal.Decimal) decimal.Decimal {
	limit := collateralAmount.Mul(p.OraclePrice).Mul(p.Category.MaxLoanToValue)
	return tokenmath.ClampZero(limit.Sub(p.Debt.Amount))
}

// MaxDebtToBorrow rounds DebtAvailable for the current collateral down to
// the debt token precision.
func (p Position) MaxDebtToBorrow() decimal.Decimal {
	return tokenmath.Round(p.DebtAvailable(p.Collateral.Amount), p.Debt.Precision, tokenmath.RoundDown)
}

// MaxCollateralToWithdraw is the collateral that can leave while the
// remainder still backs the debt at max LTV.
func (p Position) MaxCollateralToWithdraw() decimal.Decimal {
	perUnit := p.OraclePrice.Mul(p.Category.MaxLoanToValue)
	if !perUnit.IsPositive() {
		if p.Debt.Amount.IsPositive() {
			return decimal.Zero
		}
		return tokenmath.ClampZero(p.Collateral.Amount)
	}
	locked := p.Debt.Amount.DivRound(perUnit, tokenmath.DivScale)
	free := tokenmath.ClampZero(p.Collateral.Amount.Sub(locked))
	return tokenmath.Round(free, p.Collateral.Precision, tokenmath.RoundDown)
}

// LiquidationPrice is the oracle price at which debt reaches the liquidation
// threshold. Zero when there is no collateral.
func (p Position) LiquidationPrice() decimal.Decimal {
	denom := p.Collateral.Amount.Mul(p.Category.LiquidationThreshold)
	if !denom.IsPositive() {
		return decimal.Zero
	}
	return p.Debt.Amount.DivRound(denom, tokenmath.DivScale)
}

// HealthFactor is threshold-weighted collateral value over debt. The bool
// is false when there is no debt and the factor is unbounded.
func (p Position) HealthFactor() (decimal.Decimal, bool) {
	if !p.Debt.Amount.IsPositive() {
		return decimal.Zero, false
	}
	weighted := p.CollateralValue().Mul(p.Category.LiquidationThreshold)
	return weighted.DivRound(p.Debt.Amount, tokenmath.DivScale), true
}

// RelativeCollateralPriceMovementUntilLiquidation is the fractional oracle
// move that triggers liquidation, e.g. -0.25 for a 25% drop.
func (p Position) RelativeCollateralPriceMovementUntilLiquidation() decimal.Decimal {
	if !p.OraclePrice.IsPositive() {
		return decimal.Zero
	}
	return p.LiquidationPrice().DivRound(p.OraclePrice, tokenmath.DivScale).Sub(tokenmath.One)
}

// MinConfigurableRiskRatio is the lowest LTV a position can be configured
// to when any debt it holds must clear the dust limit. marketPrice is the
// slippage-adjusted price used to buy collateral with the extra debt.
func (p Position) MinConfigurableRiskRatio(marketPrice decimal.Decimal) (riskratio.RiskRatio, error) {
	missing := p.Category.DustLimit.Sub(p.Debt.Amount)
	if !missing.IsPositive() || !marketPrice.IsPositive() {
		return p.RiskRatio()
	}
	bought := missing.DivRound(marketPrice, tokenmath.DivScale)
	return p.Borrow(missing).Deposit(bought).RiskRatio()
}

// IsEmpty reports a closed position
func (p Position) IsEmpty() bool {
	return p.Collateral.IsZero() && p.Debt.IsZero()
}

// Equal compares balances, category and price
func (p Position) Equal(other Position) bool {
	return p.Collateral.Equal(other.Collateral) &&
		p.Debt.Equal(other.Debt) &&
		p.OraclePrice.Equal(other.OraclePrice) &&
		p.Category.MaxLoanToValue.Equal(other.Category.MaxLoanToValue) &&
		p.Category.LiquidationThreshold.Equal(other.Category.LiquidationThreshold) &&
		p.Category.DustLimit.Equal(other.Category.DustLimit)
}
