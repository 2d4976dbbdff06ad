package validation

import (
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

func finding(kind Kind, severity Severity, data map[string]decimal.Decimal) []Finding {
	return []Finding{{Kind: kind, Severity: severity, Data: data}}
}

// InvalidRiskRatio rejects a requested target outside 0 <= ltv < 1
func InvalidRiskRatio(in Input) []Finding {
	if in.TargetRiskRatio == nil || in.TargetRiskRatio.Validate() == nil {
		return nil
	}
	return finding(KindInvalidRiskRatio, SeverityError, map[string]decimal.Decimal{
		"loanToValue": in.TargetRiskRatio.LoanToValue(),
	})
}

// TargetLTVExceedsMaxLTV rejects a requested target above the category max
func TargetLTVExceedsMaxLTV(in Input) []Finding {
	if in.TargetRiskRatio == nil {
		return nil
	}
	ltv := in.TargetRiskRatio.LoanToValue()
	maxLTV := in.Target.Category.MaxLoanToValue
	if ltv.GreaterThanOrEqual(tokenmath.One) || !ltv.GreaterThan(maxLTV) {
		return nil
	}
	return finding(KindTargetLTVExceedsMaxLTV, SeverityError, map[string]decimal.Decimal{
		"loanToValue":    ltv,
		"maxLoanToValue": maxLTV,
	})
}

// DustLimit rejects remaining debt that is positive but below the minimum
func DustLimit(in Input) []Finding {
	minDebt := in.Pool.MinDebtAmount
	if !minDebt.IsPositive() {
		minDebt = in.Target.Category.DustLimit
	}
	debt := in.Target.Debt.Amount
	if !debt.IsPositive() || !debt.LessThan(minDebt) {
		return nil
	}
	return finding(KindDustLimit, SeverityError, map[string]decimal.Decimal{
		"minDebtAmount": minDebt,
		"debt":          debt,
	})
}

// Borrowable is the available liquidity above the pool's buffer
func (p Pool) Borrowable() decimal.Decimal {
	buffer := decimal.Min(tokenmath.ClampZero(p.LiquidityBuffer), tokenmath.One)
	return tokenmath.ClampZero(p.AvailableLiquidity.Mul(tokenmath.One.Sub(buffer)))
}

// NotEnoughLiquidity rejects a borrow that would push the pool's liquidity
// into its buffer
func NotEnoughLiquidity(in Input) []Finding {
	if !in.Pool.HasLiquidityData || !in.RequestedBorrow.IsPositive() {
		return nil
	}
	borrowable := in.Pool.Borrowable()
	if !in.RequestedBorrow.GreaterThan(borrowable) {
		return nil
	}
	return finding(KindNotEnoughLiquidity, SeverityError, map[string]decimal.Decimal{
		"amount":             in.RequestedBorrow,
		"availableLiquidity": borrowable,
	})
}

// UndercollateralizedBorrow rejects new debt the new collateral cannot back
func UndercollateralizedBorrow(in Input) []Finding {
	if !in.Target.Debt.Amount.GreaterThan(in.Previous.Debt.Amount) {
		return nil
	}
	maxDebt := in.Target.Collateral.Amount.Mul(in.Target.OraclePrice).Mul(in.Target.Category.MaxLoanToValue)
	if !in.Target.Debt.Amount.GreaterThan(maxDebt) {
		return nil
	}
	return finding(KindUndercollateralizedBorrow, SeverityError, map[string]decimal.Decimal{
		"maxDebt": tokenmath.Round(tokenmath.ClampZero(maxDebt), in.Target.Debt.Precision, tokenmath.RoundDown),
		"debt":    in.Target.Debt.Amount,
	})
}

// Overdraw rejects a withdrawal beyond what stays solvent, or below zero
func Overdraw(in Input) []Finding {
	if in.Target.Collateral.Amount.IsNegative() {
		return finding(KindOverdraw, SeverityError, map[string]decimal.Decimal{
			"maxWithdrawal": tokenmath.ClampZero(in.Previous.Collateral.Amount),
		})
	}
	if !in.RequestedWithdraw.IsPositive() {
		return nil
	}
	beforeWithdraw := in.Target.Deposit(in.RequestedWithdraw)
	available := beforeWithdraw.MaxCollateralToWithdraw()
	if !in.RequestedWithdraw.GreaterThan(available) {
		return nil
	}
	return finding(KindOverdraw, SeverityError, map[string]decimal.Decimal{
		"maxWithdrawal": available,
		"requested":     in.RequestedWithdraw,
	})
}

// UndercollateralizedWithdraw rejects a withdrawal that lifts the threshold
// price (debt per unit of collateral) above the pool safe price floor
func UndercollateralizedWithdraw(in Input) []Finding {
	floor := in.Pool.SafePriceFloor
	if !floor.IsPositive() || !in.Target.Collateral.Amount.LessThan(in.Previous.Collateral.Amount) {
		return nil
	}
	if !in.Target.Debt.Amount.IsPositive() {
		return nil
	}
	if !in.Target.Collateral.Amount.IsPositive() {
		return finding(KindUndercollateralizedWithdraw, SeverityError, map[string]decimal.Decimal{
			"safePriceFloor": floor,
		})
	}
	threshold := in.Target.Debt.Amount.DivRound(in.Target.Collateral.Amount, tokenmath.DivScale)
	if !threshold.GreaterThan(floor) {
		return nil
	}
	return finding(KindUndercollateralizedWithdraw, SeverityError, map[string]decimal.Decimal{
		"thresholdPrice": threshold,
		"safePriceFloor": floor,
	})
}

// PaybackExceedsDebt rejects repaying more than is owed
func PaybackExceedsDebt(in Input) []Finding {
	if !in.Target.Debt.Amount.IsNegative() {
		return nil
	}
	return finding(KindPaybackExceedsDebt, SeverityError, map[string]decimal.Decimal{
		"debt":      in.Previous.Debt.Amount,
		"requested": in.RequestedPayback,
	})
}

// CloseToMaxLTV warns when a changed position ends within the offset of max
// LTV without crossing it
func CloseToMaxLTV(in Input) []Finding {
	changed := !in.Target.Debt.Amount.Equal(in.Previous.Debt.Amount) ||
		!in.Target.Collateral.Amount.Equal(in.Previous.Collateral.Amount)
	if !changed || !in.Target.Debt.Amount.IsPositive() {
		return nil
	}
	offset := in.CloseToMaxLTVOffset
	if !offset.IsPositive() {
		offset = DefaultCloseToMaxLTVOffset
	}
	maxLTV := in.Target.Category.MaxLoanToValue
	ltv := in.Target.LoanToValue()
	if ltv.LessThan(maxLTV.Sub(offset)) || ltv.GreaterThan(maxLTV) {
		return nil
	}
	return finding(KindCloseToMaxLTV, SeverityWarning, map[string]decimal.Decimal{
		"loanToValue":    ltv,
		"maxLoanToValue": maxLTV,
	})
}
