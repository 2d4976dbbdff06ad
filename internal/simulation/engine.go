package simulation

import (
	"fmt"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/domain/riskratio"
	"leverage_planner/internal/fees"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

func domainErr(op string, sentinel error, format string, args ...interface{}) error {
	return apperrors.NewDomainError("simulation."+op, sentinel, fmt.Sprintf(format, args...))
}

func checkFraction(op, name string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThanOrEqual(tokenmath.One) {
		return domainErr(op, apperrors.ErrInvalidArgument, "%s %s outside [0, 1)", name, v)
	}
	return nil
}

func (p Params) validate(op string, needOracle bool) error {
	if !p.Prices.Market.IsPositive() {
		return domainErr(op, apperrors.ErrDegenerateMath, "market price %s must be positive", p.Prices.Market)
	}
	if needOracle && !p.Prices.Oracle.IsPositive() {
		return domainErr(op, apperrors.ErrDegenerateMath, "oracle price %s must be positive", p.Prices.Oracle)
	}
	if err := checkFraction(op, "slippage", p.Slippage); err != nil {
		return err
	}
	if err := checkFraction(op, "flashloan fee", p.Fees.FlashLoan); err != nil {
		return err
	}
	if err := checkFraction(op, "protocol fee", p.Fees.Protocol); err != nil {
		return err
	}
	if p.Fees.EstimateInflator.IsNegative() {
		return domainErr(op, apperrors.ErrInvalidArgument, "fee estimate inflator %s must not be negative", p.Fees.EstimateInflator)
	}
	if p.DepositedByUser.Debt.IsNegative() || p.DepositedByUser.Collateral.IsNegative() {
		return domainErr(op, apperrors.ErrInvalidArgument, "user deposits must not be negative")
	}
	return nil
}

// effectiveFee is the fee rate the solver charges against the swap input.
// A fee taken from the output is charged on the quoted amount padded by the
// estimate inflator, while the position is only credited with the
// slippage-adjusted minimum, so its weight grows by (1+inflator)/(1-slippage).
func effectiveFee(op string, params Params) (decimal.Decimal, error) {
	if params.CollectSwapFeeFrom != core.CollectFeeFromTarget {
		return params.Fees.Protocol, nil
	}
	padded := params.Fees.Protocol.Mul(tokenmath.One.Add(params.Fees.EstimateInflator))
	rate, err := tokenmath.Div(padded, tokenmath.One.Sub(params.Slippage))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.GreaterThanOrEqual(tokenmath.One) {
		return decimal.Zero, domainErr(op, apperrors.ErrDegenerateMath, "swap fee %s consumes the whole output", rate)
	}
	return rate, nil
}

// AdjustToTargetRiskRatio solves, in closed form, for the transition that
// moves pos to target. Risk increases flashloan debt tokens, swap them to
// collateral and borrow to repay. Risk decreases sell collateral and pay
// debt back.
func AdjustToTargetRiskRatio(pos position.Position, target riskratio.RiskRatio, params Params) (Transition, error) {
	const op = "AdjustToTargetRiskRatio"
	if err := params.validate(op, true); err != nil {
		return Transition{}, err
	}

	targetLTV := target.LoanToValue()
	if !targetLTV.IsPositive() || targetLTV.GreaterThanOrEqual(tokenmath.One) {
		return Transition{}, domainErr(op, apperrors.ErrInvalidRiskRatio,
			"target %s implies a collateralization ratio that is not above one", target)
	}
	cr, err := tokenmath.Div(tokenmath.One, targetLTV)
	if err != nil {
		return Transition{}, err
	}

	pos = pos.WithOraclePrice(params.Prices.Oracle)
	withCollateral := pos.Deposit(params.DepositedByUser.Collateral)
	if targetLTV.GreaterThan(withCollateral.LoanToValue()) {
		return increaseRisk(pos, cr, params)
	}
	return decreaseRisk(pos, cr, params)
}

func increaseRisk(pos position.Position, cr decimal.Decimal, params Params) (Transition, error) {
	const op = "increaseRisk"
	debtPrec := params.DebtToken.Precision

	// worst accepted price: the swap must deliver at least out x (1-slippage)
	mp, err := tokenmath.Div(params.Prices.Market, tokenmath.One.Sub(params.Slippage))
	if err != nil {
		return Transition{}, err
	}
	of, err := effectiveFee(op, params)
	if err != nil {
		return Transition{}, err
	}
	oracle := params.Prices.Oracle
	oneMinusOF := tokenmath.One.Sub(of)
	onePlusFF := tokenmath.One.Add(params.Fees.FlashLoan)
	dw := params.DepositedByUser.Debt
	cw := params.DepositedByUser.Collateral

	depositAsCollateral, err := tokenmath.Div(dw.Mul(oneMinusOF), mp)
	if err != nil {
		return Transition{}, err
	}
	owned := pos.Collateral.Amount.Add(cw).Add(depositAsCollateral)

	num := mp.Mul(oracle).Mul(owned).Sub(cr.Mul(mp).Mul(pos.Debt.Amount))
	den := cr.Mul(mp).Mul(onePlusFF).Sub(oracle.Mul(oneMinusOF))
	if !den.IsPositive() {
		return Transition{}, domainErr(op, apperrors.ErrDegenerateMath,
			"no leverage solution for collateralization ratio %s at market %s oracle %s", cr.Round(6), mp, oracle)
	}
	x, err := tokenmath.Div(num, den)
	if err != nil {
		return Transition{}, err
	}
	if x.IsNegative() {
		return Transition{}, domainErr(op, apperrors.ErrInvalidArgument, "position is already above the target ratio")
	}

	x = tokenmath.Round(x, debtPrec, tokenmath.RoundUp)
	debtDelta := tokenmath.Round(x.Mul(onePlusFF), debtPrec, tokenmath.RoundUp)

	swap, received, err := buyCollateral(x.Add(dw), params)
	if err != nil {
		return Transition{}, err
	}
	collateralDelta := cw.Add(received)

	return Transition{
		Delta: Delta{
			Collateral:      collateralDelta,
			Debt:            debtDelta,
			FlashloanAmount: x,
		},
		Swap:             swap,
		Position:         pos.Deposit(collateralDelta).Borrow(debtDelta),
		IsIncreasingRisk: true,
	}, nil
}

func decreaseRisk(pos position.Position, cr decimal.Decimal, params Params) (Transition, error) {
	const op = "decreaseRisk"
	collPrec := params.CollateralToken.Precision

	mp := params.Prices.Market.Mul(tokenmath.One.Sub(params.Slippage))
	of, err := effectiveFee(op, params)
	if err != nil {
		return Transition{}, err
	}
	oracle := params.Prices.Oracle
	oneMinusOF := tokenmath.One.Sub(of)
	onePlusFF := tokenmath.One.Add(params.Fees.FlashLoan)
	dw := params.DepositedByUser.Debt
	cw := params.DepositedByUser.Collateral

	// debt repaid per unit of collateral sold
	k, err := tokenmath.Div(mp.Mul(oneMinusOF), onePlusFF)
	if err != nil {
		return Transition{}, err
	}
	owned := pos.Collateral.Amount.Add(cw)
	remainingDebt := pos.Debt.Amount.Sub(dw)

	num := cr.Mul(remainingDebt).Sub(owned.Mul(oracle))
	den := cr.Mul(k).Sub(oracle)
	if !den.IsPositive() {
		return Transition{}, domainErr(op, apperrors.ErrDegenerateMath,
			"selling collateral at %s cannot reach collateralization ratio %s", mp, cr.Round(6))
	}
	y, err := tokenmath.Div(num, den)
	if err != nil {
		return Transition{}, err
	}
	if y.IsNegative() {
		return Transition{}, domainErr(op, apperrors.ErrInvalidArgument, "debt deposit already moves the position below the target ratio")
	}
	y = tokenmath.Round(y, collPrec, tokenmath.RoundUp)

	swap, proceeds, err := sellCollateral(y, params)
	if err != nil {
		return Transition{}, err
	}
	payback, err := tokenmath.DivRound(proceeds, onePlusFF, params.DebtToken.Precision, tokenmath.RoundDown)
	if err != nil {
		return Transition{}, err
	}
	totalPayback := dw.Add(payback)

	return Transition{
		Delta: Delta{
			Collateral:      cw.Sub(y),
			Debt:            totalPayback.Neg(),
			FlashloanAmount: payback,
		},
		Swap:     swap,
		Position: pos.Deposit(cw).Withdraw(y).Payback(totalPayback),
	}, nil
}

// Close simulates unwinding pos completely. toCollateral sells only the
// collateral needed to repay debt and the flashloan fee. Otherwise every
// unit of collateral is sold and the surplus is returned in debt tokens.
func Close(pos position.Position, params Params, toCollateral bool) (Transition, error) {
	const op = "Close"
	if pos.IsEmpty() {
		return Transition{}, domainErr(op, apperrors.ErrInvalidArgument, "position is already empty")
	}
	if pos.Collateral.Amount.IsNegative() || pos.Debt.Amount.IsNegative() {
		return Transition{}, domainErr(op, apperrors.ErrInvalidArgument, "position has a negative leg")
	}
	needSwap := !toCollateral || pos.Debt.Amount.IsPositive()
	of := params.Fees.Protocol
	if needSwap {
		if err := params.validate(op, false); err != nil {
			return Transition{}, err
		}
		var err error
		if of, err = effectiveFee(op, params); err != nil {
			return Transition{}, err
		}
	}

	debtPrec := params.DebtToken.Precision
	collPrec := params.CollateralToken.Precision
	mp := params.Prices.Market.Mul(tokenmath.One.Sub(params.Slippage))
	oneMinusOF := tokenmath.One.Sub(of)
	onePlusFF := tokenmath.One.Add(params.Fees.FlashLoan)

	flashloanAmount := tokenmath.Round(pos.Debt.Amount, debtPrec, tokenmath.RoundUp)
	owed := tokenmath.Round(flashloanAmount.Mul(onePlusFF), debtPrec, tokenmath.RoundUp)

	sell := pos.Collateral.Amount
	if toCollateral {
		sell = decimal.Zero
		if owed.IsPositive() {
			// three debt units cover rounding in the output, its minimum and the fee
			padded := owed.Add(tokenmath.MinimalUnit(debtPrec).Mul(decimal.NewFromInt(3)))
			y, err := tokenmath.DivRound(padded, mp.Mul(oneMinusOF), collPrec, tokenmath.RoundUp)
			if err != nil {
				return Transition{}, err
			}
			sell = decimal.Min(y, pos.Collateral.Amount)
		}
	}

	var (
		swap     Swap
		proceeds decimal.Decimal
		err      error
	)
	if sell.IsPositive() {
		swap, proceeds, err = sellCollateral(sell, params)
		if err != nil {
			return Transition{}, err
		}
	} else {
		swap = Swap{FromToken: params.CollateralToken, ToToken: params.DebtToken, CollectFeeFrom: params.CollectSwapFeeFrom}
	}
	if proceeds.LessThan(owed) {
		return Transition{}, domainErr(op, apperrors.ErrDegenerateMath,
			"collateral sale yields %s, below the %s owed", proceeds, owed)
	}

	summary := &CloseSummary{
		ToCollateral:       toCollateral,
		CollateralToUser:   pos.Collateral.Amount.Sub(sell),
		DebtTokenToUser:    proceeds.Sub(owed),
		FlashloanRepayment: owed,
	}

	return Transition{
		Delta: Delta{
			Collateral:      pos.Collateral.Amount.Neg(),
			Debt:            pos.Debt.Amount.Neg(),
			FlashloanAmount: flashloanAmount,
		},
		Swap:     swap,
		Position: pos.Withdraw(pos.Collateral.Amount).Payback(pos.Debt.Amount),
		Close:    summary,
	}, nil
}

// buyCollateral swaps amount debt tokens into collateral and returns the
// collateral credited after fees. The credit never exceeds the guaranteed
// minimum output less any fee taken from it.
func buyCollateral(amount decimal.Decimal, params Params) (Swap, decimal.Decimal, error) {
	debtPrec := params.DebtToken.Precision
	collPrec := params.CollateralToken.Precision
	swap := Swap{
		FromToken:       params.DebtToken,
		ToToken:         params.CollateralToken,
		FromTokenAmount: amount,
		CollectFeeFrom:  params.CollectSwapFeeFrom,
	}

	input := amount
	if params.CollectSwapFeeFrom != core.CollectFeeFromTarget {
		swap.CollectFeeFrom = core.CollectFeeFromSource
		swap.TokenFee = fees.CalculateFee(amount, params.Fees.Protocol, debtPrec)
		input = amount.Sub(swap.TokenFee)
	}

	out, err := tokenmath.DivRound(input, params.Prices.Market, collPrec, tokenmath.RoundDown)
	if err != nil {
		return Swap{}, decimal.Zero, err
	}
	swap.ToTokenAmount = out
	swap.MinToTokenAmount = minToAmount(out, params.Slippage, collPrec)

	received := swap.MinToTokenAmount
	if swap.CollectFeeFrom == core.CollectFeeFromTarget {
		swap.TokenFee = fees.EstimateFeeOnQuotedOutput(out, params.Fees.Protocol, params.Fees.EstimateInflator, collPrec)
		received = received.Sub(swap.TokenFee)
	}
	return swap, received, nil
}

// sellCollateral swaps amount collateral into debt tokens and returns the
// debt tokens available after fees.
func sellCollateral(amount decimal.Decimal, params Params) (Swap, decimal.Decimal, error) {
	debtPrec := params.DebtToken.Precision
	collPrec := params.CollateralToken.Precision
	swap := Swap{
		FromToken:       params.CollateralToken,
		ToToken:         params.DebtToken,
		FromTokenAmount: amount,
		CollectFeeFrom:  params.CollectSwapFeeFrom,
	}

	input := amount
	if params.CollectSwapFeeFrom != core.CollectFeeFromTarget {
		swap.CollectFeeFrom = core.CollectFeeFromSource
		swap.TokenFee = fees.CalculateFee(amount, params.Fees.Protocol, collPrec)
		input = amount.Sub(swap.TokenFee)
	}

	swap.ToTokenAmount = tokenmath.Round(input.Mul(params.Prices.Market), debtPrec, tokenmath.RoundDown)
	swap.MinToTokenAmount = minToAmount(swap.ToTokenAmount, params.Slippage, debtPrec)

	proceeds := swap.MinToTokenAmount
	if swap.CollectFeeFrom == core.CollectFeeFromTarget {
		swap.TokenFee = fees.EstimateFeeOnQuotedOutput(swap.ToTokenAmount, params.Fees.Protocol, params.Fees.EstimateInflator, debtPrec)
		proceeds = proceeds.Sub(swap.TokenFee)
	}
	if proceeds.IsNegative() {
		proceeds = decimal.Zero
	}
	return swap, proceeds, nil
}

func minToAmount(out, slippage decimal.Decimal, precision int32) decimal.Decimal {
	return tokenmath.Round(out.Mul(tokenmath.One.Sub(slippage)), precision, tokenmath.RoundDown)
}
