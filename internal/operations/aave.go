package operations

import (
	"leverage_planner/internal/core"

	"github.com/holiman/uint256"
)

func supportsEMode(p core.Protocol) bool {
	return p == core.ProtocolAaveV3 || p == core.ProtocolSpark
}

// flashloanIsDebt reports a flashloan taken in the debt token, which lets
// the sequence skip parking the loan in the pool.
func flashloanIsDebt(plan Plan) bool {
	return plan.Flashloan == nil || plan.Flashloan.Token.SameAs(plan.DebtToken)
}

func aaveSequence(plan Plan, u *units) (sequence, error) {
	switch plan.Action {
	case ActionOpen, ActionAdjustRiskUp:
		return aaveIncrease(plan, u)
	case ActionAdjustRiskDown:
		return aaveDecrease(plan, u)
	case ActionClose:
		return aaveClose(plan, u)
	case ActionDepositBorrow:
		return aaveDepositBorrow(plan, u), nil
	case ActionPaybackWithdraw:
		return aavePaybackWithdraw(plan, u), nil
	}
	return sequence{}, unsupported(plan)
}

func approve(plan Plan, token core.Token, amount *uint256.Int, sum bool) step {
	return step{OpSetApproval, SetApprovalArgs{
		Asset:      token.Address,
		Spender:    plan.Addresses.Spender,
		Amount:     amount,
		SumAmounts: sum,
	}}
}

func deposit(plan Plan, token core.Token, amount *uint256.Int, sum bool) step {
	return step{OpDeposit, DepositArgs{
		Protocol:   plan.Protocol,
		Asset:      token.Address,
		Amount:     amount,
		SumAmounts: sum,
	}}
}

// parkFlashloan deposits a non-debt flashloan as collateral so the debt
// can be borrowed or the collateral withdrawn against it.
func parkFlashloan(plan Plan, u *units) []step {
	if flashloanIsDebt(plan) {
		return nil
	}
	amount := u.up(plan.Flashloan.Amount, plan.Flashloan.Token)
	return []step{
		approve(plan, plan.Flashloan.Token, amount, false),
		deposit(plan, plan.Flashloan.Token, amount, false),
	}
}

func unparkFlashloan(plan Plan, u *units) []step {
	if flashloanIsDebt(plan) {
		return nil
	}
	return []step{{OpWithdraw, WithdrawArgs{
		Protocol: plan.Protocol,
		Asset:    plan.Flashloan.Token.Address,
		Amount:   u.up(plan.Flashloan.Amount, plan.Flashloan.Token),
		To:       plan.Addresses.OperationExecutor,
	}}}
}

func aaveIncrease(plan Plan, u *units) (sequence, error) {
	swap, err := swapStep(plan, u)
	if err != nil {
		return sequence{}, err
	}
	var seq sequence
	seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
	seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)

	direct := flashloanIsDebt(plan)
	borrowTo := plan.Addresses.Proxy
	if direct {
		borrowTo = plan.Addresses.OperationExecutor
	}
	borrow := step{OpBorrow, BorrowArgs{
		Protocol: plan.Protocol,
		Asset:    plan.DebtToken.Address,
		Amount:   u.up(plan.Borrow, plan.DebtToken),
		To:       borrowTo,
	}}
	// the swap output is added on chain to the user's collateral top-up
	collateral := u.down(plan.DepositCollateral, plan.CollateralToken)

	seq.inner = append(seq.inner, parkFlashloan(plan, u)...)
	if !direct {
		seq.inner = append(seq.inner, borrow)
	}
	seq.inner = append(seq.inner,
		swap,
		approve(plan, plan.CollateralToken, collateral, true),
		deposit(plan, plan.CollateralToken, collateral, true),
	)
	if supportsEMode(plan.Protocol) && plan.EModeCategory > 0 {
		seq.inner = append(seq.inner, step{OpSetEMode, SetEModeArgs{CategoryID: plan.EModeCategory}})
	}
	if direct {
		seq.inner = append(seq.inner, borrow)
	}
	seq.inner = append(seq.inner, unparkFlashloan(plan, u)...)
	seq.inner = append(seq.inner, returnFunds(plan.DebtToken))
	if plan.Action == ActionOpen {
		seq.inner = append(seq.inner, positionCreated(plan))
	}
	return seq, nil
}

func aaveDecrease(plan Plan, u *units) (sequence, error) {
	swap, err := swapStep(plan, u)
	if err != nil {
		return sequence{}, err
	}
	var seq sequence
	seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
	seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)

	payback := u.down(plan.Payback, plan.DebtToken)
	paybackSteps := []step{
		approve(plan, plan.DebtToken, payback, false),
		{OpPayback, PaybackArgs{
			Protocol: plan.Protocol,
			Asset:    plan.DebtToken.Address,
			Amount:   payback,
		}},
	}
	withdraw := step{OpWithdraw, WithdrawArgs{
		Protocol: plan.Protocol,
		Asset:    plan.CollateralToken.Address,
		Amount:   u.down(plan.Withdraw, plan.CollateralToken),
		To:       plan.Addresses.Proxy,
	}}

	direct := flashloanIsDebt(plan)
	seq.inner = append(seq.inner, parkFlashloan(plan, u)...)
	if plan.DepositCollateral.IsPositive() {
		topUp := u.down(plan.DepositCollateral, plan.CollateralToken)
		seq.inner = append(seq.inner,
			approve(plan, plan.CollateralToken, topUp, false),
			deposit(plan, plan.CollateralToken, topUp, false),
		)
	}
	if direct {
		seq.inner = append(seq.inner, paybackSteps...)
		seq.inner = append(seq.inner, withdraw, swap)
	} else {
		seq.inner = append(seq.inner, withdraw, swap)
		seq.inner = append(seq.inner, paybackSteps...)
	}
	seq.inner = append(seq.inner, unparkFlashloan(plan, u)...)
	seq.inner = append(seq.inner, returnFunds(plan.DebtToken))
	return seq, nil
}

func aaveClose(plan Plan, u *units) (sequence, error) {
	var seq sequence
	payback := u.up(plan.Payback, plan.DebtToken)
	withdrawAll := step{OpWithdraw, WithdrawArgs{
		Protocol:    plan.Protocol,
		Asset:       plan.CollateralToken.Address,
		Amount:      u.down(plan.Withdraw, plan.CollateralToken),
		To:          plan.Addresses.Proxy,
		WithdrawAll: true,
	}}
	paybackAll := step{OpPayback, PaybackArgs{
		Protocol:   plan.Protocol,
		Asset:      plan.DebtToken.Address,
		Amount:     payback,
		PaybackAll: true,
	}}

	if flashloanIsDebt(plan) {
		seq.inner = append(seq.inner,
			approve(plan, plan.DebtToken, payback, false),
			paybackAll,
			withdrawAll,
		)
		seq.inner = append(seq.inner, closeSwap(plan, u)...)
	} else {
		seq.inner = append(seq.inner, parkFlashloan(plan, u)...)
		seq.inner = append(seq.inner, withdrawAll)
		seq.inner = append(seq.inner, closeSwap(plan, u)...)
		seq.inner = append(seq.inner,
			approve(plan, plan.DebtToken, payback, false),
			paybackAll,
		)
		seq.inner = append(seq.inner, unparkFlashloan(plan, u)...)
	}
	seq.post = append(seq.post, closeReturns(plan)...)
	return seq, nil
}

// closeReturns hands every leftover back to the user, unwrapped when it is
// ETH.
func closeReturns(plan Plan) []step {
	var steps []step
	for _, token := range []core.Token{plan.DebtToken, plan.CollateralToken} {
		if token.IsEth() {
			steps = append(steps, step{OpUnwrapEth, UnwrapEthArgs{UnwrapAll: true}})
		}
		steps = append(steps, returnFunds(token))
	}
	return steps
}

func aaveDepositBorrow(plan Plan, u *units) sequence {
	var seq sequence
	if plan.DepositCollateral.IsPositive() {
		amount := u.down(plan.DepositCollateral, plan.CollateralToken)
		seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
		seq.pre = append(seq.pre,
			approve(plan, plan.CollateralToken, amount, false),
			deposit(plan, plan.CollateralToken, amount, false),
		)
	}
	if plan.Borrow.IsPositive() {
		amount := u.down(plan.Borrow, plan.DebtToken)
		seq.pre = append(seq.pre, step{OpBorrow, BorrowArgs{
			Protocol: plan.Protocol,
			Asset:    plan.DebtToken.Address,
			Amount:   amount,
			To:       plan.Addresses.Proxy,
		}})
		if plan.DebtToken.IsEth() {
			seq.pre = append(seq.pre, step{OpUnwrapEth, UnwrapEthArgs{Amount: amount}})
		}
		seq.pre = append(seq.pre, returnFunds(plan.DebtToken))
	}
	return seq
}

func aavePaybackWithdraw(plan Plan, u *units) sequence {
	var seq sequence
	if plan.Payback.IsPositive() || plan.PaybackAll {
		amount := u.up(plan.Payback, plan.DebtToken)
		seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
		seq.pre = append(seq.pre,
			approve(plan, plan.DebtToken, amount, false),
			step{OpPayback, PaybackArgs{
				Protocol:   plan.Protocol,
				Asset:      plan.DebtToken.Address,
				Amount:     amount,
				PaybackAll: plan.PaybackAll,
			}},
		)
	}
	if plan.Withdraw.IsPositive() || plan.WithdrawAll {
		amount := u.down(plan.Withdraw, plan.CollateralToken)
		seq.pre = append(seq.pre, step{OpWithdraw, WithdrawArgs{
			Protocol:    plan.Protocol,
			Asset:       plan.CollateralToken.Address,
			Amount:      amount,
			To:          plan.Addresses.Proxy,
			WithdrawAll: plan.WithdrawAll,
		}})
		if plan.CollateralToken.IsEth() {
			seq.pre = append(seq.pre, step{OpUnwrapEth, UnwrapEthArgs{Amount: amount, UnwrapAll: plan.WithdrawAll}})
		}
		seq.pre = append(seq.pre, returnFunds(plan.CollateralToken))
	}
	return seq
}
