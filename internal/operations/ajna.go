package operations

import (
	"leverage_planner/internal/core"
	"leverage_planner/pkg/tokenmath"
)

// Ajna prices are WAD fixed point regardless of the pool's tokens
var ajnaPrice = core.Token{Symbol: "price", Precision: 18}

func ajnaSequence(plan Plan, u *units) (sequence, error) {
	var seq sequence
	price := u.convert(plan.Price, ajnaPrice, tokenmath.RoundDown)
	switch plan.Action {
	case ActionOpen, ActionAdjustRiskUp:
		swap, err := swapStep(plan, u)
		if err != nil {
			return sequence{}, err
		}
		seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
		seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
		collateral := u.down(plan.DepositCollateral, plan.CollateralToken)
		seq.inner = append(seq.inner,
			swap,
			approve(plan, plan.CollateralToken, collateral, true),
			step{OpAjnaDepositBorrow, AjnaDepositBorrowArgs{
				Pool:          plan.Pool,
				DepositAmount: collateral,
				BorrowAmount:  u.up(plan.Borrow, plan.DebtToken),
				Price:         price,
				SumAmounts:    true,
			}},
			returnFunds(plan.DebtToken),
		)
		if plan.Action == ActionOpen {
			seq.inner = append(seq.inner, positionCreated(plan))
		}

	case ActionAdjustRiskDown:
		swap, err := swapStep(plan, u)
		if err != nil {
			return sequence{}, err
		}
		seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
		payback := u.down(plan.Payback, plan.DebtToken)
		seq.inner = append(seq.inner,
			approve(plan, plan.DebtToken, payback, false),
			step{OpAjnaRepayWithdraw, AjnaRepayWithdrawArgs{
				Pool:           plan.Pool,
				RepayAmount:    payback,
				WithdrawAmount: u.down(plan.Withdraw, plan.CollateralToken),
				Price:          price,
			}},
			swap,
			returnFunds(plan.DebtToken),
		)

	case ActionClose:
		payback := u.up(plan.Payback, plan.DebtToken)
		seq.inner = append(seq.inner,
			approve(plan, plan.DebtToken, payback, false),
			step{OpAjnaRepayWithdraw, AjnaRepayWithdrawArgs{
				Pool:           plan.Pool,
				RepayAmount:    payback,
				WithdrawAmount: u.down(plan.Withdraw, plan.CollateralToken),
				Price:          price,
				RepayAll:       true,
				WithdrawAll:    true,
			}},
		)
		seq.inner = append(seq.inner, closeSwap(plan, u)...)
		seq.post = closeReturns(plan)

	case ActionDepositBorrow:
		seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
		collateral := u.down(plan.DepositCollateral, plan.CollateralToken)
		borrow := u.down(plan.Borrow, plan.DebtToken)
		if plan.DepositCollateral.IsPositive() {
			seq.pre = append(seq.pre, approve(plan, plan.CollateralToken, collateral, false))
		}
		seq.pre = append(seq.pre, step{OpAjnaDepositBorrow, AjnaDepositBorrowArgs{
			Pool:          plan.Pool,
			DepositAmount: collateral,
			BorrowAmount:  borrow,
			Price:         price,
		}})
		if plan.Borrow.IsPositive() {
			if plan.DebtToken.IsEth() {
				seq.pre = append(seq.pre, step{OpUnwrapEth, UnwrapEthArgs{Amount: borrow}})
			}
			seq.pre = append(seq.pre, returnFunds(plan.DebtToken))
		}

	case ActionPaybackWithdraw:
		seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
		payback := u.up(plan.Payback, plan.DebtToken)
		if plan.Payback.IsPositive() || plan.PaybackAll {
			seq.pre = append(seq.pre, approve(plan, plan.DebtToken, payback, false))
		}
		seq.pre = append(seq.pre, step{OpAjnaRepayWithdraw, AjnaRepayWithdrawArgs{
			Pool:           plan.Pool,
			RepayAmount:    payback,
			WithdrawAmount: u.down(plan.Withdraw, plan.CollateralToken),
			Price:          price,
			RepayAll:       plan.PaybackAll,
			WithdrawAll:    plan.WithdrawAll,
		}})
		seq.post = closeReturns(plan)

	default:
		return sequence{}, unsupported(plan)
	}
	return seq, nil
}
