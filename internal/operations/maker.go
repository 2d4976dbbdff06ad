package operations

func makerSequence(plan Plan, u *units) (sequence, error) {
	var seq sequence
	switch plan.Action {
	case ActionOpen, ActionAdjustRiskUp:
		swap, err := swapStep(plan, u)
		if err != nil {
			return sequence{}, err
		}
		if plan.Action == ActionOpen && plan.VaultID == 0 {
			seq.pre = append(seq.pre, step{OpMakerOpenVault, MakerOpenVaultArgs{Ilk: plan.Ilk}})
		}
		seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
		seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
		collateral := u.down(plan.DepositCollateral, plan.CollateralToken)
		seq.inner = append(seq.inner,
			swap,
			approve(plan, plan.CollateralToken, collateral, true),
			step{OpMakerDeposit, MakerDepositArgs{
				VaultID:    plan.VaultID,
				Asset:      plan.CollateralToken.Address,
				Amount:     collateral,
				SumAmounts: true,
			}},
			step{OpMakerGenerate, MakerGenerateArgs{
				VaultID: plan.VaultID,
				Amount:  u.up(plan.Borrow, plan.DebtToken),
				To:      plan.Addresses.OperationExecutor,
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
		seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
		if plan.DepositCollateral.IsPositive() {
			topUp := u.down(plan.DepositCollateral, plan.CollateralToken)
			seq.pre = append(seq.pre,
				approve(plan, plan.CollateralToken, topUp, false),
				step{OpMakerDeposit, MakerDepositArgs{VaultID: plan.VaultID, Asset: plan.CollateralToken.Address, Amount: topUp}},
			)
		}
		seq.inner = append(seq.inner,
			step{OpMakerPayback, MakerPaybackArgs{VaultID: plan.VaultID, Amount: u.down(plan.Payback, plan.DebtToken)}},
			step{OpMakerWithdraw, MakerWithdrawArgs{VaultID: plan.VaultID, Amount: u.down(plan.Withdraw, plan.CollateralToken)}},
			swap,
			returnFunds(plan.DebtToken),
		)

	case ActionClose:
		seq.inner = append(seq.inner,
			step{OpMakerPayback, MakerPaybackArgs{
				VaultID:    plan.VaultID,
				Amount:     u.up(plan.Payback, plan.DebtToken),
				PaybackAll: true,
			}},
			step{OpMakerWithdraw, MakerWithdrawArgs{
				VaultID:     plan.VaultID,
				Amount:      u.down(plan.Withdraw, plan.CollateralToken),
				WithdrawAll: true,
			}},
		)
		seq.inner = append(seq.inner, closeSwap(plan, u)...)
		seq.post = closeReturns(plan)

	case ActionDepositBorrow:
		if plan.DepositCollateral.IsPositive() {
			amount := u.down(plan.DepositCollateral, plan.CollateralToken)
			seq.pre = append(seq.pre, pullDeposit(plan, plan.CollateralToken, plan.DepositCollateral, u)...)
			seq.pre = append(seq.pre,
				approve(plan, plan.CollateralToken, amount, false),
				step{OpMakerDeposit, MakerDepositArgs{VaultID: plan.VaultID, Asset: plan.CollateralToken.Address, Amount: amount}},
			)
		}
		if plan.Borrow.IsPositive() {
			seq.pre = append(seq.pre,
				step{OpMakerGenerate, MakerGenerateArgs{
					VaultID: plan.VaultID,
					Amount:  u.down(plan.Borrow, plan.DebtToken),
					To:      plan.Addresses.Proxy,
				}},
				returnFunds(plan.DebtToken),
			)
		}

	case ActionPaybackWithdraw:
		if plan.Payback.IsPositive() || plan.PaybackAll {
			seq.pre = append(seq.pre, pullDeposit(plan, plan.DebtToken, plan.DepositDebt, u)...)
			seq.pre = append(seq.pre, step{OpMakerPayback, MakerPaybackArgs{
				VaultID:    plan.VaultID,
				Amount:     u.up(plan.Payback, plan.DebtToken),
				PaybackAll: plan.PaybackAll,
			}})
		}
		if plan.Withdraw.IsPositive() || plan.WithdrawAll {
			amount := u.down(plan.Withdraw, plan.CollateralToken)
			seq.pre = append(seq.pre, step{OpMakerWithdraw, MakerWithdrawArgs{
				VaultID:     plan.VaultID,
				Amount:      amount,
				WithdrawAll: plan.WithdrawAll,
			}})
			if plan.CollateralToken.IsEth() {
				seq.pre = append(seq.pre, step{OpUnwrapEth, UnwrapEthArgs{Amount: amount, UnwrapAll: plan.WithdrawAll}})
			}
			seq.pre = append(seq.pre, returnFunds(plan.CollateralToken))
		}

	default:
		return sequence{}, unsupported(plan)
	}
	return seq, nil
}
