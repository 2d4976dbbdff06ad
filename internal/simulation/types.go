// Package simulation solves for the swap, borrow and flashloan amounts that
// move a position to a target risk ratio, and for the amounts that close it.
package simulation

import (
	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"

	"github.com/shopspring/decimal"
)

// Fees are fractional rates. EstimateInflator pads a fee taken from the
// swap output, which is charged on the quoted rather than the minimum amount.
type Fees struct {
	FlashLoan        decimal.Decimal `json:"flashLoan"`
	Protocol         decimal.Decimal `json:"protocol"`
	EstimateInflator decimal.Decimal `json:"estimateInflator"`
}

// Prices are collateral priced in debt tokens, except OracleFLtoDebtToken
// which prices the flashloan token in debt tokens.
type Prices struct {
	Market              decimal.Decimal `json:"market"`
	Oracle              decimal.Decimal `json:"oracle"`
	OracleFLtoDebtToken decimal.Decimal `json:"oracleFlToDebtToken"`
}

// FlashloanParams describes the token a flashloan is taken in
type FlashloanParams struct {
	Token          core.Token      `json:"token"`
	MaxLoanToValue decimal.Decimal `json:"maxLoanToValue"`
}

// Deposits are user top-ups that enter the position with the transition
type Deposits struct {
	Debt       decimal.Decimal `json:"debt"`
	Collateral decimal.Decimal `json:"collateral"`
}

// Params is everything the engine needs besides the position itself
type Params struct {
	Fees               Fees
	Prices             Prices
	Slippage           decimal.Decimal
	Flashloan          FlashloanParams
	DepositedByUser    Deposits
	CollectSwapFeeFrom core.CollectFeeFrom
	CollateralToken    core.Token
	DebtToken          core.Token
}

// Delta is the signed change applied to the position. FlashloanAmount is
// denominated in debt tokens.
type Delta struct {
	Collateral      decimal.Decimal `json:"collateral"`
	Debt            decimal.Decimal `json:"debt"`
	FlashloanAmount decimal.Decimal `json:"flashloanAmount"`
}

// Swap is the simulated exchange leg
type Swap struct {
	FromToken        core.Token          `json:"fromToken"`
	ToToken          core.Token          `json:"toToken"`
	FromTokenAmount  decimal.Decimal     `json:"fromTokenAmount"`
	ToTokenAmount    decimal.Decimal     `json:"toTokenAmount"`
	MinToTokenAmount decimal.Decimal     `json:"minToTokenAmount"`
	TokenFee         decimal.Decimal     `json:"tokenFee"`
	CollectFeeFrom   core.CollectFeeFrom `json:"collectFeeFrom"`
	ExchangeCalldata []byte              `json:"exchangeCalldata,omitempty"`
}

// Flashloan is the resolved flashloan, filled in by the caller once the
// venue is known.
type Flashloan struct {
	Provider string          `json:"provider"`
	Token    core.Token      `json:"token"`
	Amount   decimal.Decimal `json:"amount"`
}

// CloseSummary reports what a close hands back to the user
type CloseSummary struct {
	ToCollateral       bool            `json:"toCollateral"`
	CollateralToUser   decimal.Decimal `json:"collateralToUser"`
	DebtTokenToUser    decimal.Decimal `json:"debtTokenToUser"`
	FlashloanRepayment decimal.Decimal `json:"flashloanRepayment"`
}

// Transition is the simulated outcome of one strategy call. Position is the
// projected post-transition state.
type Transition struct {
	Delta            Delta             `json:"delta"`
	Swap             Swap              `json:"swap"`
	Flashloan        Flashloan         `json:"flashloan"`
	Position         position.Position `json:"position"`
	IsIncreasingRisk bool              `json:"isIncreasingRisk"`
	Close            *CloseSummary     `json:"close,omitempty"`
}
