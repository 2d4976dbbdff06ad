package simulation

import (
	"errors"
	"testing"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/domain/riskratio"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth   = core.Token{Symbol: "WETH", Precision: 18}
	usdc   = core.Token{Symbol: "USDC", Precision: 6}
	eth    = core.Token{Symbol: "ETH", Precision: 18}
	wsteth = core.Token{Symbol: "WSTETH", Precision: 18}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func category() position.Category {
	return position.Category{
		MaxLoanToValue:       d("0.8"),
		LiquidationThreshold: d("0.825"),
		DustLimit:            d("0"),
	}
}

func wethUsdc(collateral, debt string) position.Position {
	return position.New(
		position.NewBalance(d(collateral), weth.Symbol, weth.Precision),
		position.NewBalance(d(debt), usdc.Symbol, usdc.Precision),
		d("2000"),
		category(),
	)
}

func flatParams(market, oracle string) Params {
	return Params{
		Prices:             Prices{Market: d(market), Oracle: d(oracle)},
		CollectSwapFeeFrom: core.CollectFeeFromSource,
		CollateralToken:    weth,
		DebtToken:          usdc,
	}
}

func multiple(t *testing.T, m string) riskratio.RiskRatio {
	t.Helper()
	r, err := riskratio.FromMultiple(d(m))
	require.NoError(t, err)
	return r
}

func TestAdjust_IncreaseExact(t *testing.T) {
	params := flatParams("2000", "2000")
	params.DepositedByUser.Collateral = d("1")

	tr, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, "2"), params)
	require.NoError(t, err)

	assert.True(t, tr.IsIncreasingRisk)
	assert.Equal(t, "2000", tr.Delta.FlashloanAmount.String())
	assert.Equal(t, "2000", tr.Delta.Debt.String())
	assert.Equal(t, "2", tr.Delta.Collateral.String())
	assert.Equal(t, "2000", tr.Swap.FromTokenAmount.String())
	assert.Equal(t, "1", tr.Swap.MinToTokenAmount.String())
	assert.Equal(t, "USDC", tr.Swap.FromToken.Symbol)
	assert.Equal(t, "WETH", tr.Swap.ToToken.Symbol)
	assert.Equal(t, "0.5", tr.Position.LoanToValue().String())
}

func TestAdjust_DecreaseExact(t *testing.T) {
	params := flatParams("2000", "2000")
	target, err := riskratio.FromLTV(d("0.25"))
	require.NoError(t, err)

	tr, err := AdjustToTargetRiskRatio(wethUsdc("2", "2000"), target, params)
	require.NoError(t, err)

	assert.False(t, tr.IsIncreasingRisk)
	assert.Equal(t, "0.666666666666666667", tr.Swap.FromTokenAmount.String())
	assert.Equal(t, "1333.333333", tr.Swap.MinToTokenAmount.String())
	assert.Equal(t, "-1333.333333", tr.Delta.Debt.String())
	assert.Equal(t, "-0.666666666666666667", tr.Delta.Collateral.String())
	assert.Equal(t, "1.333333333333333333", tr.Position.Collateral.Amount.String())
	assert.Equal(t, "666.666667", tr.Position.Debt.Amount.String())
	assert.True(t, tokenmath.WithinTolerance(tr.Position.LoanToValue(), d("0.25"), d("0.000001")))
}

func TestAdjust_OpenWithDebtDepositAndSlippage(t *testing.T) {
	// empty position, 1 ETH deposited, 1:1 oracle, 10% slippage, target 2x
	params := Params{
		Prices:             Prices{Market: d("1"), Oracle: d("1")},
		Slippage:           d("0.1"),
		DepositedByUser:    Deposits{Debt: d("1")},
		CollectSwapFeeFrom: core.CollectFeeFromSource,
		CollateralToken:    wsteth,
		DebtToken:          eth,
	}
	empty := position.New(
		position.NewBalance(decimal.Zero, wsteth.Symbol, wsteth.Precision),
		position.NewBalance(decimal.Zero, eth.Symbol, eth.Precision),
		d("1"), category(),
	)

	tr, err := AdjustToTargetRiskRatio(empty, multiple(t, "2"), params)
	require.NoError(t, err)

	deposit := d("1")
	// debt approaches the deposit and collateral approaches deposit x 2 as
	// slippage goes to zero; both stay within twice the slippage
	assert.True(t, tr.Delta.Debt.LessThanOrEqual(deposit))
	assert.True(t, tr.Delta.Debt.GreaterThanOrEqual(d("0.8")))
	assert.True(t, tr.Delta.Collateral.LessThanOrEqual(d("2")))
	assert.True(t, tr.Delta.Collateral.GreaterThanOrEqual(d("1.6")))
	assert.Equal(t, tr.Swap.FromTokenAmount.String(), tr.Delta.FlashloanAmount.Add(deposit).String())
	assert.True(t, tokenmath.WithinTolerance(tr.Position.LoanToValue(), d("0.5"), d("0.000000000000001")))
}

func TestAdjust_TwoXDownToOnePointFive(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Slippage = d("0.01")
	params.Fees.Protocol = d("0.002")

	start := wethUsdc("2", "2000")
	tr, err := AdjustToTargetRiskRatio(start, multiple(t, "1.5"), params)
	require.NoError(t, err)

	assert.False(t, tr.IsIncreasingRisk)
	assert.True(t, tr.Delta.Collateral.IsNegative())
	assert.True(t, tr.Position.Collateral.Amount.LessThan(start.Collateral.Amount))
	assert.True(t, tr.Position.Debt.Amount.LessThan(start.Debt.Amount))
	assert.True(t, tokenmath.WithinTolerance(tr.Position.LoanToValue(), d("0.333333333333"), d("0.000001")))
	assert.Equal(t, core.CollectFeeFromSource, tr.Swap.CollectFeeFrom)
	assert.True(t, tr.Swap.TokenFee.IsPositive())
}

func TestAdjust_FlashloanMonotoneInMultiple(t *testing.T) {
	params := flatParams("2000", "1999")
	params.Slippage = d("0.005")
	params.Fees = Fees{FlashLoan: d("0.0005"), Protocol: d("0.002")}
	params.DepositedByUser.Collateral = d("10")

	prev := decimal.Zero
	for _, m := range []string{"1.1", "1.5", "2", "2.5", "3", "4"} {
		tr, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, m), params)
		require.NoError(t, err, m)
		assert.True(t, tr.Delta.FlashloanAmount.GreaterThan(prev), "multiple %s", m)
		prev = tr.Delta.FlashloanAmount
	}
}

func TestAdjust_TargetFeeCollection(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Fees.Protocol = d("0.002")
	params.CollectSwapFeeFrom = core.CollectFeeFromTarget
	params.DepositedByUser.Collateral = d("1")

	tr, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, "2"), params)
	require.NoError(t, err)

	assert.Equal(t, core.CollectFeeFromTarget, tr.Swap.CollectFeeFrom)
	expectedFee := tokenmath.Round(tr.Swap.ToTokenAmount.Mul(d("0.002")), 18, tokenmath.RoundUp)
	assert.Equal(t, expectedFee.String(), tr.Swap.TokenFee.String())
	assert.Equal(t, d("1").Add(tr.Swap.MinToTokenAmount).Sub(expectedFee).String(), tr.Delta.Collateral.String())
}

func TestAdjust_CreditsNoMoreThanGuaranteedOutput(t *testing.T) {
	tests := []struct {
		name    string
		from    core.CollectFeeFrom
		target  string
		deposit Deposits
	}{
		{"source fee", core.CollectFeeFromSource, "3", Deposits{Collateral: d("10")}},
		{"target fee", core.CollectFeeFromTarget, "3", Deposits{Collateral: d("10")}},
		{"target fee with debt deposit", core.CollectFeeFromTarget, "2.5", Deposits{Collateral: d("1"), Debt: d("1500")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := flatParams("2000", "1995")
			params.Slippage = d("0.01")
			params.Fees = Fees{FlashLoan: d("0.0005"), Protocol: d("0.002"), EstimateInflator: d("0.2")}
			params.CollectSwapFeeFrom = tt.from
			params.DepositedByUser = tt.deposit

			tr, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, tt.target), params)
			require.NoError(t, err)

			s := tr.Swap
			assert.Equal(t, tokenmath.Round(s.ToTokenAmount.Mul(d("0.99")), 18, tokenmath.RoundDown).String(),
				s.MinToTokenAmount.String())

			guaranteed := s.MinToTokenAmount
			if s.CollectFeeFrom == core.CollectFeeFromTarget {
				guaranteed = guaranteed.Sub(s.TokenFee)
			}
			fromSwap := tr.Delta.Collateral.Sub(tt.deposit.Collateral)
			assert.True(t, fromSwap.LessThanOrEqual(guaranteed), "credited %s, guaranteed %s", fromSwap, guaranteed)

			ltv, err := riskratio.FromMultiple(d(tt.target))
			require.NoError(t, err)
			assert.True(t, tokenmath.WithinTolerance(tr.Position.LoanToValue(), ltv.LoanToValue(), d("0.000000001")),
				"ltv %s", tr.Position.LoanToValue())
		})
	}
}

func TestAdjust_DecreaseTargetFeeRepaysFromMinimum(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Slippage = d("0.01")
	params.Fees = Fees{Protocol: d("0.002"), EstimateInflator: d("0.2")}
	params.CollectSwapFeeFrom = core.CollectFeeFromTarget

	tr, err := AdjustToTargetRiskRatio(wethUsdc("2", "2000"), multiple(t, "1.5"), params)
	require.NoError(t, err)

	s := tr.Swap
	assert.Equal(t, tokenmath.Round(s.ToTokenAmount.Mul(d("0.99")), 6, tokenmath.RoundDown).String(), s.MinToTokenAmount.String())
	assert.True(t, tr.Delta.Debt.Neg().LessThanOrEqual(s.MinToTokenAmount.Sub(s.TokenFee)))
	assert.True(t, tokenmath.WithinTolerance(tr.Position.LoanToValue(), d("0.333333333333"), d("0.000001")))
}

func TestAdjust_OutputFeeConsumingOutput(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Slippage = d("0.5")
	params.Fees = Fees{Protocol: d("0.5"), EstimateInflator: d("0.2")}
	params.CollectSwapFeeFrom = core.CollectFeeFromTarget
	params.DepositedByUser.Collateral = d("1")

	_, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, "2"), params)
	assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
}

func TestAdjust_DomainErrors(t *testing.T) {
	t.Run("no leverage", func(t *testing.T) {
		_, err := AdjustToTargetRiskRatio(wethUsdc("1", "0"), multiple(t, "1"), flatParams("2000", "2000"))
		assert.True(t, errors.Is(err, apperrors.ErrInvalidRiskRatio))
	})

	t.Run("zero market price", func(t *testing.T) {
		_, err := AdjustToTargetRiskRatio(wethUsdc("1", "0"), multiple(t, "2"), flatParams("0", "2000"))
		assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
	})

	t.Run("zero oracle price", func(t *testing.T) {
		_, err := AdjustToTargetRiskRatio(wethUsdc("1", "0"), multiple(t, "2"), flatParams("2000", "0"))
		assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
	})

	t.Run("increase denominator not positive", func(t *testing.T) {
		_, err := AdjustToTargetRiskRatio(wethUsdc("1", "0"), multiple(t, "5"), flatParams("1000", "2000"))
		assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
	})

	t.Run("decrease denominator not positive", func(t *testing.T) {
		_, err := AdjustToTargetRiskRatio(wethUsdc("2", "2000"), multiple(t, "1.5"), flatParams("500", "2000"))
		assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
	})

	t.Run("slippage out of range", func(t *testing.T) {
		params := flatParams("2000", "2000")
		params.Slippage = d("1")
		_, err := AdjustToTargetRiskRatio(wethUsdc("1", "0"), multiple(t, "2"), params)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	})
}

func TestClose_ToCollateral(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Slippage = d("0.01")
	params.Fees = Fees{FlashLoan: d("0.0009"), Protocol: d("0.002")}

	pos := wethUsdc("2", "2000")
	tr, err := Close(pos, params, true)
	require.NoError(t, err)

	require.NotNil(t, tr.Close)
	assert.True(t, tr.Position.IsEmpty())
	assert.Equal(t, "2000", tr.Delta.FlashloanAmount.String())
	assert.Equal(t, "2001.8", tr.Close.FlashloanRepayment.String())
	assert.True(t, tr.Close.DebtTokenToUser.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, tr.Close.DebtTokenToUser.LessThan(d("0.01")))
	assert.Equal(t, pos.Collateral.Amount.String(), tr.Close.CollateralToUser.Add(tr.Swap.FromTokenAmount).String())
}

func TestClose_ToDebt(t *testing.T) {
	params := flatParams("2000", "2000")
	pos := wethUsdc("2", "2000")

	tr, err := Close(pos, params, false)
	require.NoError(t, err)

	assert.Equal(t, "2", tr.Swap.FromTokenAmount.String())
	assert.True(t, tr.Close.CollateralToUser.IsZero())
	assert.Equal(t, "2000", tr.Close.DebtTokenToUser.String())
	assert.Equal(t, "-2", tr.Delta.Collateral.String())
	assert.Equal(t, "-2000", tr.Delta.Debt.String())
}

func TestClose_Errors(t *testing.T) {
	_, err := Close(wethUsdc("0", "0"), flatParams("2000", "2000"), true)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	_, err = Close(wethUsdc("1", "2500"), flatParams("2000", "2000"), true)
	assert.True(t, errors.Is(err, apperrors.ErrDegenerateMath))
}

func TestOpenThenCloseRoundTrip(t *testing.T) {
	params := flatParams("2000", "2000")
	params.Slippage = d("0.005")
	params.Fees = Fees{FlashLoan: d("0.0005"), Protocol: d("0.002")}
	params.DepositedByUser.Collateral = d("3")

	tolerance := d("2")
	for _, m := range []string{"1.25", "2", "3.5"} {
		opened, err := AdjustToTargetRiskRatio(wethUsdc("0", "0"), multiple(t, m), params)
		require.NoError(t, err, m)

		closeParams := params
		closeParams.DepositedByUser = Deposits{}
		closed, err := Close(opened.Position, closeParams, true)
		require.NoError(t, err, m)

		collUnits, err := tokenmath.ToBaseUnits(closed.Position.Collateral.Amount.Abs(), weth.Precision, tokenmath.RoundUp)
		require.NoError(t, err)
		debtUnits, err := tokenmath.ToBaseUnits(closed.Position.Debt.Amount.Abs(), usdc.Precision, tokenmath.RoundUp)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromBigInt(collUnits.ToBig(), 0).LessThanOrEqual(tolerance), m)
		assert.True(t, decimal.NewFromBigInt(debtUnits.ToBig(), 0).LessThanOrEqual(tolerance), m)

		assert.True(t, opened.Position.Collateral.Amount.Add(closed.Delta.Collateral).IsZero(), m)
		assert.True(t, opened.Position.Debt.Amount.Add(closed.Delta.Debt).IsZero(), m)
	}
}
