package position

import (
	"testing"

	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ethUsdc(collateral, debt string) Position {
	return New(
		NewBalance(d(collateral), "WETH", 18),
		NewBalance(d(debt), "USDC", 6),
		d("2000"),
		Category{
			MaxLoanToValue:       d("0.8"),
			LiquidationThreshold: d("0.825"),
			DustLimit:            d("100"),
		},
	)
}

func TestTransitionsAreCopies(t *testing.T) {
	p := ethUsdc("10", "5000")

	assert.True(t, p.Deposit(decimal.Zero).Equal(p))
	assert.True(t, p.Borrow(decimal.Zero).Equal(p))

	next := p.Deposit(d("1")).Borrow(d("1000")).Withdraw(d("0.5")).Payback(d("200"))
	assert.Equal(t, "10.5", next.Collateral.Amount.String())
	assert.Equal(t, "5800", next.Debt.Amount.String())

	assert.Equal(t, "10", p.Collateral.Amount.String())
	assert.Equal(t, "5000", p.Debt.Amount.String())
}

func TestOverdrawIsNotRejected(t *testing.T) {
	p := ethUsdc("1", "100").Withdraw(d("2")).Payback(d("150"))
	assert.True(t, p.Collateral.Amount.IsNegative())
	assert.True(t, p.Debt.Amount.IsNegative())
}

func TestRiskRatio(t *testing.T) {
	p := ethUsdc("10", "10000")
	r, err := p.RiskRatio()
	require.NoError(t, err)
	assert.Equal(t, "0.5", r.LoanToValue().String())

	empty := ethUsdc("0", "0")
	r, err = empty.RiskRatio()
	require.NoError(t, err)
	assert.True(t, r.LoanToValue().IsZero())
	assert.True(t, empty.IsEmpty())
}

func TestDebtAndCollateralLimits(t *testing.T) {
	p := ethUsdc("10", "10000")

	// 10 * 2000 * 0.8 - 10000
	assert.Equal(t, "6000", p.DebtAvailable(p.Collateral.Amount).String())
	assert.Equal(t, "6000", p.MaxDebtToBorrow().String())
	assert.Equal(t, "7600", p.DebtAvailable(d("11")).String())
	assert.True(t, p.DebtAvailable(d("1")).IsZero())

	// 10 - 10000/1600
	assert.Equal(t, "3.75", p.MaxCollateralToWithdraw().String())

	noDebt := ethUsdc("2", "0")
	assert.Equal(t, "2", noDebt.MaxCollateralToWithdraw().String())
}

func TestLiquidationMetrics(t *testing.T) {
	p := ethUsdc("10", "8250")

	// 8250 / (10 * 0.825)
	assert.Equal(t, "1000", p.LiquidationPrice().String())
	assert.Equal(t, "-0.5", p.RelativeCollateralPriceMovementUntilLiquidation().String())

	hf, ok := p.HealthFactor()
	require.True(t, ok)
	assert.Equal(t, "2", hf.String())

	_, ok = ethUsdc("1", "0").HealthFactor()
	assert.False(t, ok)
	assert.True(t, ethUsdc("0", "0").LiquidationPrice().IsZero())
}

func TestMinConfigurableRiskRatio(t *testing.T) {
	empty := ethUsdc("1", "0")

	// borrow 100 of dust, buy 0.05 WETH at 2000: 100 / (1.05 * 2000)
	r, err := empty.MinConfigurableRiskRatio(d("2000"))
	require.NoError(t, err)
	assert.Equal(t, "0.047619047619047619", r.LoanToValue().RoundDown(18).String())

	aboveDust := ethUsdc("1", "500")
	r, err = aboveDust.MinConfigurableRiskRatio(d("2000"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", r.LoanToValue().String())
}

func TestBalanceBaseUnits(t *testing.T) {
	b := NewBalance(d("1.2345678"), "USDC", 6)
	assert.Equal(t, "1.234567", b.NormalisedAmount().String())

	down, err := b.BaseUnits(tokenmath.RoundDown)
	require.NoError(t, err)
	assert.Equal(t, "1234567", down.Dec())

	up, err := b.BaseUnits(tokenmath.RoundUp)
	require.NoError(t, err)
	assert.Equal(t, "1234568", up.Dec())
}

func TestMaxRiskRatio(t *testing.T) {
	r, err := ethUsdc("1", "0").MaxRiskRatio()
	require.NoError(t, err)
	m, err := r.Multiple()
	require.NoError(t, err)
	assert.Equal(t, "5", m.Round(18).String())
}
