package strategy_test

import (
	"context"
	"errors"
	"testing"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/fees"
	"leverage_planner/internal/flashloan"
	"leverage_planner/internal/mock"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/strategy"
	"leverage_planner/internal/validation"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = core.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18}
	dai  = core.Token{Symbol: "DAI", Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Precision: 18}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	planner   *strategy.Planner
	factory   *mock.RecordingCallFactory
	quoter    *mock.FixedQuoter
	positions *mock.StaticPositionReader
	data      *mock.StaticProtocolDataReader
}

func protocolData() core.ProtocolData {
	return core.ProtocolData{
		CollateralPriceUSD:           d("2000"),
		DebtPriceUSD:                 d("1"),
		FlashloanTokenPriceUSD:       d("1"),
		MaxLoanToValue:               d("0.8"),
		LiquidationThreshold:         d("0.85"),
		DustLimit:                    d("0"),
		FlashloanTokenMaxLoanToValue: d("0.8"),
		AvailableLiquidity:           d("1000000"),
		HasLiquidityData:             true,
		Ilk:                          "ETH-A",
		LowestUtilizedPrice:          d("1500"),
	}
}

type setup struct {
	acceptedFeeTokens []string
	wrapQuoter        func(*mock.FixedQuoter) core.ISwapQuoter
}

type option func(*setup)

func withAcceptedFeeTokens(tokens ...string) option {
	return func(s *setup) { s.acceptedFeeTokens = tokens }
}

func withQuoter(wrap func(*mock.FixedQuoter) core.ISwapQuoter) option {
	return func(s *setup) { s.wrapQuoter = wrap }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	cfg := setup{
		acceptedFeeTokens: []string{"DAI", "USDC", "ETH"},
		wrapQuoter:        func(q *mock.FixedQuoter) core.ISwapQuoter { return q },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	feeTable, err := fees.NewTable(fees.TableSpec{
		Version:           "test",
		DefaultFeeBps:     20,
		ReducedFeeBps:     7,
		CorrelatedPairs:   [][2]string{{"WSTETH", "ETH"}},
		AcceptedFeeTokens: cfg.acceptedFeeTokens,
	})
	require.NoError(t, err)
	flTable, err := flashloan.NewTable(flashloan.TableSpec{
		Version: "test",
		Entries: []flashloan.EntrySpec{
			{Network: core.NetworkMainnet, Protocol: flashloan.AnyProtocol, Provider: flashloan.ProviderBalancer, UseDebtToken: true},
			{Network: core.NetworkMainnet, Protocol: core.ProtocolMaker, Provider: flashloan.ProviderDssFlash, Token: dai},
		},
		Overrides: []flashloan.OverrideSpec{
			{Protocol: core.ProtocolMaker, Provider: flashloan.ProviderDssFlash},
			{Protocol: core.ProtocolAjna, Provider: flashloan.ProviderBalancer},
		},
	})
	require.NoError(t, err)

	f := &fixture{
		factory:   mock.NewRecordingCallFactory(),
		quoter:    mock.NewFixedQuoter(),
		positions: &mock.StaticPositionReader{},
		data:      &mock.StaticProtocolDataReader{Data: protocolData()},
	}
	f.quoter.SetRate(dai, weth, d("0.0005"))

	f.planner, err = strategy.NewPlanner(strategy.Dependencies{
		Quoter:       cfg.wrapQuoter(f.quoter),
		Positions:    f.positions,
		ProtocolData: f.data,
		CallFactory:  f.factory,
		Fees:         fees.NewResolver(feeTable, decimal.Zero),
		Flashloans:   flashloan.NewResolver(flTable),
		Logger:       logging.NewNop(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) holding(collateral, debt string) {
	f.positions.Position = position.New(
		position.NewBalance(d(collateral), weth.Symbol, weth.Precision),
		position.NewBalance(d(debt), dai.Symbol, dai.Precision),
		d("2000"),
		position.Category{},
	)
}

func args(protocol core.Protocol) strategy.Args {
	return strategy.Args{
		Protocol:        protocol,
		Network:         core.NetworkMainnet,
		CollateralToken: weth,
		DebtToken:       dai,
		Slippage:        d("0.01"),
		Addresses: operations.Addresses{
			Proxy:             common.HexToAddress("0x1000000000000000000000000000000000000001"),
			User:              common.HexToAddress("0x2000000000000000000000000000000000000002"),
			Spender:           common.HexToAddress("0x3000000000000000000000000000000000000003"),
			OperationExecutor: common.HexToAddress("0x4000000000000000000000000000000000000004"),
		},
	}
}

func hasKind(findings []validation.Finding, kind validation.Kind) bool {
	for _, f := range findings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

func assertLTV(t *testing.T, want string, pos position.Position) {
	t.Helper()
	diff := pos.LoanToValue().Sub(d(want)).Abs()
	assert.True(t, diff.LessThan(d("0.000001")), "ltv %s, want %s", pos.LoanToValue(), want)
}

func TestOpen_AaveV3(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolAaveV3)
	a.TargetMultiple = d("2")
	a.DepositCollateral = d("1")

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	require.False(t, res.Blocked())

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, operations.ActionOpen, res.Action)
	assert.Equal(t, "OpenAAVEV3Position", res.Transaction.OperationName)
	assert.Contains(t, res.Transaction.Steps, operations.OpTakeFlashloan)
	assert.Contains(t, res.Transaction.Steps, operations.OpPositionCreated)

	sim := res.Simulation
	assert.True(t, sim.IsIncreasingRisk)
	assert.True(t, sim.Delta.Debt.GreaterThan(d("1976")) && sim.Delta.Debt.LessThan(d("1977")), "debt %s", sim.Delta.Debt)
	assertLTV(t, "0.5", sim.Position)
	assert.Equal(t, string(flashloan.ProviderBalancer), sim.Flashloan.Provider)
	assert.True(t, sim.Flashloan.Token.SameAs(dai))
	assert.True(t, sim.Flashloan.Amount.GreaterThanOrEqual(sim.Delta.FlashloanAmount), "flashloan %s", sim.Flashloan.Amount)
	require.NotNil(t, sim.Fee)
	assert.Equal(t, core.CollectFeeFromSource, sim.Fee.CollectFrom)
	assert.True(t, sim.Fee.Rate.Equal(d("0.002")))
	assert.Empty(t, sim.Errors)
	assert.Empty(t, sim.Warnings)
	assert.True(t, sim.LiquidationPrice.IsPositive())

	assert.Equal(t, 2, f.quoter.Requests(), "one price lookup and one quote for the swap")
}

func TestOpen_EarnPositionPaysNoFee(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolAaveV3)
	a.TargetMultiple = d("2")
	a.DepositCollateral = d("1")
	a.PositionType = strategy.PositionTypeEarn

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, res.Simulation.Fee)
	assert.True(t, res.Simulation.Fee.Rate.IsZero())
	assert.True(t, res.Simulation.Swap.TokenFee.IsZero())
}

func TestAdjust_PicksDirection(t *testing.T) {
	t.Run("down", func(t *testing.T) {
		f := newFixture(t)
		f.holding("2", "2000")
		a := args(core.ProtocolSpark)
		a.TargetMultiple = d("1.5")

		res, err := f.planner.Adjust(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, operations.ActionAdjustRiskDown, res.Action)
		assert.Equal(t, "AdjustRiskDownSparkPosition", res.Transaction.OperationName)
		assert.False(t, res.Simulation.IsIncreasingRisk)
		assert.True(t, res.Simulation.Position.Collateral.Amount.LessThan(d("2")))
		assertLTV(t, "0.333333", res.Simulation.Position)
		assert.False(t, res.Simulation.Position.Debt.Amount.IsNegative())
		assert.False(t, hasKind(res.Simulation.Warnings, validation.KindCloseToMaxLTV))
		// selling WETH for DAI collects the fee in DAI
		assert.Equal(t, core.CollectFeeFromTarget, res.Simulation.Swap.CollectFeeFrom)
	})

	t.Run("up", func(t *testing.T) {
		f := newFixture(t)
		f.holding("2", "2000")
		a := args(core.ProtocolAaveV2)
		a.TargetMultiple = d("3")

		res, err := f.planner.Adjust(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, operations.ActionAdjustRiskUp, res.Action)
		assert.Equal(t, "AdjustRiskUpAAVEPosition", res.Transaction.OperationName)
		assertLTV(t, "0.666667", res.Simulation.Position)
	})

	t.Run("already there", func(t *testing.T) {
		f := newFixture(t)
		f.holding("2", "2000")
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("2")
		_, err := f.planner.Adjust(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestOpen_ValidationErrorsSuppressTransaction(t *testing.T) {
	f := newFixture(t)
	data := protocolData()
	data.MaxLoanToValue = d("0.75")
	f.data.Data = data

	a := args(core.ProtocolAaveV3)
	a.TargetMultiple = d("5")
	a.DepositCollateral = d("1")

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	require.True(t, res.Blocked())
	assert.Empty(t, res.Transaction.OperationName)
	assert.Empty(t, res.Transaction.Calls)
	assert.Empty(t, f.factory.Calls())

	assert.True(t, hasKind(res.Simulation.Errors, validation.KindTargetLTVExceedsMaxLTV))
	assert.True(t, res.Simulation.Delta.Debt.IsPositive(), "simulation data is kept")
}

func TestOpen_CloseToMaxLTVWarns(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolAaveV3)
	a.TargetMultiple = d("4.5")
	a.DepositCollateral = d("1")

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, res.Blocked())
	require.Len(t, res.Simulation.Warnings, 1)
	assert.Equal(t, validation.KindCloseToMaxLTV, res.Simulation.Warnings[0].Kind)
	assert.NotEmpty(t, res.Transaction.Calls, "warnings never block")
}

func TestClose_ToDebt(t *testing.T) {
	f := newFixture(t)
	f.holding("2", "2000")

	res, err := f.planner.Close(context.Background(), args(core.ProtocolAaveV3))
	require.NoError(t, err)
	assert.Equal(t, "CloseAAVEV3Position", res.Transaction.OperationName)
	assert.True(t, res.Simulation.Position.IsEmpty())
	require.NotNil(t, res.Simulation.Close)
	assert.True(t, res.Simulation.Close.CollateralToUser.IsZero())
	assert.True(t, res.Simulation.Close.DebtTokenToUser.GreaterThan(d("1900")))
	assert.True(t, res.Simulation.Flashloan.Amount.Equal(d("2000")))
	assert.Contains(t, res.Transaction.Steps, operations.OpPayback)
}

func TestClose_ToCollateralKeepsRemainder(t *testing.T) {
	f := newFixture(t)
	f.holding("2", "2000")
	a := args(core.ProtocolAaveV3)
	a.CloseToCollateral = true

	res, err := f.planner.Close(context.Background(), a)
	require.NoError(t, err)
	summary := res.Simulation.Close
	require.NotNil(t, summary)
	assert.True(t, summary.ToCollateral)
	assert.True(t, summary.CollateralToUser.GreaterThan(d("0.9")) && summary.CollateralToUser.LessThan(d("1")), "kept %s", summary.CollateralToUser)
}

func TestOpenThenClose(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolAaveV3)
	a.TargetMultiple = d("3")
	a.DepositCollateral = d("1")

	opened, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)

	f.positions.Position = opened.Simulation.Position
	closed, err := f.planner.Close(context.Background(), args(core.ProtocolAaveV3))
	require.NoError(t, err)
	assert.True(t, closed.Simulation.Position.IsEmpty())
	assert.True(t, closed.Simulation.Close.DebtTokenToUser.IsPositive())
}

func TestDepositBorrow(t *testing.T) {
	f := newFixture(t)
	f.holding("1", "0")
	a := args(core.ProtocolAaveV3)
	a.DepositCollateral = d("1")
	a.Borrow = d("500")

	res, err := f.planner.DepositBorrow(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "AAVEV3DepositBorrow", res.Transaction.OperationName)
	assert.True(t, res.Simulation.Position.Collateral.Amount.Equal(d("2")))
	assert.True(t, res.Simulation.Position.Debt.Amount.Equal(d("500")))
	assert.NotContains(t, res.Transaction.Steps, operations.OpTakeFlashloan)
	assert.Zero(t, f.quoter.Requests())

	t.Run("liquidity", func(t *testing.T) {
		data := protocolData()
		data.AvailableLiquidity = d("100")
		f.data.Data = data
		res, err := f.planner.DepositBorrow(context.Background(), a)
		require.NoError(t, err)
		require.True(t, res.Blocked())
		assert.True(t, hasKind(res.Simulation.Errors, validation.KindNotEnoughLiquidity))
	})

	t.Run("liquidity buffer", func(t *testing.T) {
		data := protocolData()
		data.AvailableLiquidity = d("520")
		f.data.Data = data
		res, err := f.planner.DepositBorrow(context.Background(), a)
		require.NoError(t, err)
		require.False(t, res.Blocked())

		data.LiquidityBuffer = d("0.1")
		f.data.Data = data
		res, err = f.planner.DepositBorrow(context.Background(), a)
		require.NoError(t, err)
		require.True(t, res.Blocked())
		assert.True(t, hasKind(res.Simulation.Errors, validation.KindNotEnoughLiquidity))
	})

	t.Run("nothing requested", func(t *testing.T) {
		_, err := f.planner.DepositBorrow(context.Background(), args(core.ProtocolAaveV3))
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestPaybackWithdraw(t *testing.T) {
	f := newFixture(t)
	f.holding("2", "2000")

	a := args(core.ProtocolAaveV3)
	a.Payback = d("1000")
	a.Withdraw = d("0.5")
	res, err := f.planner.PaybackWithdraw(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, res.Blocked())
	assert.True(t, res.Simulation.Position.Debt.Amount.Equal(d("1000")))
	assert.True(t, res.Simulation.Position.Collateral.Amount.Equal(d("1.5")))

	over := args(core.ProtocolAaveV3)
	over.Withdraw = d("1.9")
	res, err = f.planner.PaybackWithdraw(context.Background(), over)
	require.NoError(t, err)
	require.True(t, res.Blocked())
	assert.True(t, hasKind(res.Simulation.Errors, validation.KindOverdraw))

	all := args(core.ProtocolAaveV3)
	all.PaybackAll = true
	all.WithdrawAll = true
	res, err = f.planner.PaybackWithdraw(context.Background(), all)
	require.NoError(t, err)
	assert.False(t, res.Blocked())
	assert.True(t, res.Simulation.Position.IsEmpty())
}

func TestMaker(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolMaker)
	a.TargetMultiple = d("2")
	a.DepositCollateral = d("10")

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "OpenMakerPosition", res.Transaction.OperationName)
	assert.Equal(t, operations.OpMakerOpenVault, res.Transaction.Steps[0])
	assert.Equal(t, string(flashloan.ProviderDssFlash), res.Simulation.Flashloan.Provider)

	t.Run("dust", func(t *testing.T) {
		data := protocolData()
		data.DustLimit = d("50000")
		f.data.Data = data
		res, err := f.planner.Open(context.Background(), a)
		require.NoError(t, err)
		require.True(t, res.Blocked())
		assert.True(t, hasKind(res.Simulation.Errors, validation.KindDustLimit))
	})
}

func TestOpen_OverrideFlashloanExcludesDebtDeposit(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolMaker)
	a.TargetMultiple = d("2")
	a.DepositCollateral = d("10")
	a.DepositDebt = d("1000")

	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)

	sim := res.Simulation
	assert.Equal(t, string(flashloan.ProviderDssFlash), sim.Flashloan.Provider)
	assert.Equal(t, sim.Delta.FlashloanAmount.String(), sim.Flashloan.Amount.String())
	assert.Equal(t, sim.Swap.FromTokenAmount.Sub(a.DepositDebt).String(), sim.Delta.FlashloanAmount.String())
}

func TestAjna(t *testing.T) {
	f := newFixture(t)
	a := args(core.ProtocolAjna)
	a.TargetMultiple = d("2")
	a.DepositCollateral = d("1")

	_, err := f.planner.Open(context.Background(), a)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "ajna needs a pool")

	a.Pool = common.HexToAddress("0x5000000000000000000000000000000000000005")
	res, err := f.planner.Open(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "OpenAjnaPosition", res.Transaction.OperationName)
	assert.Contains(t, res.Transaction.Steps, operations.OpAjnaDepositBorrow)
}

func TestPlanner_Errors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		_, err := strategy.NewPlanner(strategy.Dependencies{})
		assert.ErrorIs(t, err, apperrors.ErrMissingDependency)
	})

	t.Run("unsupported protocol", func(t *testing.T) {
		f := newFixture(t)
		a := args("compound")
		a.TargetMultiple = d("2")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedProtocol)
	})

	t.Run("unsupported network", func(t *testing.T) {
		f := newFixture(t)
		a := args(core.ProtocolAaveV3)
		a.Network = core.NetworkBase
		a.TargetMultiple = d("2")
		a.DepositCollateral = d("1")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedNetwork)
	})

	t.Run("quote failure keeps identity", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("aggregator down")
		f.quoter.SetError(boom)
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("2")
		a.DepositCollateral = d("1")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("reader failure keeps identity", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("rpc down")
		f.positions.Err = boom
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("2")
		_, err := f.planner.Adjust(context.Background(), a)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("zero oracle", func(t *testing.T) {
		f := newFixture(t)
		data := protocolData()
		data.CollateralPriceUSD = decimal.Zero
		f.data.Data = data
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("2")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrDegenerateMath)
	})

	t.Run("multiple below one", func(t *testing.T) {
		f := newFixture(t)
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("0.5")
		a.DepositCollateral = d("1")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRiskRatio)
	})

	t.Run("open without deposit", func(t *testing.T) {
		f := newFixture(t)
		a := args(core.ProtocolAaveV3)
		a.TargetMultiple = d("2")
		_, err := f.planner.Open(context.Background(), a)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		assert.NotErrorIs(t, err, apperrors.ErrQuoteUnavailable)
		assert.Zero(t, f.quoter.Requests())
	})

	t.Run("unknown action", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.planner.Plan(context.Background(), "migrate", args(core.ProtocolAaveV3))
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedAction)
	})
}
