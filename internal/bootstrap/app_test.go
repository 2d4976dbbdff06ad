package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leverage_planner/internal/core"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appConfig = `system:
  log_level: ERROR
planner:
  flashloan_fees:
    balancer: "0"
quote:
  provider: static
  static:
    spread: "0.001"
market:
  prices_usd:
    WETH: 2000
    DAI: 1
  pairs:
    - protocol: aave_v3
      network: mainnet
      collateral: WETH
      debt: DAI
      max_ltv: 0.8
      liquidation_threshold: 0.825
      available_liquidity: 1000000
  positions:
    - protocol: aave_v3
      network: mainnet
      proxy: "0x1000000000000000000000000000000000000001"
      collateral: WETH
      debt: DAI
      amounts:
        collateral: 2
        debt: 1000
`

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(writeConfig(t, appConfig, 0o600))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func planArgs() strategy.Args {
	return strategy.Args{
		Protocol:        core.ProtocolAaveV3,
		Network:         core.NetworkMainnet,
		CollateralToken: core.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18},
		DebtToken:       core.Token{Symbol: "DAI", Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Precision: 18},
		Slippage:        decimal.RequireFromString("0.005"),
		Addresses: operations.Addresses{
			Proxy:             common.HexToAddress("0x1000000000000000000000000000000000000001"),
			OperationExecutor: common.HexToAddress("0x4000000000000000000000000000000000000004"),
		},
	}
}

func TestNewApp_WiresPlanner(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, "2024.06", app.Fees.Version())
	assert.Equal(t, "2024.06", app.Flashloans.Version())

	args := planArgs()
	args.TargetMultiple = decimal.RequireFromString("2")
	args.DepositCollateral = decimal.RequireFromString("1")
	res, err := app.Planner.Open(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, "OpenAAVEV3Position", res.Transaction.OperationName)
	require.NotEmpty(t, res.Transaction.Calls)
	assert.IsType(t, operations.CallDescriptor{}, res.Transaction.Calls[0])

	res, err = app.Planner.Close(context.Background(), planArgs())
	require.NoError(t, err)
	assert.True(t, res.Simulation.Position.IsEmpty())
}

func TestNewApp_HealthChecks(t *testing.T) {
	app := newTestApp(t)
	report := app.Health.Check()
	assert.True(t, report.Healthy)
	assert.Contains(t, report.Components, "batch_pool")
	assert.Contains(t, report.Components, "quoter")

	app.pool.Stop()
	assert.False(t, app.Health.IsHealthy())
}

func TestNewApp_Errors(t *testing.T) {
	_, err := NewApp(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := strings.Replace(appConfig, "balancer:", "uniswap:", 1)
	_, err = NewApp(writeConfig(t, bad, 0o600))
	assert.Error(t, err)
}

func TestCheckPreFlight(t *testing.T) {
	withKey := strings.Replace(appConfig, `quote:
  provider: static
`, `quote:
  provider: aggregator
  aggregator:
    base_url: https://api.example.org
    api_key: inline-key
    chain_id: 1
`, 1)
	require.NotEqual(t, appConfig, withKey)
	_, err := LoadConfig(writeConfig(t, withKey, 0o644))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")

	cfg, err := LoadConfig(writeConfig(t, withKey, 0o600))
	require.NoError(t, err)
	assert.Equal(t, "aggregator", cfg.Quote.Provider)

	_, err = LoadConfig(writeConfig(t, appConfig, 0o644))
	assert.NoError(t, err, "no key, no permission check")
}

func TestApp_RunCancelsBackgroundWhenMainReturns(t *testing.T) {
	app := newTestApp(t)

	stopped := make(chan struct{})
	background := RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	})
	main := RunnerFunc(func(ctx context.Context) error { return nil })

	require.NoError(t, app.Run(context.Background(), main, background))
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("background runner was not cancelled")
	}
}

func TestApp_RunReturnsMainError(t *testing.T) {
	app := newTestApp(t)
	boom := errors.New("boom")
	err := app.Run(context.Background(), RunnerFunc(func(ctx context.Context) error { return boom }))
	assert.ErrorIs(t, err, boom)
}
