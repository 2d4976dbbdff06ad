// Package bootstrap wires configuration, logging, telemetry and the planner
// into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leverage_planner/internal/core"
	"leverage_planner/internal/fees"
	"leverage_planner/internal/flashloan"
	"leverage_planner/internal/infrastructure/health"
	"leverage_planner/internal/market"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/quote"
	"leverage_planner/internal/strategy"
	"leverage_planner/pkg/concurrency"
	"leverage_planner/pkg/logging"
	"leverage_planner/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// App represents the application context and holds core dependencies.
type App struct {
	Cfg        *Config
	Logger     core.ILogger
	Planner    *strategy.Planner
	Batch      *strategy.BatchPlanner
	Fees       *fees.Table
	Flashloans *flashloan.Table
	Health     *health.Manager

	telemetry *telemetry.Telemetry
	pool      *concurrency.WorkerPool
	zap       *logging.ZapLogger
}

// NewApp creates a new App instance by bootstrapping all dependencies.
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewAppFromConfig(cfg)
}

// NewAppFromConfig bootstraps from an already validated configuration.
// Telemetry exports go to stderr so stdout carries only command output.
func NewAppFromConfig(cfg *Config) (*App, error) {
	tel, err := telemetry.SetupWithOptions(cfg.Telemetry.ServiceName, telemetry.SetupOptions{
		PrettyPrint:        cfg.Telemetry.PrettyPrint,
		DisableTraceExport: true,
		Writer:             os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("logger: %w", err)
	}

	app := &App{Cfg: cfg, Logger: logger, telemetry: tel, zap: logger}
	if err := app.wire(); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	feeTable, flTable, err := a.Cfg.Tables()
	if err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	a.Fees, a.Flashloans = feeTable, flTable

	settings := strategy.Settings{
		CloseToMaxLTVOffset: a.Cfg.Planner.CloseToMaxLTVOffset,
		LTVSafetyMargin:     a.Cfg.Planner.LTVSafetyMargin,
	}
	if len(a.Cfg.Planner.FlashloanFees) > 0 {
		settings.FlashloanFees = make(map[flashloan.Provider]decimal.Decimal, len(a.Cfg.Planner.FlashloanFees))
		for name, fee := range a.Cfg.Planner.FlashloanFees {
			provider, err := flashloan.ParseProvider(name)
			if err != nil {
				return fmt.Errorf("planner.flashloan_fees: %w", err)
			}
			settings.FlashloanFees[provider] = fee
		}
	}

	quoter := a.newQuoter()
	book := market.NewBook(a.Cfg.Market, a.Logger)
	planner, err := strategy.NewPlanner(strategy.Dependencies{
		Quoter:       quoter,
		Positions:    book,
		ProtocolData: book,
		CallFactory:  operations.DescriptorFactory{},
		Fees:         fees.NewResolver(feeTable, a.Cfg.Planner.FeeEstimateInflator),
		Flashloans:   flashloan.NewResolver(flTable),
		Logger:       a.Logger,
		Settings:     settings,
	})
	if err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	a.Planner = planner

	a.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "BatchPool",
		MaxWorkers:  a.Cfg.Concurrency.BatchPoolSize,
		MaxCapacity: a.Cfg.Concurrency.BatchPoolBuffer,
	}, a.Logger)
	a.Batch = strategy.NewBatchPlanner(planner, a.pool, a.Logger)

	a.Health = health.NewManager(a.Logger)
	a.Health.Register("batch_pool", a.pool.Check)
	if checker, ok := quoter.(interface{ Check() error }); ok {
		a.Health.Register("quoter", checker.Check)
	}

	a.Logger.Info("Planner ready",
		"quote_provider", a.Cfg.Quote.Provider,
		"fee_table", feeTable.Version(),
		"flashloan_table", flTable.Version())
	return nil
}

func (a *App) newQuoter() core.ISwapQuoter {
	if a.Cfg.Quote.Provider == "aggregator" {
		agg := a.Cfg.Quote.Aggregator
		return quote.NewAggregatorClient(quote.AggregatorConfig{
			BaseURL:    agg.BaseURL,
			APIKey:     agg.APIKey.Reveal(),
			ChainID:    agg.ChainID,
			Protocols:  agg.Protocols,
			From:       agg.From,
			Timeout:    agg.Timeout,
			MaxRetries: agg.MaxRetries,
			RateLimit:  agg.RateLimit,
			RateBurst:  agg.RateBurst,
		}, a.Logger)
	}
	return quote.NewStaticQuoter(a.Cfg.Market.PricesUSD, a.Cfg.Quote.Static.Spread)
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) error

// Run implements Runner
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Run executes main alongside background runners. Background runners are
// cancelled once main returns or a termination signal arrives.
func (a *App) Run(ctx context.Context, main Runner, background ...Runner) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	bgCtx, cancelBackground := context.WithCancel(gctx)
	defer cancelBackground()

	for _, runner := range background {
		r := runner
		g.Go(func() error {
			return r.Run(bgCtx)
		})
	}
	g.Go(func() error {
		defer cancelBackground()
		return main.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			a.Logger.Error("application stopped with error", "error", err)
		}
		return err
	}
	return nil
}

// Close releases the pool, flushes telemetry and syncs the logger
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.zap != nil {
		// stderr sync fails on some terminals
		_ = a.zap.Sync()
	}
	return errors.Join(errs...)
}
