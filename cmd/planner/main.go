package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"leverage_planner/internal/bootstrap"
	"leverage_planner/internal/infrastructure/metrics"
	"leverage_planner/internal/strategy"
	"leverage_planner/pkg/logging"
)

const usage = `usage: planner <command> [flags]

commands:
  plan     plan one request     (-config, -request)
  batch    plan many requests   (-config, -request)
  tables   print the fee and flashloan tables in use (-config)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		logging.GetGlobalLogger().Error("Command failed", "command", os.Args[1], "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(command string, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configFile := fs.String("config", "configs/planner.yaml", "Path to configuration file")
	requestFile := fs.String("request", "-", "Request JSON file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	var cmd func(ctx context.Context, app *bootstrap.App) (any, error)
	switch command {
	case "plan":
		cmd = func(ctx context.Context, app *bootstrap.App) (any, error) {
			var req strategy.Request
			if err := readJSON(*requestFile, stdin, &req); err != nil {
				return nil, err
			}
			applyDefaults(app, &req)
			return app.Planner.Plan(ctx, req.Action, req.Args)
		}
	case "batch":
		cmd = func(ctx context.Context, app *bootstrap.App) (any, error) {
			var reqs []strategy.Request
			if err := readJSON(*requestFile, stdin, &reqs); err != nil {
				return nil, err
			}
			for i := range reqs {
				applyDefaults(app, &reqs[i])
			}
			return app.Batch.PlanAll(ctx, reqs), nil
		}
	case "tables":
		cmd = func(ctx context.Context, app *bootstrap.App) (any, error) {
			return describeTables(app), nil
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	}()

	var background []bootstrap.Runner
	if app.Cfg.Telemetry.EnableMetrics {
		background = append(background, metrics.NewServer(app.Cfg.Telemetry.MetricsPort, app.Logger, app.Health))
	}

	return app.Run(context.Background(), bootstrap.RunnerFunc(func(ctx context.Context) error {
		out, err := cmd(ctx, app)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}), background...)
}

func readJSON(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func applyDefaults(app *bootstrap.App, req *strategy.Request) {
	if req.Args.Slippage.IsZero() {
		req.Args.Slippage = app.Cfg.Planner.DefaultSlippage
	}
}
