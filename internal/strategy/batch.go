package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"leverage_planner/internal/core"
	"leverage_planner/pkg/concurrency"
	"leverage_planner/pkg/telemetry"
)

// Request is one entry of a batch
type Request struct {
	Action string `json:"action"`
	Args   Args   `json:"args"`
}

// BatchItem is the outcome of one Request. Exactly one of Result and Err is
// set.
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

// MarshalJSON renders Err as a string
func (i BatchItem) MarshalJSON() ([]byte, error) {
	out := struct {
		Index  int     `json:"index"`
		Result *Result `json:"result,omitempty"`
		Error  string  `json:"error,omitempty"`
	}{Index: i.Index, Result: i.Result}
	if i.Err != nil {
		out.Error = i.Err.Error()
	}
	return json.Marshal(out)
}

// BatchPlanner plans independent requests concurrently on a worker pool.
// One failing request never aborts the others.
type BatchPlanner struct {
	planner *Planner
	pool    *concurrency.WorkerPool
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
}

func NewBatchPlanner(planner *Planner, pool *concurrency.WorkerPool, logger core.ILogger) *BatchPlanner {
	return &BatchPlanner{
		planner: planner,
		pool:    pool,
		logger:  logger.WithField("component", "batch_planner"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

// PlanAll returns one item per request, in request order
func (b *BatchPlanner) PlanAll(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))
	tasks := make([]func(ctx context.Context), len(reqs))
	for i, req := range reqs {
		i, req := i, req
		items[i].Index = i
		tasks[i] = func(ctx context.Context) {
			b.metrics.AddInFlight(1)
			defer b.metrics.AddInFlight(-1)
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Plan panicked", "index", i, "panic", fmt.Sprint(r))
					items[i].Result = nil
					items[i].Err = fmt.Errorf("plan %d panicked: %v", i, r)
				}
			}()
			res, err := b.planner.Plan(ctx, req.Action, req.Args)
			items[i].Result = res
			items[i].Err = err
		}
	}
	b.pool.RunAll(ctx, tasks)

	failed := 0
	for i := range items {
		if items[i].Result == nil && items[i].Err == nil {
			// skipped after cancellation
			items[i].Err = ctx.Err()
		}
		if items[i].Err != nil {
			failed++
		}
	}
	b.logger.Info("Batch planned", "requests", len(reqs), "failed", failed)
	return items
}
