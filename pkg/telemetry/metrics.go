package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricPlansTotal              = "planner_plans_total"
	MetricPlanFailuresTotal       = "planner_plan_failures_total"
	MetricValidationFindingsTotal = "planner_validation_findings_total"
	MetricPlanLatency             = "planner_plan_latency_ms"
	MetricQuoteRequestsTotal      = "planner_quote_requests_total"
	MetricBatchInFlight           = "planner_batch_in_flight"
)

// MetricsHolder holds initialized instruments. Record methods are no-ops
// until InitMetrics has run, so library code never has to check.
type MetricsHolder struct {
	PlansTotal              metric.Int64Counter
	PlanFailuresTotal       metric.Int64Counter
	ValidationFindingsTotal metric.Int64Counter
	PlanLatency             metric.Float64Histogram
	QuoteRequestsTotal      metric.Int64Counter
	BatchInFlight           metric.Int64ObservableGauge

	mu          sync.RWMutex
	initialized bool
	inFlight    int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error

	m.PlansTotal, err = meter.Int64Counter(MetricPlansTotal, metric.WithDescription("Plans produced, by protocol and action"))
	if err != nil {
		return err
	}

	m.PlanFailuresTotal, err = meter.Int64Counter(MetricPlanFailuresTotal, metric.WithDescription("Plans rejected by a domain or dependency error"))
	if err != nil {
		return err
	}

	m.ValidationFindingsTotal, err = meter.Int64Counter(MetricValidationFindingsTotal, metric.WithDescription("Validation findings attached to simulations"))
	if err != nil {
		return err
	}

	m.PlanLatency, err = meter.Float64Histogram(MetricPlanLatency, metric.WithDescription("End-to-end strategy latency"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.QuoteRequestsTotal, err = meter.Int64Counter(MetricQuoteRequestsTotal, metric.WithDescription("Swap quote requests by provider and outcome"))
	if err != nil {
		return err
	}

	m.BatchInFlight, err = meter.Int64ObservableGauge(MetricBatchInFlight, metric.WithDescription("Batch plan requests currently executing"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.inFlight)
			return nil
		}))
	if err != nil {
		return err
	}

	m.initialized = true
	return nil
}

func (m *MetricsHolder) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// RecordPlan counts a finished strategy call and its latency
func (m *MetricsHolder) RecordPlan(ctx context.Context, protocol, action string, elapsed time.Duration, err error) {
	if !m.ready() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("protocol", protocol),
		attribute.String("action", action),
	)
	if err != nil {
		m.PlanFailuresTotal.Add(ctx, 1, attrs)
	} else {
		m.PlansTotal.Add(ctx, 1, attrs)
	}
	m.PlanLatency.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}

// RecordFinding counts one validation finding
func (m *MetricsHolder) RecordFinding(ctx context.Context, kind, severity string) {
	if !m.ready() {
		return
	}
	m.ValidationFindingsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("severity", severity),
	))
}

// RecordQuote counts one quote request
func (m *MetricsHolder) RecordQuote(ctx context.Context, provider string, ok bool) {
	if !m.ready() {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.QuoteRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// AddInFlight moves the batch in-flight gauge by delta
func (m *MetricsHolder) AddInFlight(delta int64) {
	m.mu.Lock()
	m.inFlight += delta
	m.mu.Unlock()
}

// InFlight returns the current batch in-flight value
func (m *MetricsHolder) InFlight() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inFlight
}
