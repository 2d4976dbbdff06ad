// Package validation inspects a simulated position and reports economically
// unsafe outcomes. Findings are data, not Go errors: an error-severity
// finding blocks the plan, a warning is advisory.
package validation

import (
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/domain/riskratio"

	"github.com/shopspring/decimal"
)

// Kind identifies a finding
type Kind string

const (
	KindDustLimit                   Kind = "dust-limit"
	KindNotEnoughLiquidity          Kind = "not-enough-liquidity"
	KindUndercollateralizedBorrow   Kind = "undercollateralized-borrow"
	KindUndercollateralizedWithdraw Kind = "undercollateralized-withdraw"
	KindOverdraw                    Kind = "overdraw"
	KindPaybackExceedsDebt          Kind = "payback-exceeds-debt"
	KindCloseToMaxLTV               Kind = "close-to-max-ltv"
	KindTargetLTVExceedsMaxLTV      Kind = "target-ltv-exceeds-max-ltv"
	KindInvalidRiskRatio            Kind = "invalid-risk-ratio"
)

// Severity splits findings into blocking errors and advisory warnings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// DefaultCloseToMaxLTVOffset is how far below max LTV the warning starts
var DefaultCloseToMaxLTVOffset = decimal.RequireFromString("0.05")

// Finding is one rule outcome with the numbers needed to explain it
type Finding struct {
	Kind     Kind                       `json:"kind"`
	Severity Severity                   `json:"severity"`
	Data     map[string]decimal.Decimal `json:"data,omitempty"`
}

// Pool is protocol-side context for the rules. Zero values disable the
// checks that depend on them.
type Pool struct {
	// MinDebtAmount overrides the category dust limit when positive
	MinDebtAmount      decimal.Decimal
	AvailableLiquidity decimal.Decimal
	HasLiquidityData   bool
	// LiquidityBuffer is the fraction of AvailableLiquidity a borrow may
	// not touch
	LiquidityBuffer decimal.Decimal
	// SafePriceFloor is the price a position's threshold price must stay
	// under after a withdrawal, e.g. the Ajna lowest utilized price.
	SafePriceFloor decimal.Decimal
}

// Input is what every rule sees
type Input struct {
	Previous position.Position
	Target   position.Position
	Pool     Pool

	RequestedBorrow   decimal.Decimal
	RequestedWithdraw decimal.Decimal
	RequestedPayback  decimal.Decimal

	// TargetRiskRatio is set for adjust-style actions
	TargetRiskRatio *riskratio.RiskRatio

	CloseToMaxLTVOffset decimal.Decimal
}

// Rule is a pure check
type Rule func(in Input) []Finding

// Report splits findings by severity
type Report struct {
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// HasErrors reports whether any blocking finding was produced
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Has reports whether a finding of kind is present in either list
func (r Report) Has(kind Kind) bool {
	for _, f := range r.Errors {
		if f.Kind == kind {
			return true
		}
	}
	for _, f := range r.Warnings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// All returns errors followed by warnings
func (r Report) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// Run applies rules in order
func Run(in Input, rules ...Rule) Report {
	report := Report{Errors: []Finding{}, Warnings: []Finding{}}
	for _, rule := range rules {
		for _, f := range rule(in) {
			if f.Severity == SeverityError {
				report.Errors = append(report.Errors, f)
			} else {
				report.Warnings = append(report.Warnings, f)
			}
		}
	}
	return report
}

// DefaultRules is the rule set applied by every strategy
func DefaultRules() []Rule {
	return []Rule{
		InvalidRiskRatio,
		TargetLTVExceedsMaxLTV,
		DustLimit,
		NotEnoughLiquidity,
		UndercollateralizedBorrow,
		Overdraw,
		UndercollateralizedWithdraw,
		PaybackExceedsDebt,
		CloseToMaxLTV,
	}
}
