package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/domain/riskratio"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/simulation"
	"leverage_planner/internal/validation"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// SimulateInput is what an adapter needs to simulate one action
type SimulateInput struct {
	Action            operations.Action
	Position          position.Position
	Target            *riskratio.RiskRatio
	Params            simulation.Params
	CloseToCollateral bool

	Borrow      decimal.Decimal
	Payback     decimal.Decimal
	Withdraw    decimal.Decimal
	PaybackAll  bool
	WithdrawAll bool
}

// Adapter is the capability set of one lending protocol
type Adapter interface {
	Protocol() core.Protocol
	Simulate(in SimulateInput) (simulation.Transition, error)
	Validate(in validation.Input, data *core.ProtocolData, rules []validation.Rule) validation.Report
	BuildOperation(ctx context.Context, b *operations.Builder, plan operations.Plan, data *core.ProtocolData) (operations.Transaction, error)
}

// lendingAdapter serves the pool-based AAVE family
type lendingAdapter struct {
	protocol core.Protocol
	eMode    bool
}

func (a lendingAdapter) Protocol() core.Protocol {
	return a.protocol
}

func (a lendingAdapter) Simulate(in SimulateInput) (simulation.Transition, error) {
	return simulate(in)
}

func (a lendingAdapter) Validate(in validation.Input, data *core.ProtocolData, rules []validation.Rule) validation.Report {
	in.Pool = validation.Pool{
		AvailableLiquidity: data.AvailableLiquidity,
		HasLiquidityData:   data.HasLiquidityData,
		LiquidityBuffer:    data.LiquidityBuffer,
	}
	return validation.Run(in, rules...)
}

func (a lendingAdapter) BuildOperation(ctx context.Context, b *operations.Builder, plan operations.Plan, data *core.ProtocolData) (operations.Transaction, error) {
	if a.eMode {
		plan.EModeCategory = data.EModeCategory
	}
	return b.Build(ctx, plan)
}

// makerAdapter serves Maker vaults. The debt ceiling headroom of the ilk is
// the borrowable liquidity.
type makerAdapter struct{}

func (makerAdapter) Protocol() core.Protocol {
	return core.ProtocolMaker
}

func (makerAdapter) Simulate(in SimulateInput) (simulation.Transition, error) {
	return simulate(in)
}

func (makerAdapter) Validate(in validation.Input, data *core.ProtocolData, rules []validation.Rule) validation.Report {
	in.Pool = validation.Pool{MinDebtAmount: data.DustLimit}
	if data.DebtCeiling.IsPositive() {
		in.Pool.HasLiquidityData = true
		in.Pool.AvailableLiquidity = tokenmath.ClampZero(data.DebtCeiling.Sub(data.DebtTotal))
	}
	return validation.Run(in, rules...)
}

func (makerAdapter) BuildOperation(ctx context.Context, b *operations.Builder, plan operations.Plan, data *core.ProtocolData) (operations.Transaction, error) {
	if plan.Action == operations.ActionOpen && plan.VaultID == 0 && data.Ilk == "" {
		return operations.Transaction{}, apperrors.NewDomainError("strategy.maker", apperrors.ErrInvalidArgument,
			"opening a vault needs an ilk")
	}
	plan.Ilk = data.Ilk
	return b.Build(ctx, plan)
}

// ajnaAdapter serves Ajna pools. Withdrawals must keep the threshold price
// under the lowest utilized price.
type ajnaAdapter struct{}

func (ajnaAdapter) Protocol() core.Protocol {
	return core.ProtocolAjna
}

func (ajnaAdapter) Simulate(in SimulateInput) (simulation.Transition, error) {
	return simulate(in)
}

func (ajnaAdapter) Validate(in validation.Input, data *core.ProtocolData, rules []validation.Rule) validation.Report {
	in.Pool = validation.Pool{
		MinDebtAmount:      data.DustLimit,
		AvailableLiquidity: data.AvailableLiquidity,
		HasLiquidityData:   data.HasLiquidityData,
		LiquidityBuffer:    data.LiquidityBuffer,
		SafePriceFloor:     data.LowestUtilizedPrice,
	}
	return validation.Run(in, rules...)
}

func (ajnaAdapter) BuildOperation(ctx context.Context, b *operations.Builder, plan operations.Plan, data *core.ProtocolData) (operations.Transaction, error) {
	plan.Price = data.LowestUtilizedPrice
	if !plan.Price.IsPositive() {
		oracle, err := data.OraclePrice()
		if err != nil {
			return operations.Transaction{}, fmt.Errorf("%w: %v", apperrors.ErrDegenerateMath, err)
		}
		plan.Price = oracle
	}
	return b.Build(ctx, plan)
}

// simulate is the protocol independent part of every adapter
func simulate(in SimulateInput) (simulation.Transition, error) {
	pos := in.Position
	switch in.Action {
	case operations.ActionOpen, operations.ActionAdjustRiskUp, operations.ActionAdjustRiskDown:
		if in.Target == nil {
			return simulation.Transition{}, apperrors.NewDomainError("strategy.simulate", apperrors.ErrInvalidRiskRatio,
				"a target risk ratio is required")
		}
		return simulation.AdjustToTargetRiskRatio(pos, *in.Target, in.Params)

	case operations.ActionClose:
		return simulation.Close(pos, in.Params, in.CloseToCollateral)

	case operations.ActionDepositBorrow:
		deposit := in.Params.DepositedByUser.Collateral
		after := pos.Deposit(deposit).Borrow(in.Borrow)
		return simulation.Transition{
			Delta:            simulation.Delta{Collateral: deposit, Debt: in.Borrow},
			Position:         after,
			IsIncreasingRisk: in.Borrow.IsPositive(),
		}, nil

	case operations.ActionPaybackWithdraw:
		payback := in.Payback
		if in.PaybackAll {
			payback = tokenmath.Round(pos.Debt.Amount, pos.Debt.Precision, tokenmath.RoundUp)
		}
		withdraw := in.Withdraw
		if in.WithdrawAll {
			withdraw = pos.Collateral.Amount
		}
		after := pos.Payback(payback).Withdraw(withdraw)
		if in.PaybackAll {
			after.Debt = after.Debt.WithAmount(tokenmath.ClampZero(after.Debt.Amount))
		}
		return simulation.Transition{
			Delta:    simulation.Delta{Collateral: withdraw.Neg(), Debt: payback.Neg()},
			Position: after,
		}, nil
	}
	return simulation.Transition{}, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedAction, in.Action)
}

// Registry maps protocol tags to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[core.Protocol]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[core.Protocol]Adapter)}
}

// DefaultRegistry holds every supported protocol
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(lendingAdapter{protocol: core.ProtocolAaveV2})
	r.Register(lendingAdapter{protocol: core.ProtocolAaveV3, eMode: true})
	r.Register(lendingAdapter{protocol: core.ProtocolSpark, eMode: true})
	r.Register(makerAdapter{})
	r.Register(ajnaAdapter{})
	return r
}

// Register adds or replaces the adapter for its protocol
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Protocol()] = a
}

// Get returns the adapter for protocol
func (r *Registry) Get(protocol core.Protocol) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedProtocol, protocol)
	}
	return a, nil
}

// Protocols lists the registered protocol tags in sorted order
func (r *Registry) Protocols() []core.Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Protocol, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
