// Package strategy runs the open, adjust, close, deposit-borrow and
// payback-withdraw flows: read state, quote, simulate, validate and build
// the executor payload through a per-protocol adapter.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	"leverage_planner/internal/domain/riskratio"
	"leverage_planner/internal/fees"
	"leverage_planner/internal/flashloan"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/simulation"
	"leverage_planner/internal/validation"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/telemetry"
	"leverage_planner/pkg/tokenmath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ActionAdjust lets the planner pick the adjust direction from the target
const ActionAdjust operations.Action = "adjust"

// Simulation is the simulated transition with its validation findings
type Simulation struct {
	Delta            simulation.Delta         `json:"delta"`
	Swap             simulation.Swap          `json:"swap"`
	Flashloan        simulation.Flashloan     `json:"flashloan"`
	Position         position.Position        `json:"position"`
	IsIncreasingRisk bool                     `json:"isIncreasingRisk"`
	Close            *simulation.CloseSummary `json:"close,omitempty"`
	Fee              *fees.Fee                `json:"fee,omitempty"`
	LiquidationPrice decimal.Decimal          `json:"liquidationPrice"`
	Errors           []validation.Finding     `json:"errors"`
	Warnings         []validation.Finding     `json:"warnings"`
}

// Result is what every strategy call returns. Transaction is empty when
// validation produced errors.
type Result struct {
	ID          string                 `json:"id"`
	Action      operations.Action      `json:"action"`
	Transaction operations.Transaction `json:"transaction"`
	Simulation  Simulation             `json:"simulation"`
}

// Blocked reports a plan held back by validation errors
func (r *Result) Blocked() bool {
	return len(r.Simulation.Errors) > 0
}

// Planner runs strategies against one validated Context
type Planner struct {
	sc      *Context
	tracer  trace.Tracer
	metrics *telemetry.MetricsHolder
}

// NewPlanner validates deps and creates a Planner
func NewPlanner(deps Dependencies) (*Planner, error) {
	sc, err := NewContext(deps)
	if err != nil {
		return nil, err
	}
	return &Planner{
		sc:      sc,
		tracer:  telemetry.GetTracer("strategy"),
		metrics: telemetry.GetGlobalMetrics(),
	}, nil
}

// Open plans a new leveraged position at args.TargetMultiple
func (p *Planner) Open(ctx context.Context, args Args) (*Result, error) {
	return p.run(ctx, operations.ActionOpen, args)
}

// Adjust moves an existing position to args.TargetMultiple in whichever
// direction that takes.
func (p *Planner) Adjust(ctx context.Context, args Args) (*Result, error) {
	return p.run(ctx, ActionAdjust, args)
}

// Close unwinds an existing position
func (p *Planner) Close(ctx context.Context, args Args) (*Result, error) {
	return p.run(ctx, operations.ActionClose, args)
}

// DepositBorrow adds collateral and/or debt without a swap
func (p *Planner) DepositBorrow(ctx context.Context, args Args) (*Result, error) {
	return p.run(ctx, operations.ActionDepositBorrow, args)
}

// PaybackWithdraw repays debt and/or withdraws collateral without a swap
func (p *Planner) PaybackWithdraw(ctx context.Context, args Args) (*Result, error) {
	return p.run(ctx, operations.ActionPaybackWithdraw, args)
}

// Plan dispatches on an action name
func (p *Planner) Plan(ctx context.Context, action string, args Args) (*Result, error) {
	switch a := operations.Action(strings.ToLower(strings.TrimSpace(action))); a {
	case operations.ActionOpen, ActionAdjust, operations.ActionAdjustRiskUp, operations.ActionAdjustRiskDown,
		operations.ActionClose, operations.ActionDepositBorrow, operations.ActionPaybackWithdraw:
		if a == operations.ActionAdjustRiskUp || a == operations.ActionAdjustRiskDown {
			a = ActionAdjust
		}
		return p.run(ctx, a, args)
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedAction, action)
}

// state is what the readers returned for one call
type state struct {
	data     *core.ProtocolData
	oracle   decimal.Decimal
	position position.Position
}

// outcome is a simulated transition and the plan that executes it
type outcome struct {
	action            operations.Action
	transition        simulation.Transition
	fee               *fees.Fee
	target            *riskratio.RiskRatio
	plan              operations.Plan
	requestedWithdraw decimal.Decimal
}

func (p *Planner) run(ctx context.Context, action operations.Action, args Args) (res *Result, err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "strategy."+string(action),
		trace.WithAttributes(
			attribute.String("protocol", string(args.Protocol)),
			attribute.String("network", string(args.Network)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.metrics.RecordPlan(ctx, string(args.Protocol), string(action), time.Since(start), err)
	}()

	logger := p.sc.logger.WithFields(map[string]interface{}{
		"protocol": string(args.Protocol),
		"network":  string(args.Network),
		"action":   string(action),
	})
	logger.Debug("Planning",
		"collateral", args.CollateralToken.Symbol,
		"debt", args.DebtToken.Symbol,
		"target_multiple", args.TargetMultiple.String(),
		"slippage", args.Slippage.String(),
		"deposit_collateral", args.DepositCollateral.String(),
		"deposit_debt", args.DepositDebt.String())

	if err := args.validate("strategy." + string(action)); err != nil {
		return nil, err
	}
	adapter, err := p.sc.registry.Get(args.Protocol)
	if err != nil {
		return nil, err
	}
	st, err := p.load(ctx, action, args)
	if err != nil {
		return nil, err
	}

	var out outcome
	switch action {
	case operations.ActionOpen, ActionAdjust:
		out, err = p.adjust(ctx, adapter, st, action, args)
	case operations.ActionClose:
		out, err = p.closePosition(ctx, adapter, st, args)
	case operations.ActionDepositBorrow, operations.ActionPaybackWithdraw:
		out, err = p.direct(adapter, st, action, args)
	default:
		err = fmt.Errorf("%w: %s", apperrors.ErrUnsupportedAction, action)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("operation.action", string(out.action)))
	return p.finish(ctx, logger, adapter, st, args, out)
}

func (p *Planner) load(ctx context.Context, action operations.Action, args Args) (state, error) {
	query := args.query()
	existing := action != operations.ActionOpen
	if existing && p.sc.positions == nil {
		return state{}, fmt.Errorf("%w: position reader", apperrors.ErrMissingDependency)
	}

	// The snapshot and the position come from independent reads
	var (
		data    *core.ProtocolData
		current position.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := p.sc.protocolData.GetProtocolData(gctx, query)
		if err != nil {
			return fmt.Errorf("read protocol data: %w", err)
		}
		data = d
		return nil
	})
	if existing {
		g.Go(func() error {
			c, err := p.sc.positions.GetCurrentPosition(gctx, query)
			if err != nil {
				return fmt.Errorf("read position: %w", err)
			}
			current = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state{}, err
	}

	if data == nil {
		return state{}, fmt.Errorf("read protocol data: %w: empty snapshot", apperrors.ErrInvalidArgument)
	}
	oracle, err := data.OraclePrice()
	if err != nil {
		return state{}, fmt.Errorf("%w: %v", apperrors.ErrDegenerateMath, err)
	}
	category := position.Category{
		MaxLoanToValue:       data.MaxLoanToValue,
		LiquidationThreshold: data.LiquidationThreshold,
		DustLimit:            data.DustLimit,
	}

	if !existing {
		empty := position.New(
			position.NewBalance(decimal.Zero, args.CollateralToken.Symbol, args.CollateralToken.Precision),
			position.NewBalance(decimal.Zero, args.DebtToken.Symbol, args.DebtToken.Precision),
			oracle, category)
		return state{data: data, oracle: oracle, position: empty}, nil
	}
	pos := position.New(current.Collateral, current.Debt, oracle, category)
	return state{data: data, oracle: oracle, position: pos}, nil
}

func (p *Planner) adjust(ctx context.Context, adapter Adapter, st state, action operations.Action, args Args) (outcome, error) {
	op := "strategy." + string(action)
	target, err := riskratio.FromMultiple(args.TargetMultiple)
	if err != nil {
		return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidRiskRatio, err.Error())
	}

	pos := st.position
	if action == operations.ActionOpen && !args.DepositCollateral.IsPositive() && !args.DepositDebt.IsPositive() {
		return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidArgument, "nothing deposited to open with")
	}
	if action == ActionAdjust {
		if pos.IsEmpty() {
			return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidArgument, "no position to adjust")
		}
		current := pos.Deposit(args.DepositCollateral).LoanToValue()
		switch target.LoanToValue().Cmp(current) {
		case 0:
			return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidArgument,
				fmt.Sprintf("position is already at %s", target))
		case 1:
			action = operations.ActionAdjustRiskUp
		default:
			action = operations.ActionAdjustRiskDown
		}
	}
	increase := action != operations.ActionAdjustRiskDown

	src, dst := args.DebtToken, args.CollateralToken
	if !increase {
		src, dst = dst, src
	}
	flags := fees.Flags{IsIncreasingRisk: increase, IsEarnPosition: args.IsEarn()}

	market, err := p.marketPrice(ctx, args, st, !increase)
	if err != nil {
		return outcome{}, err
	}
	sel, err := p.sc.flashloans.Resolve(args.Network, args.Protocol, args.DebtToken)
	if err != nil {
		return outcome{}, err
	}
	oracleFL := p.oracleFlashloanToDebt(st.data, sel, args.DebtToken)
	params := p.params(args, st, sel, market, oracleFL, src, dst, flags)

	transition, err := adapter.Simulate(SimulateInput{
		Action:   action,
		Position: pos,
		Target:   &target,
		Params:   params,
	})
	if err != nil {
		return outcome{}, err
	}

	fee, err := p.finalizeSwap(ctx, &transition, args, flags)
	if err != nil {
		return outcome{}, err
	}
	if err := reconcileWithQuote(&transition, params); err != nil {
		return outcome{}, err
	}
	amount, err := p.sc.flashloans.Amount(sel, args.DebtToken, transition.Delta.FlashloanAmount, flashloan.AmountParams{
		Protocol:            args.Protocol,
		OracleFLtoDebtToken: oracleFL,
		MaxLoanToValue:      st.data.FlashloanTokenMaxLoanToValue,
		SafetyMargin:        p.sc.settings.LTVSafetyMargin,
	})
	if err != nil {
		return outcome{}, err
	}
	transition.Flashloan = simulation.Flashloan{Provider: string(sel.Provider), Token: sel.Token, Amount: amount}

	plan := p.basePlan(action, args)
	plan.Swap = swapLeg(transition.Swap, fee.Rate)
	plan.Flashloan = &operations.FlashloanLeg{Provider: string(sel.Provider), Token: sel.Token, Amount: amount}
	if increase {
		plan.Borrow = transition.Delta.Debt
	} else {
		plan.Payback = transition.Delta.Debt.Neg()
		plan.Withdraw = transition.Swap.FromTokenAmount
	}

	return outcome{
		action:     action,
		transition: transition,
		fee:        fee,
		target:     &target,
		plan:       plan,
	}, nil
}

func (p *Planner) closePosition(ctx context.Context, adapter Adapter, st state, args Args) (outcome, error) {
	pos := st.position
	flags := fees.Flags{IsEarnPosition: args.IsEarn()}
	src, dst := args.CollateralToken, args.DebtToken

	var (
		market = decimal.Zero
		sel    flashloan.Selection
		err    error
	)
	if !args.CloseToCollateral || pos.Debt.Amount.IsPositive() {
		market, err = p.marketPrice(ctx, args, st, true)
		if err != nil {
			return outcome{}, err
		}
	}
	hasDebt := pos.Debt.Amount.IsPositive()
	if hasDebt {
		sel, err = p.sc.flashloans.Resolve(args.Network, args.Protocol, args.DebtToken)
		if err != nil {
			return outcome{}, err
		}
	}
	oracleFL := p.oracleFlashloanToDebt(st.data, sel, args.DebtToken)
	params := p.params(args, st, sel, market, oracleFL, src, dst, flags)

	transition, err := adapter.Simulate(SimulateInput{
		Action:            operations.ActionClose,
		Position:          pos,
		Params:            params,
		CloseToCollateral: args.CloseToCollateral,
	})
	if err != nil {
		return outcome{}, err
	}

	plan := p.basePlan(operations.ActionClose, args)
	plan.Payback = tokenmath.Round(pos.Debt.Amount, args.DebtToken.Precision, tokenmath.RoundUp)
	plan.PaybackAll = true
	plan.Withdraw = pos.Collateral.Amount
	plan.WithdrawAll = true

	var fee *fees.Fee
	if transition.Swap.FromTokenAmount.IsPositive() {
		fee, err = p.finalizeSwap(ctx, &transition, args, flags)
		if err != nil {
			return outcome{}, err
		}
		if c := transition.Close; c != nil {
			c.DebtTokenToUser = tokenmath.ClampZero(guaranteedOutput(transition.Swap).Sub(c.FlashloanRepayment))
		}
		plan.Swap = swapLeg(transition.Swap, fee.Rate)
	}
	if hasDebt {
		amount, err := p.sc.flashloans.Amount(sel, args.DebtToken, transition.Delta.FlashloanAmount, flashloan.AmountParams{
			Protocol:            args.Protocol,
			OracleFLtoDebtToken: oracleFL,
			MaxLoanToValue:      st.data.FlashloanTokenMaxLoanToValue,
			SafetyMargin:        p.sc.settings.LTVSafetyMargin,
		})
		if err != nil {
			return outcome{}, err
		}
		transition.Flashloan = simulation.Flashloan{Provider: string(sel.Provider), Token: sel.Token, Amount: amount}
		plan.Flashloan = &operations.FlashloanLeg{Provider: string(sel.Provider), Token: sel.Token, Amount: amount}
	}

	return outcome{
		action:     operations.ActionClose,
		transition: transition,
		fee:        fee,
		plan:       plan,
	}, nil
}

// direct covers the swap-free actions
func (p *Planner) direct(adapter Adapter, st state, action operations.Action, args Args) (outcome, error) {
	op := "strategy." + string(action)
	if action == operations.ActionDepositBorrow && !args.DepositCollateral.IsPositive() && !args.Borrow.IsPositive() {
		return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidArgument, "nothing to deposit or borrow")
	}
	if action == operations.ActionPaybackWithdraw && !args.Payback.IsPositive() && !args.Withdraw.IsPositive() &&
		!args.PaybackAll && !args.WithdrawAll {
		return outcome{}, apperrors.NewDomainError(op, apperrors.ErrInvalidArgument, "nothing to pay back or withdraw")
	}

	transition, err := adapter.Simulate(SimulateInput{
		Action:   action,
		Position: st.position,
		Params: simulation.Params{
			Prices:          simulation.Prices{Oracle: st.oracle},
			DepositedByUser: simulation.Deposits{Debt: args.DepositDebt, Collateral: args.DepositCollateral},
			CollateralToken: args.CollateralToken,
			DebtToken:       args.DebtToken,
		},
		Borrow:      args.Borrow,
		Payback:     args.Payback,
		Withdraw:    args.Withdraw,
		PaybackAll:  args.PaybackAll,
		WithdrawAll: args.WithdrawAll,
	})
	if err != nil {
		return outcome{}, err
	}

	plan := p.basePlan(action, args)
	out := outcome{action: action, transition: transition, plan: plan}
	if action == operations.ActionDepositBorrow {
		out.plan.Borrow = args.Borrow
		return out, nil
	}
	out.plan.Payback = transition.Delta.Debt.Neg()
	out.plan.PaybackAll = args.PaybackAll
	out.plan.DepositDebt = out.plan.Payback
	out.plan.Withdraw = transition.Delta.Collateral.Neg()
	out.plan.WithdrawAll = args.WithdrawAll
	out.requestedWithdraw = out.plan.Withdraw
	return out, nil
}

func (p *Planner) finish(ctx context.Context, logger core.ILogger, adapter Adapter, st state, args Args, out outcome) (*Result, error) {
	in := validation.Input{
		Previous:            st.position,
		Target:              out.transition.Position,
		TargetRiskRatio:     out.target,
		RequestedWithdraw:   out.requestedWithdraw,
		CloseToMaxLTVOffset: p.sc.settings.CloseToMaxLTVOffset,
	}
	if out.transition.Delta.Debt.IsPositive() {
		in.RequestedBorrow = out.transition.Delta.Debt
	} else {
		in.RequestedPayback = out.transition.Delta.Debt.Neg()
	}
	report := adapter.Validate(in, st.data, p.sc.settings.Rules)
	for _, f := range report.All() {
		p.metrics.RecordFinding(ctx, string(f.Kind), string(f.Severity))
	}

	tr := out.transition
	res := &Result{
		ID:     uuid.NewString(),
		Action: out.action,
		Transaction: operations.Transaction{
			Calls: []core.Call{},
			Steps: []core.OperationType{},
		},
		Simulation: Simulation{
			Delta:            tr.Delta,
			Swap:             tr.Swap,
			Flashloan:        tr.Flashloan,
			Position:         tr.Position,
			IsIncreasingRisk: tr.IsIncreasingRisk,
			Close:            tr.Close,
			Fee:              out.fee,
			LiquidationPrice: tr.Position.LiquidationPrice(),
			Errors:           report.Errors,
			Warnings:         report.Warnings,
		},
	}

	if report.HasErrors() {
		kinds := make([]string, 0, len(report.Errors))
		for _, f := range report.Errors {
			kinds = append(kinds, string(f.Kind))
		}
		logger.Warn("Plan blocked by validation", "id", res.ID, "errors", strings.Join(kinds, ","))
		return res, nil
	}

	tx, err := adapter.BuildOperation(ctx, p.sc.builder, out.plan, st.data)
	if err != nil {
		return nil, err
	}
	res.Transaction = tx
	logger.Info("Planned operation",
		"id", res.ID,
		"operation", tx.OperationName,
		"calls", len(tx.Calls),
		"warnings", len(report.Warnings))
	return res, nil
}

// marketPrice quotes roughly one collateral's worth to find the market
// price of collateral in debt tokens.
func (p *Planner) marketPrice(ctx context.Context, args Args, st state, sellingCollateral bool) (decimal.Decimal, error) {
	from, to := args.DebtToken, args.CollateralToken
	amount := tokenmath.Round(st.oracle, from.Precision, tokenmath.RoundUp)
	if sellingCollateral {
		from, to = to, from
		amount = tokenmath.One
	}
	quote, err := p.quote(ctx, from, to, amount, args.Slippage)
	if err != nil {
		return decimal.Zero, err
	}
	if sellingCollateral {
		return tokenmath.Div(quote.ToTokenAmount, quote.FromTokenAmount)
	}
	return quote.MarketPrice()
}

type named interface {
	Name() string
}

func (p *Planner) quote(ctx context.Context, from, to core.Token, amount, slippage decimal.Decimal) (*core.SwapData, error) {
	provider := "custom"
	if n, ok := p.sc.quoter.(named); ok {
		provider = n.Name()
	}
	sd, err := p.sc.quoter.GetSwapData(ctx, from, to, amount, slippage)
	p.metrics.RecordQuote(ctx, provider, err == nil)
	if err != nil {
		return nil, fmt.Errorf("quote %s->%s: %w", from.Symbol, to.Symbol, err)
	}
	if sd == nil || !sd.ToTokenAmount.IsPositive() || !sd.FromTokenAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s->%s returned no output", apperrors.ErrQuoteUnavailable, from.Symbol, to.Symbol)
	}
	return sd, nil
}

// finalizeSwap replaces the simulated swap outputs with a quote for the
// simulated input and prices the fee off that quote.
func (p *Planner) finalizeSwap(ctx context.Context, tr *simulation.Transition, args Args, flags fees.Flags) (*fees.Fee, error) {
	s := tr.Swap
	amount := s.FromTokenAmount
	if s.CollectFeeFrom == core.CollectFeeFromSource {
		amount = amount.Sub(s.TokenFee)
	}
	quote, err := p.quote(ctx, s.FromToken, s.ToToken, amount, args.Slippage)
	if err != nil {
		return nil, err
	}
	fee := p.sc.fees.SwapFee(s.FromToken, s.ToToken, s.FromTokenAmount, quote.ToTokenAmount, flags)

	tr.Swap.ToTokenAmount = quote.ToTokenAmount
	tr.Swap.MinToTokenAmount = quote.MinToTokenAmount
	tr.Swap.ExchangeCalldata = quote.ExchangeCalldata
	tr.Swap.TokenFee = fee.Amount
	tr.Swap.CollectFeeFrom = fee.CollectFrom
	return &fee, nil
}

// guaranteedOutput is what the swap leaves after its fee if it fills at the
// quoted minimum.
func guaranteedOutput(s simulation.Swap) decimal.Decimal {
	out := s.MinToTokenAmount
	if s.CollectFeeFrom == core.CollectFeeFromTarget {
		out = out.Sub(s.TokenFee)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// reconcileWithQuote shrinks the simulated deltas to what the real quote
// guarantees. Collateral credited on an increase is capped at the guaranteed
// output; the flashloan repaid on a decrease is capped at the guaranteed
// proceeds and the rest stays as debt.
func reconcileWithQuote(tr *simulation.Transition, params simulation.Params) error {
	delivered := guaranteedOutput(tr.Swap)
	if tr.IsIncreasingRisk {
		credited := tr.Delta.Collateral.Sub(params.DepositedByUser.Collateral)
		if shortfall := credited.Sub(delivered); shortfall.IsPositive() {
			tr.Delta.Collateral = tr.Delta.Collateral.Sub(shortfall)
			tr.Position = tr.Position.Withdraw(shortfall)
		}
		return nil
	}

	onePlusFF := tokenmath.One.Add(params.Fees.FlashLoan)
	payback, err := tokenmath.DivRound(delivered, onePlusFF, params.DebtToken.Precision, tokenmath.RoundDown)
	if err != nil {
		return err
	}
	if shortfall := tr.Delta.FlashloanAmount.Sub(payback); shortfall.IsPositive() {
		tr.Delta.FlashloanAmount = payback
		tr.Delta.Debt = tr.Delta.Debt.Add(shortfall)
		tr.Position = tr.Position.Borrow(shortfall)
	}
	return nil
}

func (p *Planner) oracleFlashloanToDebt(data *core.ProtocolData, sel flashloan.Selection, debt core.Token) decimal.Decimal {
	if sel.Token.Symbol == "" || sel.Token.SameAs(debt) {
		return tokenmath.One
	}
	price, err := data.OracleFlashloanToDebt()
	if err != nil {
		// sizing fails later if this price turns out to be needed
		return decimal.Zero
	}
	return price
}

func (p *Planner) params(args Args, st state, sel flashloan.Selection, market, oracleFL decimal.Decimal, src, dst core.Token, flags fees.Flags) simulation.Params {
	return simulation.Params{
		Fees: simulation.Fees{
			FlashLoan:        p.sc.flashloanFee(sel.Provider),
			Protocol:         p.sc.fees.FeeRate(src.Symbol, dst.Symbol, flags),
			EstimateInflator: p.sc.fees.Inflator(),
		},
		Prices: simulation.Prices{
			Market:              market,
			Oracle:              st.oracle,
			OracleFLtoDebtToken: oracleFL,
		},
		Slippage: args.Slippage,
		Flashloan: simulation.FlashloanParams{
			Token:          sel.Token,
			MaxLoanToValue: st.data.FlashloanTokenMaxLoanToValue,
		},
		DepositedByUser: simulation.Deposits{
			Debt:       args.DepositDebt,
			Collateral: args.DepositCollateral,
		},
		CollectSwapFeeFrom: p.sc.fees.CollectFeeFrom(src.Symbol, dst.Symbol),
		CollateralToken:    args.CollateralToken,
		DebtToken:          args.DebtToken,
	}
}

func (p *Planner) basePlan(action operations.Action, args Args) operations.Plan {
	positionType := args.PositionType
	if positionType == "" {
		positionType = PositionTypeMultiply
	}
	return operations.Plan{
		Protocol:          args.Protocol,
		Action:            action,
		PositionType:      positionType,
		Addresses:         args.Addresses,
		CollateralToken:   args.CollateralToken,
		DebtToken:         args.DebtToken,
		DepositCollateral: args.DepositCollateral,
		DepositDebt:       args.DepositDebt,
		VaultID:           args.VaultID,
		Pool:              args.Pool,
	}
}

func swapLeg(s simulation.Swap, rate decimal.Decimal) *operations.SwapLeg {
	return &operations.SwapLeg{
		From:           s.FromToken,
		To:             s.ToToken,
		Amount:         s.FromTokenAmount,
		MinToAmount:    s.MinToTokenAmount,
		FeeRate:        rate,
		CollectFeeFrom: s.CollectFeeFrom,
		Calldata:       s.ExchangeCalldata,
	}
}
