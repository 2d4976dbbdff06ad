package operations

import (
	"context"
	"fmt"

	"leverage_planner/internal/core"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Addresses are the accounts a plan's calls refer to
type Addresses struct {
	// Proxy is the user's smart account that executes the calls
	Proxy common.Address `json:"proxy"`
	User  common.Address `json:"user"`
	// Spender receives token approvals: the lending pool, Ajna pool or
	// Maker join adapter.
	Spender common.Address `json:"spender"`
	// OperationExecutor repays the flashloan and must hold its funds at the
	// end of the inner calls.
	OperationExecutor common.Address `json:"operationExecutor"`
}

// SwapLeg is the exchange step of a plan
type SwapLeg struct {
	From           core.Token
	To             core.Token
	Amount         decimal.Decimal
	MinToAmount    decimal.Decimal
	FeeRate        decimal.Decimal
	CollectFeeFrom core.CollectFeeFrom
	Calldata       []byte
}

// FlashloanLeg wraps the inner calls of a plan
type FlashloanLeg struct {
	Provider string
	Token    core.Token
	Amount   decimal.Decimal
}

// Plan carries every computed amount the call sequence needs. Amounts are
// token units already rounded to token precision.
type Plan struct {
	Protocol     core.Protocol
	Action       Action
	PositionType string
	Addresses    Addresses

	CollateralToken core.Token
	DebtToken       core.Token

	DepositCollateral decimal.Decimal
	DepositDebt       decimal.Decimal
	Borrow            decimal.Decimal
	Payback           decimal.Decimal
	PaybackAll        bool
	Withdraw          decimal.Decimal
	WithdrawAll       bool

	Swap      *SwapLeg
	Flashloan *FlashloanLeg

	EModeCategory uint8

	// Maker
	VaultID uint64
	Ilk     string

	// Ajna
	Pool  common.Address
	Price decimal.Decimal
}

// Transaction is the executor payload. Steps lists operation types in
// execution order with flashloan-wrapped steps following take-flashloan.
type Transaction struct {
	OperationName string               `json:"operationName"`
	Calls         []core.Call          `json:"calls"`
	Steps         []core.OperationType `json:"steps"`
}

// Empty reports a transaction with nothing to execute
func (t Transaction) Empty() bool {
	return len(t.Calls) == 0
}

type step struct {
	op   core.OperationType
	args any
}

// sequence is the ordered step layout of one operation. Inner steps run
// inside the flashloan when one is taken.
type sequence struct {
	pre   []step
	inner []step
	post  []step
}

// Builder emits calls through the injected factory
type Builder struct {
	factory core.ICallFactory
	logger  core.ILogger
}

// NewBuilder creates a Builder
func NewBuilder(factory core.ICallFactory, logger core.ILogger) *Builder {
	return &Builder{
		factory: factory,
		logger:  logger.WithField("component", "operation_builder"),
	}
}

// Build lays out the calls for plan and invokes the factory for each one
func (b *Builder) Build(ctx context.Context, plan Plan) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	name, err := Name(plan.Protocol, plan.Action)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", apperrors.ErrUnsupportedAction, err)
	}

	u := &units{}
	var seq sequence
	switch plan.Protocol {
	case core.ProtocolAaveV2, core.ProtocolAaveV3, core.ProtocolSpark:
		seq, err = aaveSequence(plan, u)
	case core.ProtocolMaker:
		seq, err = makerSequence(plan, u)
	case core.ProtocolAjna:
		seq, err = ajnaSequence(plan, u)
	default:
		err = fmt.Errorf("%w: %s", apperrors.ErrUnsupportedProtocol, plan.Protocol)
	}
	if err != nil {
		return Transaction{}, err
	}
	if u.err != nil {
		return Transaction{}, fmt.Errorf("convert %s amounts: %w", name, u.err)
	}

	tx := Transaction{OperationName: name, Calls: []core.Call{}, Steps: []core.OperationType{}}
	emit := func(steps []step) ([]core.Call, error) {
		calls := make([]core.Call, 0, len(steps))
		for _, s := range steps {
			call, err := b.factory.BuildCall(s.op, s.args)
			if err != nil {
				return nil, fmt.Errorf("build %s call: %w", s.op, err)
			}
			calls = append(calls, call)
		}
		return calls, nil
	}

	pre, err := emit(seq.pre)
	if err != nil {
		return Transaction{}, err
	}
	tx.Calls = append(tx.Calls, pre...)
	tx.Steps = append(tx.Steps, opsOf(seq.pre)...)

	if len(seq.inner) > 0 {
		inner, err := emit(seq.inner)
		if err != nil {
			return Transaction{}, err
		}
		if plan.Flashloan != nil {
			fl := plan.Flashloan
			args := TakeFlashloanArgs{
				Provider:   fl.Provider,
				Asset:      fl.Token.Address,
				Amount:     u.up(fl.Amount, fl.Token),
				IsDssFlash: fl.Provider == "dss-flash",
				Calls:      inner,
			}
			if u.err != nil {
				return Transaction{}, fmt.Errorf("convert %s flashloan: %w", name, u.err)
			}
			call, err := b.factory.BuildCall(OpTakeFlashloan, args)
			if err != nil {
				return Transaction{}, fmt.Errorf("build %s call: %w", OpTakeFlashloan, err)
			}
			tx.Calls = append(tx.Calls, call)
			tx.Steps = append(tx.Steps, OpTakeFlashloan)
		} else {
			tx.Calls = append(tx.Calls, inner...)
		}
		tx.Steps = append(tx.Steps, opsOf(seq.inner)...)
	}

	post, err := emit(seq.post)
	if err != nil {
		return Transaction{}, err
	}
	tx.Calls = append(tx.Calls, post...)
	tx.Steps = append(tx.Steps, opsOf(seq.post)...)

	b.logger.Debug("Built operation", "operation", name, "calls", len(tx.Calls), "steps", len(tx.Steps))
	return tx, nil
}

func opsOf(steps []step) []core.OperationType {
	out := make([]core.OperationType, len(steps))
	for i, s := range steps {
		out[i] = s.op
	}
	return out
}

// units converts decimal amounts to base units, keeping the first error
type units struct {
	err error
}

func (u *units) convert(amount decimal.Decimal, token core.Token, mode tokenmath.RoundingMode) *uint256.Int {
	if u.err != nil {
		return uint256.NewInt(0)
	}
	v, err := tokenmath.ToBaseUnits(amount, token.Precision, mode)
	if err != nil {
		u.err = fmt.Errorf("%s: %w", token.Symbol, err)
		return uint256.NewInt(0)
	}
	return v
}

// up is for amounts the user owes
func (u *units) up(amount decimal.Decimal, token core.Token) *uint256.Int {
	return u.convert(amount, token, tokenmath.RoundUp)
}

// down is for amounts the user receives or sends from a known balance
func (u *units) down(amount decimal.Decimal, token core.Token) *uint256.Int {
	return u.convert(amount, token, tokenmath.RoundDown)
}

// pullDeposit brings a user top-up into the proxy. ETH arrives with the
// transaction and only needs wrapping.
func pullDeposit(plan Plan, token core.Token, amount decimal.Decimal, u *units) []step {
	if !amount.IsPositive() {
		return nil
	}
	if token.IsEth() {
		return []step{{OpWrapEth, WrapEthArgs{Amount: u.down(amount, token)}}}
	}
	return []step{{OpPullToken, PullTokenArgs{
		Asset:  token.Address,
		From:   plan.Addresses.User,
		Amount: u.down(amount, token),
	}}}
}

func swapStep(plan Plan, u *units) (step, error) {
	if plan.Swap == nil {
		return step{}, apperrors.NewDomainError("operations.swap", apperrors.ErrInvalidArgument,
			fmt.Sprintf("%s %s needs a swap", plan.Protocol, plan.Action))
	}
	s := plan.Swap
	feeBps := s.FeeRate.Mul(tokenmath.BasisPoints).Round(0)
	if feeBps.IsNegative() {
		feeBps = decimal.Zero
	}
	return step{OpSwap, SwapArgs{
		FromAsset:             s.From.Address,
		ToAsset:               s.To.Address,
		Amount:                u.down(s.Amount, s.From),
		ReceiveAtLeast:        u.down(s.MinToAmount, s.To),
		FeeBps:                uint64(feeBps.IntPart()),
		CollectFeeInFromToken: s.CollectFeeFrom != core.CollectFeeFromTarget,
		Calldata:              s.Calldata,
	}}, nil
}

// closeSwap is empty when a close has nothing to sell
func closeSwap(plan Plan, u *units) []step {
	if plan.Swap == nil {
		return nil
	}
	s, _ := swapStep(plan, u)
	return []step{s}
}

func positionCreated(plan Plan) step {
	return step{OpPositionCreated, PositionCreatedArgs{
		Protocol:        plan.Protocol,
		PositionType:    plan.PositionType,
		CollateralToken: plan.CollateralToken.Address,
		DebtToken:       plan.DebtToken.Address,
	}}
}

func returnFunds(token core.Token) step {
	return step{OpReturnFunds, ReturnFundsArgs{Asset: token.Address}}
}

func unsupported(plan Plan) error {
	return fmt.Errorf("%w: %s on %s", apperrors.ErrUnsupportedAction, plan.Action, plan.Protocol)
}
