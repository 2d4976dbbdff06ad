package strategy

import (
	"fmt"
	"strings"

	"leverage_planner/internal/core"
	"leverage_planner/internal/fees"
	"leverage_planner/internal/flashloan"
	"leverage_planner/internal/operations"
	"leverage_planner/internal/validation"
	apperrors "leverage_planner/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Position types recorded by position-created calls
const (
	PositionTypeMultiply = "Multiply"
	PositionTypeEarn     = "Earn"
	PositionTypeBorrow   = "Borrow"
)

// Args is one strategy request. Amounts are token units.
type Args struct {
	Protocol     core.Protocol        `json:"protocol"`
	Network      core.Network         `json:"network"`
	PositionType string               `json:"positionType"`
	Addresses    operations.Addresses `json:"addresses"`

	CollateralToken core.Token `json:"collateralToken"`
	DebtToken       core.Token `json:"debtToken"`

	// TargetMultiple drives open and adjust
	TargetMultiple decimal.Decimal `json:"targetMultiple"`
	Slippage       decimal.Decimal `json:"slippage"`

	DepositCollateral decimal.Decimal `json:"depositCollateral"`
	DepositDebt       decimal.Decimal `json:"depositDebt"`

	// deposit-borrow and payback-withdraw amounts
	Borrow      decimal.Decimal `json:"borrow"`
	Payback     decimal.Decimal `json:"payback"`
	Withdraw    decimal.Decimal `json:"withdraw"`
	PaybackAll  bool            `json:"paybackAll"`
	WithdrawAll bool            `json:"withdrawAll"`

	CloseToCollateral bool `json:"closeToCollateral"`

	VaultID uint64         `json:"vaultId,omitempty"`
	Pool    common.Address `json:"pool,omitempty"`
}

// IsEarn reports an earn position, which pays no fee when adding risk
func (a Args) IsEarn() bool {
	return strings.EqualFold(a.PositionType, PositionTypeEarn)
}

func (a Args) query() core.PositionQuery {
	return core.PositionQuery{
		Protocol:        a.Protocol,
		Network:         a.Network,
		Proxy:           a.Addresses.Proxy,
		User:            a.Addresses.User,
		CollateralToken: a.CollateralToken,
		DebtToken:       a.DebtToken,
		VaultID:         a.VaultID,
		Pool:            a.Pool,
	}
}

func (a Args) validate(op string) error {
	bad := func(reason string) error {
		return apperrors.NewDomainError(op, apperrors.ErrInvalidArgument, reason)
	}
	if a.CollateralToken.Symbol == "" || a.DebtToken.Symbol == "" {
		return bad("collateral and debt tokens are required")
	}
	if a.CollateralToken.SameAs(a.DebtToken) {
		return bad("collateral and debt tokens must differ")
	}
	if a.Slippage.IsNegative() || a.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return bad(fmt.Sprintf("slippage %s outside [0, 1)", a.Slippage))
	}
	for name, v := range map[string]decimal.Decimal{
		"depositCollateral": a.DepositCollateral,
		"depositDebt":       a.DepositDebt,
		"borrow":            a.Borrow,
		"payback":           a.Payback,
		"withdraw":          a.Withdraw,
	} {
		if v.IsNegative() {
			return bad(fmt.Sprintf("%s must not be negative", name))
		}
	}
	if a.Protocol == core.ProtocolAjna && a.Pool == (common.Address{}) {
		return bad("ajna requests need a pool address")
	}
	return nil
}

// Settings are planner-wide knobs
type Settings struct {
	CloseToMaxLTVOffset decimal.Decimal
	LTVSafetyMargin     decimal.Decimal
	// FlashloanFees is the fee fraction charged per provider
	FlashloanFees map[flashloan.Provider]decimal.Decimal
	// Rules replaces validation.DefaultRules when set
	Rules []validation.Rule
}

// Dependencies are the injected collaborators of every strategy call
type Dependencies struct {
	Quoter       core.ISwapQuoter
	Positions    core.IPositionReader
	ProtocolData core.IProtocolDataReader
	CallFactory  core.ICallFactory
	Fees         *fees.Resolver
	Flashloans   *flashloan.Resolver
	Logger       core.ILogger
	Settings     Settings
	// Registry defaults to DefaultRegistry
	Registry *Registry
}

// Context is Dependencies checked once and ready for use
type Context struct {
	quoter       core.ISwapQuoter
	positions    core.IPositionReader
	protocolData core.IProtocolDataReader
	builder      *operations.Builder
	fees         *fees.Resolver
	flashloans   *flashloan.Resolver
	registry     *Registry
	logger       core.ILogger
	settings     Settings
}

// NewContext validates deps. The position reader is optional and only
// needed by strategies that act on an existing position.
func NewContext(deps Dependencies) (*Context, error) {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingDependency, name)
	}
	switch {
	case deps.Quoter == nil:
		return nil, missing("quoter")
	case deps.ProtocolData == nil:
		return nil, missing("protocol data reader")
	case deps.CallFactory == nil:
		return nil, missing("call factory")
	case deps.Fees == nil:
		return nil, missing("fee resolver")
	case deps.Flashloans == nil:
		return nil, missing("flashloan resolver")
	case deps.Logger == nil:
		return nil, missing("logger")
	}

	settings := deps.Settings
	if !settings.CloseToMaxLTVOffset.IsPositive() {
		settings.CloseToMaxLTVOffset = validation.DefaultCloseToMaxLTVOffset
	}
	if !settings.LTVSafetyMargin.IsPositive() {
		settings.LTVSafetyMargin = flashloan.DefaultSafetyMargin
	}
	if len(settings.Rules) == 0 {
		settings.Rules = validation.DefaultRules()
	}
	registry := deps.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Context{
		quoter:       deps.Quoter,
		positions:    deps.Positions,
		protocolData: deps.ProtocolData,
		builder:      operations.NewBuilder(deps.CallFactory, deps.Logger),
		fees:         deps.Fees,
		flashloans:   deps.Flashloans,
		registry:     registry,
		logger:       deps.Logger.WithField("component", "strategy"),
		settings:     settings,
	}, nil
}

func (c *Context) flashloanFee(provider flashloan.Provider) decimal.Decimal {
	if fee, ok := c.settings.FlashloanFees[provider]; ok {
		return fee
	}
	return decimal.Zero
}
