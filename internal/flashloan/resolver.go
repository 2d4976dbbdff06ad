package flashloan

import (
	"fmt"

	"leverage_planner/internal/core"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// DefaultSafetyMargin shaves the flashloan token max LTV when the
// flashloaned token is posted as temporary collateral.
var DefaultSafetyMargin = decimal.RequireFromString("0.001")

// Selection is the venue and token chosen for one plan
type Selection struct {
	Provider Provider   `json:"provider"`
	Token    core.Token `json:"token"`
}

// AmountParams carries the market data needed to size a flashloan whose
// token differs from the debt token.
type AmountParams struct {
	Protocol core.Protocol
	// OracleFLtoDebtToken prices one flashloan token in debt tokens
	OracleFLtoDebtToken decimal.Decimal
	// MaxLoanToValue of the flashloan token as collateral
	MaxLoanToValue decimal.Decimal
	SafetyMargin   decimal.Decimal
}

// Resolver resolves venues and amounts against one Table
type Resolver struct {
	table *Table
}

// NewResolver creates a Resolver
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Table returns the underlying table
func (r *Resolver) Table() *Table { return r.table }

// Resolve picks the flashloan venue for a network and protocol
func (r *Resolver) Resolve(network core.Network, protocol core.Protocol, debtToken core.Token) (Selection, error) {
	e, ok := r.table.lookup(network, protocol)
	if !ok {
		return Selection{}, apperrors.NewDomainError("flashloan.Resolve", apperrors.ErrUnsupportedNetwork,
			fmt.Sprintf("no flashloan venue for %s on %s", protocol, network))
	}
	token := e.Token
	if e.UseDebtToken {
		token = debtToken
	}
	return Selection{Provider: e.Provider, Token: token}, nil
}

// RequiresPrecisionAdjustment reports a decimals mismatch between the
// flashloaned token and the debt token.
func RequiresPrecisionAdjustment(sel Selection, debtToken core.Token) bool {
	return sel.Token.Precision != debtToken.Precision
}

// UsesSwapAmount reports whether the flashloan equals the debt delta as is
func (r *Resolver) UsesSwapAmount(sel Selection, debtToken core.Token, protocol core.Protocol) bool {
	return sel.Token.SameAs(debtToken) || r.table.UsesSwapAmount(protocol, sel.Provider)
}

// Amount sizes the flashloan, in flashloan token units, that covers
// flashloanAmount debt tokens. flashloanAmount is the debt-token part of the
// swap input, so a user debt deposit is not borrowed. The result rounds up
// since the user owes it.
func (r *Resolver) Amount(sel Selection, debtToken core.Token, flashloanAmount decimal.Decimal, params AmountParams) (decimal.Decimal, error) {
	if flashloanAmount.IsNegative() {
		return decimal.Zero, apperrors.NewDomainError("flashloan.Amount", apperrors.ErrInvalidArgument,
			fmt.Sprintf("negative flashloan amount %s", flashloanAmount))
	}

	if r.UsesSwapAmount(sel, debtToken, params.Protocol) {
		if RequiresPrecisionAdjustment(sel, debtToken) {
			return tokenmath.AdjustPrecision(flashloanAmount, debtToken.Precision, sel.Token.Precision, tokenmath.RoundUp), nil
		}
		return tokenmath.Round(flashloanAmount, sel.Token.Precision, tokenmath.RoundUp), nil
	}

	if !params.OracleFLtoDebtToken.IsPositive() {
		return decimal.Zero, apperrors.NewDomainError("flashloan.Amount", apperrors.ErrDegenerateMath,
			"flashloan token oracle price must be positive")
	}
	margin := params.SafetyMargin
	if margin.IsZero() {
		margin = DefaultSafetyMargin
	}
	effectiveLTV := params.MaxLoanToValue.Mul(tokenmath.One.Sub(margin))
	if !effectiveLTV.IsPositive() {
		return decimal.Zero, apperrors.NewDomainError("flashloan.Amount", apperrors.ErrDegenerateMath,
			fmt.Sprintf("flashloan token max LTV %s leaves no borrowing power", params.MaxLoanToValue))
	}

	inFlashloanToken, err := tokenmath.Div(flashloanAmount, params.OracleFLtoDebtToken)
	if err != nil {
		return decimal.Zero, err
	}
	grossed, err := tokenmath.Div(inFlashloanToken, effectiveLTV)
	if err != nil {
		return decimal.Zero, err
	}
	if RequiresPrecisionAdjustment(sel, debtToken) {
		grossed = tokenmath.AdjustPrecision(grossed, debtToken.Precision, sel.Token.Precision, tokenmath.RoundUp)
	}
	return tokenmath.Round(grossed, sel.Token.Precision, tokenmath.RoundUp), nil
}
