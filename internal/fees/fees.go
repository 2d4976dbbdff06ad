package fees

import (
	"leverage_planner/internal/core"
	"leverage_planner/pkg/tokenmath"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DefaultEstimateInflator pads fees estimated from a quoted output so slippage
// between quote and execution does not under-charge.
var DefaultEstimateInflator = decimal.RequireFromString("0.2")

// Flags describe the position the swap belongs to
type Flags struct {
	IsIncreasingRisk bool
	IsEarnPosition   bool
}

// Resolver answers fee questions against one Table
type Resolver struct {
	table    *Table
	inflator decimal.Decimal
}

// NewResolver creates a Resolver. A non-positive inflator falls back to
// DefaultEstimateInflator.
func NewResolver(table *Table, inflator decimal.Decimal) *Resolver {
	if !inflator.IsPositive() {
		inflator = DefaultEstimateInflator
	}
	return &Resolver{table: table, inflator: inflator}
}

// Table returns the underlying table
func (r *Resolver) Table() *Table { return r.table }

// Inflator returns the fee estimate inflator
func (r *Resolver) Inflator() decimal.Decimal { return r.inflator }

// FeeRate returns the fee fraction for a swap from source to target
func (r *Resolver) FeeRate(source, target string, flags Flags) decimal.Decimal {
	if flags.IsIncreasingRisk && flags.IsEarnPosition {
		return decimal.Zero
	}
	if r.table.isCorrelated(source, target) {
		return r.table.reducedRate
	}
	return r.table.defaultRate
}

// CollectFeeFrom picks the swap leg the fee is taken from. The token ranked
// higher in the accepted list wins. With neither accepted the fee comes off
// the source.
func (r *Resolver) CollectFeeFrom(source, target string) core.CollectFeeFrom {
	si, sok := r.table.acceptedIndex(source)
	ti, tok := r.table.acceptedIndex(target)
	switch {
	case !sok && !tok:
		return core.CollectFeeFromSource
	case !sok:
		return core.CollectFeeFromTarget
	case !tok:
		return core.CollectFeeFromSource
	case si <= ti:
		return core.CollectFeeFromSource
	default:
		return core.CollectFeeFromTarget
	}
}

// Fee is a computed swap fee
type Fee struct {
	Rate        decimal.Decimal     `json:"rate"`
	Amount      decimal.Decimal     `json:"amount"`
	Symbol      string              `json:"symbol"`
	Precision   int32               `json:"precision"`
	CollectFrom core.CollectFeeFrom `json:"collectFrom"`
}

// BaseUnits returns the fee as an on-chain integer. Amount is already
// rounded to Precision.
func (f Fee) BaseUnits() (*uint256.Int, error) {
	return tokenmath.ToBaseUnits(f.Amount, f.Precision, tokenmath.RoundDown)
}

// CalculateFee applies rate to a known amount, rounding down to precision
func CalculateFee(amount, rate decimal.Decimal, precision int32) decimal.Decimal {
	return tokenmath.Round(amount.Mul(rate), precision, tokenmath.RoundDown)
}

// EstimateFeeOnQuotedOutput applies rate to a quoted output padded by
// inflator, rounding up to precision.
func EstimateFeeOnQuotedOutput(quotedOut, rate, inflator decimal.Decimal, precision int32) decimal.Decimal {
	padded := quotedOut.Mul(rate).Mul(tokenmath.One.Add(inflator))
	return tokenmath.Round(padded, precision, tokenmath.RoundUp)
}

// SwapFee computes the fee for a swap of fromAmount source tokens quoted at
// quotedToAmount target tokens.
func (r *Resolver) SwapFee(source, target core.Token, fromAmount, quotedToAmount decimal.Decimal, flags Flags) Fee {
	rate := r.FeeRate(source.Symbol, target.Symbol, flags)
	from := r.CollectFeeFrom(source.Symbol, target.Symbol)
	if from == core.CollectFeeFromSource {
		return Fee{
			Rate:        rate,
			Amount:      CalculateFee(fromAmount, rate, source.Precision),
			Symbol:      source.Symbol,
			Precision:   source.Precision,
			CollectFrom: from,
		}
	}
	return Fee{
		Rate:        rate,
		Amount:      EstimateFeeOnQuotedOutput(quotedToAmount, rate, r.inflator, target.Precision),
		Symbol:      target.Symbol,
		Precision:   target.Precision,
		CollectFrom: from,
	}
}
