package quote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"leverage_planner/internal/core"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// StaticQuoter prices swaps from a fixed USD price book, less a spread
type StaticQuoter struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	spread decimal.Decimal
}

// NewStaticQuoter creates a quoter. Spread is a fraction taken off every
// output.
func NewStaticQuoter(pricesUSD map[string]decimal.Decimal, spread decimal.Decimal) *StaticQuoter {
	q := &StaticQuoter{prices: make(map[string]decimal.Decimal, len(pricesUSD)), spread: spread}
	for sym, p := range pricesUSD {
		q.prices[strings.ToUpper(sym)] = p
	}
	return q
}

// Name identifies the quoter in metrics
func (q *StaticQuoter) Name() string { return "static" }

// SetPrice updates one USD price
func (q *StaticQuoter) SetPrice(symbol string, priceUSD decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[strings.ToUpper(symbol)] = priceUSD
}

// Check fails on an empty price book
func (q *StaticQuoter) Check() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.prices) == 0 {
		return fmt.Errorf("%w: empty price book", apperrors.ErrQuoteUnavailable)
	}
	return nil
}

func (q *StaticQuoter) price(symbol string) (decimal.Decimal, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.prices[strings.ToUpper(symbol)]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", apperrors.ErrQuoteUnavailable, symbol)
	}
	return p, nil
}

// GetSwapData implements core.ISwapQuoter
func (q *StaticQuoter) GetSwapData(ctx context.Context, from, to core.Token, amount, slippage decimal.Decimal) (*core.SwapData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewDomainError("quote.GetSwapData", apperrors.ErrInvalidArgument,
			fmt.Sprintf("amount %s must be positive", amount))
	}
	fromPrice, err := q.price(from.Symbol)
	if err != nil {
		return nil, err
	}
	toPrice, err := q.price(to.Symbol)
	if err != nil {
		return nil, err
	}

	gross, err := tokenmath.Div(amount.Mul(fromPrice), toPrice)
	if err != nil {
		return nil, err
	}
	out := tokenmath.Round(gross.Mul(tokenmath.One.Sub(q.spread)), to.Precision, tokenmath.RoundDown)
	return &core.SwapData{
		FromToken:        from,
		ToToken:          to,
		FromTokenAmount:  amount,
		ToTokenAmount:    out,
		MinToTokenAmount: MinOut(out, slippage, to.Precision),
	}, nil
}
