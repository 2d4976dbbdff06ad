package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"

	"github.com/shopspring/decimal"
)

// FixedQuoter implements core.ISwapQuoter from a table of exchange rates
type FixedQuoter struct {
	mu       sync.Mutex
	rates    map[string]decimal.Decimal
	requests int
	err      error
}

func NewFixedQuoter() *FixedQuoter {
	return &FixedQuoter{rates: make(map[string]decimal.Decimal)}
}

func pairKey(from, to core.Token) string {
	return strings.ToUpper(from.Symbol) + ":" + strings.ToUpper(to.Symbol)
}

// SetRate sets how many units of to one unit of from buys
func (q *FixedQuoter) SetRate(from, to core.Token, rate decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rates[pairKey(from, to)] = rate
}

// SetError makes every following quote fail with err
func (q *FixedQuoter) SetError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

// Requests returns how many quotes were asked for
func (q *FixedQuoter) Requests() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requests
}

func (q *FixedQuoter) GetSwapData(ctx context.Context, from, to core.Token, amount, slippage decimal.Decimal) (*core.SwapData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests++

	if q.err != nil {
		return nil, q.err
	}
	rate, ok := q.rates[pairKey(from, to)]
	if !ok {
		inverse, ok := q.rates[pairKey(to, from)]
		if !ok || inverse.IsZero() {
			return nil, fmt.Errorf("no rate for %s->%s", from.Symbol, to.Symbol)
		}
		rate = decimal.NewFromInt(1).DivRound(inverse, 36)
	}

	out := amount.Mul(rate).RoundDown(to.Precision)
	minOut := out.Mul(decimal.NewFromInt(1).Sub(slippage)).RoundDown(to.Precision)
	return &core.SwapData{
		FromToken:        from,
		ToToken:          to,
		FromTokenAmount:  amount,
		ToTokenAmount:    out,
		MinToTokenAmount: minOut,
		ExchangeCalldata: []byte("0x" + from.Symbol + to.Symbol),
	}, nil
}

// StaticPositionReader implements core.IPositionReader with a fixed position
type StaticPositionReader struct {
	Position position.Position
	Err      error
	Queries  []core.PositionQuery
	mu       sync.Mutex
}

func (r *StaticPositionReader) GetCurrentPosition(ctx context.Context, query core.PositionQuery) (position.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = append(r.Queries, query)
	if r.Err != nil {
		return position.Position{}, r.Err
	}
	return r.Position, nil
}

// StaticProtocolDataReader implements core.IProtocolDataReader with a fixed
// snapshot.
type StaticProtocolDataReader struct {
	Data core.ProtocolData
	Err  error
}

func (r *StaticProtocolDataReader) GetProtocolData(ctx context.Context, query core.PositionQuery) (*core.ProtocolData, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	data := r.Data
	return &data, nil
}
