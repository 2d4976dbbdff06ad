// Package market serves protocol snapshots and positions from an offline
// market description, for planning without a chain connection.
package market

import (
	"context"
	"fmt"
	"strings"

	"leverage_planner/internal/config"
	"leverage_planner/internal/core"
	"leverage_planner/internal/domain/position"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// Book implements core.IProtocolDataReader and core.IPositionReader
type Book struct {
	cfg    config.MarketConfig
	logger core.ILogger
}

// NewBook creates a Book over a validated market configuration
func NewBook(cfg config.MarketConfig, logger core.ILogger) *Book {
	return &Book{
		cfg:    cfg,
		logger: logger.WithField("component", "market_book"),
	}
}

func (b *Book) price(symbol string) (decimal.Decimal, error) {
	p, ok := b.cfg.Price(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no USD price for %s", apperrors.ErrNotFound, symbol)
	}
	return p, nil
}

func (b *Book) pair(q core.PositionQuery) (config.PairConfig, error) {
	for _, p := range b.cfg.Pairs {
		if core.Protocol(strings.ToLower(p.Protocol)) == q.Protocol &&
			core.Network(strings.ToLower(p.Network)) == q.Network &&
			strings.EqualFold(p.Collateral, q.CollateralToken.Symbol) &&
			strings.EqualFold(p.Debt, q.DebtToken.Symbol) {
			return p, nil
		}
	}
	return config.PairConfig{}, fmt.Errorf("%w: no %s %s/%s market on %s", apperrors.ErrNotFound,
		q.Protocol, q.CollateralToken.Symbol, q.DebtToken.Symbol, q.Network)
}

// GetProtocolData implements core.IProtocolDataReader
func (b *Book) GetProtocolData(ctx context.Context, q core.PositionQuery) (*core.ProtocolData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.pair(q)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := b.price(p.Collateral)
	if err != nil {
		return nil, err
	}
	debtPrice, err := b.price(p.Debt)
	if err != nil {
		return nil, err
	}
	flSymbol := p.FlashloanToken
	if flSymbol == "" {
		flSymbol = p.Debt
	}
	flPrice, err := b.price(flSymbol)
	if err != nil {
		return nil, err
	}
	flMaxLTV := p.FlashloanTokenMaxLTV
	if flMaxLTV.IsZero() {
		flMaxLTV = p.MaxLTV
	}

	data := &core.ProtocolData{
		CollateralPriceUSD:           collateralPrice,
		DebtPriceUSD:                 debtPrice,
		FlashloanTokenPriceUSD:       flPrice,
		MaxLoanToValue:               p.MaxLTV,
		LiquidationThreshold:         p.LiquidationThreshold,
		DustLimit:                    p.DustLimit,
		FlashloanTokenMaxLoanToValue: flMaxLTV,
		EModeCategory:                p.EModeCategory,
		Ilk:                          p.Ilk,
		DebtCeiling:                  p.DebtCeiling,
		DebtTotal:                    p.DebtTotal,
		LowestUtilizedPrice:          p.LowestUtilizedPrice,
		HighestThresholdPrice:        p.HighestThresholdPrice,
	}
	if p.AvailableLiquidity != nil {
		data.AvailableLiquidity = *p.AvailableLiquidity
		data.LiquidityBuffer = p.LiquidityBuffer
		data.HasLiquidityData = true
	}
	b.logger.Debug("Served protocol data",
		"protocol", string(q.Protocol),
		"pair", p.Collateral+"/"+p.Debt)
	return data, nil
}

// GetCurrentPosition implements core.IPositionReader. Positions match on
// protocol, proxy and pair, and on vault id when the query carries one.
func (b *Book) GetCurrentPosition(ctx context.Context, q core.PositionQuery) (position.Position, error) {
	if err := ctx.Err(); err != nil {
		return position.Position{}, err
	}
	for _, pos := range b.cfg.Positions {
		if core.Protocol(strings.ToLower(pos.Protocol)) != q.Protocol || pos.Proxy != q.Proxy {
			continue
		}
		if pos.Network != "" && core.Network(strings.ToLower(pos.Network)) != q.Network {
			continue
		}
		if !strings.EqualFold(pos.Collateral, q.CollateralToken.Symbol) || !strings.EqualFold(pos.Debt, q.DebtToken.Symbol) {
			continue
		}
		if q.VaultID != 0 && pos.VaultID != q.VaultID {
			continue
		}

		var (
			oracle   decimal.Decimal
			category position.Category
		)
		if p, err := b.pair(q); err == nil {
			category = position.Category{
				MaxLoanToValue:       p.MaxLTV,
				LiquidationThreshold: p.LiquidationThreshold,
				DustLimit:            p.DustLimit,
			}
			cp, cerr := b.price(p.Collateral)
			dp, derr := b.price(p.Debt)
			if cerr == nil && derr == nil {
				oracle = cp.DivRound(dp, tokenmath.DivScale)
			}
		}
		return position.New(
			position.NewBalance(pos.Amounts.Collateral, q.CollateralToken.Symbol, q.CollateralToken.Precision),
			position.NewBalance(pos.Amounts.Debt, q.DebtToken.Symbol, q.DebtToken.Precision),
			oracle, category), nil
	}
	return position.Position{}, fmt.Errorf("%w: no %s position for %s", apperrors.ErrNotFound, q.Protocol, q.Proxy.Hex())
}
