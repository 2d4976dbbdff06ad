// Package quote provides swap quoters: a DEX aggregator client and a static
// price book for offline planning.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"leverage_planner/internal/core"
	apperrors "leverage_planner/pkg/errors"
	pkghttp "leverage_planner/pkg/http"
	"leverage_planner/pkg/tokenmath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// AggregatorConfig configures an AggregatorClient
type AggregatorConfig struct {
	BaseURL   string
	APIKey    string
	ChainID   uint64
	Protocols string
	// From is the account the aggregator builds calldata for, usually the
	// operation executor.
	From common.Address

	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
}

// AggregatorClient quotes swaps against a 1inch-style /swap endpoint
type AggregatorClient struct {
	http    *pkghttp.Client
	cfg     AggregatorConfig
	limiter *rate.Limiter
	logger  core.ILogger
}

type swapResponse struct {
	DstAmount string `json:"dstAmount"`
	// older API versions
	ToAmount string `json:"toAmount"`
	Tx       struct {
		Data string `json:"data"`
	} `json:"tx"`
}

// NewAggregatorClient creates a rate limited aggregator client
func NewAggregatorClient(cfg AggregatorConfig, logger core.ILogger) *AggregatorClient {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &AggregatorClient{
		http: pkghttp.NewClientWithOptions(cfg.BaseURL, pkghttp.BearerSigner{Token: cfg.APIKey}, pkghttp.Options{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.WithField("component", "aggregator_quoter"),
	}
}

// Name identifies the quoter in metrics
func (c *AggregatorClient) Name() string { return "aggregator" }

// Check reports the upstream circuit breaker state
func (c *AggregatorClient) Check() error { return c.http.Check() }

// GetSwapData implements core.ISwapQuoter. Slippage is a fraction; the API
// takes a percentage.
func (c *AggregatorClient) GetSwapData(ctx context.Context, from, to core.Token, amount, slippage decimal.Decimal) (*core.SwapData, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewDomainError("quote.GetSwapData", apperrors.ErrInvalidArgument,
			fmt.Sprintf("amount %s must be positive", amount))
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(tokenmath.One) {
		return nil, apperrors.NewDomainError("quote.GetSwapData", apperrors.ErrInvalidArgument,
			fmt.Sprintf("slippage %s out of range", slippage))
	}
	units, err := tokenmath.ToBaseUnits(amount, from.Precision, tokenmath.RoundDown)
	if err != nil {
		return nil, err
	}
	if units.IsZero() {
		return nil, apperrors.NewDomainError("quote.GetSwapData", apperrors.ErrInvalidArgument,
			fmt.Sprintf("amount %s is below one %s base unit", amount, from.Symbol))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"src":              from.Address.Hex(),
		"dst":              to.Address.Hex(),
		"amount":           units.Dec(),
		"from":             c.cfg.From.Hex(),
		"slippage":         slippage.Mul(decimal.NewFromInt(100)).String(),
		"disableEstimate":  "true",
		"allowPartialFill": "false",
	}
	if c.cfg.Protocols != "" {
		params["protocols"] = c.cfg.Protocols
	}
	body, err := c.http.Get(ctx, "/swap/v6.0/"+strconv.FormatUint(c.cfg.ChainID, 10)+"/swap", params)
	if err != nil {
		c.logger.Warn("Quote request failed", "from", from.Symbol, "to", to.Symbol, "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrQuoteUnavailable, err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperrors.ErrQuoteUnavailable, err)
	}
	raw := resp.DstAmount
	if raw == "" {
		raw = resp.ToAmount
	}
	out, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad output amount %q", apperrors.ErrQuoteUnavailable, raw)
	}
	var calldata []byte
	if resp.Tx.Data != "" {
		calldata, err = hexutil.Decode(resp.Tx.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: bad calldata: %v", apperrors.ErrQuoteUnavailable, err)
		}
	}

	toAmount := tokenmath.FromBaseUnits(out, to.Precision)
	sd := &core.SwapData{
		FromToken:        from,
		ToToken:          to,
		FromTokenAmount:  tokenmath.FromBaseUnits(units, from.Precision),
		ToTokenAmount:    toAmount,
		MinToTokenAmount: MinOut(toAmount, slippage, to.Precision),
		ExchangeCalldata: calldata,
	}
	c.logger.Debug("Quoted swap",
		"from", from.Symbol,
		"to", to.Symbol,
		"amount", sd.FromTokenAmount.String(),
		"out", sd.ToTokenAmount.String())
	return sd, nil
}

// MinOut applies slippage to a quoted output, rounding down
func MinOut(out, slippage decimal.Decimal, precision int32) decimal.Decimal {
	return tokenmath.Round(out.Mul(tokenmath.One.Sub(slippage)), precision, tokenmath.RoundDown)
}
