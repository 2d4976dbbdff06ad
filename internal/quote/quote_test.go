package quote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leverage_planner/internal/core"
	"leverage_planner/internal/quote"
	apperrors "leverage_planner/pkg/errors"
	"leverage_planner/pkg/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = core.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18}
	usdc = core.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Precision: 6}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAggregator(url string) *quote.AggregatorClient {
	return quote.NewAggregatorClient(quote.AggregatorConfig{
		BaseURL:    url,
		APIKey:     "secret",
		ChainID:    1,
		From:       common.HexToAddress("0x4000000000000000000000000000000000000004"),
		Timeout:    time.Second,
		MaxRetries: -1,
		RateLimit:  100,
		RateBurst:  10,
	}, logging.NewNop())
}

func TestAggregatorClient_GetSwapData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.0/1/swap", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "1500000000", q.Get("amount"))
		assert.Equal(t, "1", q.Get("slippage"))
		assert.Equal(t, usdc.Address.Hex(), q.Get("src"))
		assert.Equal(t, weth.Address.Hex(), q.Get("dst"))
		_, _ = w.Write([]byte(`{"dstAmount":"750000000000000000","tx":{"data":"0xdeadbeef"}}`))
	}))
	defer srv.Close()

	sd, err := newAggregator(srv.URL).GetSwapData(context.Background(), usdc, weth, d("1500"), d("0.01"))
	require.NoError(t, err)
	assert.True(t, sd.FromTokenAmount.Equal(d("1500")))
	assert.True(t, sd.ToTokenAmount.Equal(d("0.75")))
	assert.True(t, sd.MinToTokenAmount.Equal(d("0.7425")))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sd.ExchangeCalldata)

	price, err := sd.MarketPrice()
	require.NoError(t, err)
	assert.True(t, price.Equal(d("2000")))
}

func TestAggregatorClient_TruncatesToBaseUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1234567", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte(`{"toAmount":"1000"}`))
	}))
	defer srv.Close()

	sd, err := newAggregator(srv.URL).GetSwapData(context.Background(), usdc, weth, d("1.2345678"), d("0"))
	require.NoError(t, err)
	assert.True(t, sd.FromTokenAmount.Equal(d("1.234567")))
	assert.Empty(t, sd.ExchangeCalldata)
}

func TestAggregatorClient_Errors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Query().Get("amount") {
		case "1000000":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"description":"insufficient liquidity"}`))
		default:
			_, _ = w.Write([]byte(`{"dstAmount":"not-a-number"}`))
		}
	}))
	defer srv.Close()
	c := newAggregator(srv.URL)

	_, err := c.GetSwapData(context.Background(), usdc, weth, d("1"), d("0.01"))
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)

	_, err = c.GetSwapData(context.Background(), usdc, weth, d("2"), d("0.01"))
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)

	_, err = c.GetSwapData(context.Background(), usdc, weth, d("0"), d("0.01"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = c.GetSwapData(context.Background(), usdc, weth, d("0.0000001"), d("0.01"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "below one base unit")

	_, err = c.GetSwapData(context.Background(), usdc, weth, d("1"), d("1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	assert.EqualValues(t, 2, hits.Load(), "invalid input never reaches the server")
	assert.Equal(t, "aggregator", c.Name())
}

func TestStaticQuoter(t *testing.T) {
	q := quote.NewStaticQuoter(map[string]decimal.Decimal{"weth": d("2000"), "USDC": d("1")}, d("0.001"))

	sd, err := q.GetSwapData(context.Background(), weth, usdc, d("1.5"), d("0.01"))
	require.NoError(t, err)
	assert.True(t, sd.ToTokenAmount.Equal(d("2997")))
	assert.True(t, sd.MinToTokenAmount.Equal(d("2967.03")))

	q.SetPrice("WETH", d("3000"))
	sd, err = q.GetSwapData(context.Background(), usdc, weth, d("3000"), d("0"))
	require.NoError(t, err)
	assert.True(t, sd.ToTokenAmount.Equal(d("0.999")))

	_, err = q.GetSwapData(context.Background(), weth, core.Token{Symbol: "WBTC", Precision: 8}, d("1"), d("0"))
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.GetSwapData(ctx, weth, usdc, d("1"), d("0"))
	assert.ErrorIs(t, err, context.Canceled)
}
