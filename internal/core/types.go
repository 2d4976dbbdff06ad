package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Protocol tags a supported lending protocol
type Protocol string

const (
	ProtocolAaveV2 Protocol = "aave_v2"
	ProtocolAaveV3 Protocol = "aave_v3"
	ProtocolSpark  Protocol = "spark"
	ProtocolMaker  Protocol = "maker"
	ProtocolAjna   Protocol = "ajna"
)

// Network identifies the chain a plan targets
type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkOptimism Network = "optimism"
	NetworkArbitrum Network = "arbitrum"
	NetworkBase     Network = "base"
)

// ParseProtocol normalizes a protocol tag
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProtocolAaveV2, ProtocolAaveV3, ProtocolSpark, ProtocolMaker, ProtocolAjna:
		return p, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// ParseNetwork normalizes a network name
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	switch n {
	case NetworkMainnet, NetworkOptimism, NetworkArbitrum, NetworkBase:
		return n, nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}

// Token describes an ERC-20 asset
type Token struct {
	Symbol    string         `json:"symbol" yaml:"symbol"`
	Address   common.Address `json:"address" yaml:"address"`
	Precision int32          `json:"precision" yaml:"precision"`
}

// IsEth reports whether the token is native ETH or its wrapped form
func (t Token) IsEth() bool {
	s := strings.ToUpper(t.Symbol)
	return s == "ETH" || s == "WETH"
}

// SameAs compares tokens by symbol and address
func (t Token) SameAs(other Token) bool {
	return strings.EqualFold(t.Symbol, other.Symbol) && t.Address == other.Address
}

// CollectFeeFrom selects the swap leg the protocol fee is taken from
type CollectFeeFrom string

const (
	CollectFeeFromSource CollectFeeFrom = "sourceToken"
	CollectFeeFromTarget CollectFeeFrom = "targetToken"
)

// SwapData is an immutable quote snapshot
type SwapData struct {
	FromToken        Token           `json:"fromToken"`
	ToToken          Token           `json:"toToken"`
	FromTokenAmount  decimal.Decimal `json:"fromTokenAmount"`
	ToTokenAmount    decimal.Decimal `json:"toTokenAmount"`
	MinToTokenAmount decimal.Decimal `json:"minToTokenAmount"`
	ExchangeCalldata []byte          `json:"exchangeCalldata,omitempty"`
}

// MarketPrice returns the quoted price of ToToken denominated in FromToken.
func (s SwapData) MarketPrice() (decimal.Decimal, error) {
	if s.ToTokenAmount.IsZero() {
		return decimal.Zero, fmt.Errorf("quote %s->%s returned zero output", s.FromToken.Symbol, s.ToToken.Symbol)
	}
	return s.FromTokenAmount.DivRound(s.ToTokenAmount, 36), nil
}

// OperationType names one kind of executor call
type OperationType string

// PositionQuery identifies a position for the injected readers
type PositionQuery struct {
	Protocol        Protocol       `json:"protocol"`
	Network         Network        `json:"network"`
	Proxy           common.Address `json:"proxy"`
	User            common.Address `json:"user"`
	CollateralToken Token          `json:"collateralToken"`
	DebtToken       Token          `json:"debtToken"`
	VaultID         uint64         `json:"vaultId,omitempty"`
	Pool            common.Address `json:"pool,omitempty"`
}

// ProtocolData is an on-chain state snapshot for one collateral/debt pair.
// Oracle prices are USD denominated.
type ProtocolData struct {
	CollateralPriceUSD     decimal.Decimal `json:"collateralPriceUsd"`
	DebtPriceUSD           decimal.Decimal `json:"debtPriceUsd"`
	FlashloanTokenPriceUSD decimal.Decimal `json:"flashloanTokenPriceUsd"`

	MaxLoanToValue       decimal.Decimal `json:"maxLoanToValue"`
	LiquidationThreshold decimal.Decimal `json:"liquidationThreshold"`
	DustLimit            decimal.Decimal `json:"dustLimit"`

	// FlashloanTokenMaxLoanToValue applies when the flashloaned token is
	// deposited as temporary collateral.
	FlashloanTokenMaxLoanToValue decimal.Decimal `json:"flashloanTokenMaxLoanToValue"`

	// AvailableLiquidity is the debt-token liquidity that can be borrowed.
	// A zero value with HasLiquidityData=false means unknown.
	AvailableLiquidity decimal.Decimal `json:"availableLiquidity"`
	HasLiquidityData   bool            `json:"hasLiquidityData"`
	// LiquidityBuffer is the fraction of AvailableLiquidity held back by the
	// protocol's danger threshold. Borrows may only use the rest.
	LiquidityBuffer decimal.Decimal `json:"liquidityBuffer"`

	EModeCategory uint8 `json:"eModeCategory"`

	// Ajna pool state
	LowestUtilizedPrice   decimal.Decimal `json:"lowestUtilizedPrice"`
	HighestThresholdPrice decimal.Decimal `json:"highestThresholdPrice"`

	// Maker ilk state
	Ilk         string          `json:"ilk,omitempty"`
	DebtCeiling decimal.Decimal `json:"debtCeiling"`
	DebtTotal   decimal.Decimal `json:"debtTotal"`
}

// OraclePrice returns collateral priced in debt tokens.
func (d ProtocolData) OraclePrice() (decimal.Decimal, error) {
	if !d.DebtPriceUSD.IsPositive() || !d.CollateralPriceUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("oracle prices must be positive (collateral=%s debt=%s)", d.CollateralPriceUSD, d.DebtPriceUSD)
	}
	return d.CollateralPriceUSD.DivRound(d.DebtPriceUSD, 36), nil
}

// OracleFlashloanToDebt returns the flashloan token priced in debt tokens.
func (d ProtocolData) OracleFlashloanToDebt() (decimal.Decimal, error) {
	if !d.DebtPriceUSD.IsPositive() || !d.FlashloanTokenPriceUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("oracle prices must be positive (flashloan=%s debt=%s)", d.FlashloanTokenPriceUSD, d.DebtPriceUSD)
	}
	return d.FlashloanTokenPriceUSD.DivRound(d.DebtPriceUSD, 36), nil
}
