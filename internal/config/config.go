// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"leverage_planner/internal/core"
	"leverage_planner/pkg/tokenmath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Planner     PlannerConfig     `yaml:"planner"`
	Quote       QuoteConfig       `yaml:"quote"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Market      MarketConfig      `yaml:"market"`

	// Fees and Flashloan replace the embedded default tables when set
	Fees      *FeeTableConfig       `yaml:"fees,omitempty"`
	Flashloan *FlashloanTableConfig `yaml:"flashloan,omitempty"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	MetricsPort   int    `yaml:"metrics_port"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	PrettyPrint   bool   `yaml:"pretty_print"`
}

// PlannerConfig holds the planner-wide numeric knobs
type PlannerConfig struct {
	DefaultSlippage     decimal.Decimal            `yaml:"default_slippage"`
	CloseToMaxLTVOffset decimal.Decimal            `yaml:"close_to_max_ltv_offset"`
	FeeEstimateInflator decimal.Decimal            `yaml:"fee_estimate_inflator"`
	LTVSafetyMargin     decimal.Decimal            `yaml:"ltv_safety_margin"`
	FlashloanFees       map[string]decimal.Decimal `yaml:"flashloan_fees"`
}

// QuoteConfig selects and configures the swap quoter
type QuoteConfig struct {
	Provider   string           `yaml:"provider"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Static     StaticConfig     `yaml:"static"`
}

// AggregatorConfig configures the HTTP aggregator quoter
type AggregatorConfig struct {
	BaseURL    string         `yaml:"base_url"`
	APIKey     Secret         `yaml:"api_key"`
	ChainID    uint64         `yaml:"chain_id"`
	Protocols  string         `yaml:"protocols"`
	From       common.Address `yaml:"from"`
	Timeout    time.Duration  `yaml:"timeout"`
	MaxRetries int            `yaml:"max_retries"`
	RateLimit  float64        `yaml:"rate_limit"`
	RateBurst  int            `yaml:"rate_burst"`
}

// StaticConfig prices swaps from market.prices_usd less a spread
type StaticConfig struct {
	Spread decimal.Decimal `yaml:"spread"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	BatchPoolSize   int `yaml:"batch_pool_size"`
	BatchPoolBuffer int `yaml:"batch_pool_buffer"`
}

// MarketConfig is the offline market: oracle prices, protocol parameters
// per pair and known positions.
type MarketConfig struct {
	PricesUSD map[string]decimal.Decimal `yaml:"prices_usd"`
	Pairs     []PairConfig               `yaml:"pairs"`
	Positions []PositionConfig           `yaml:"positions"`
}

// PairConfig is the protocol state of one collateral/debt pair
type PairConfig struct {
	Protocol   string `yaml:"protocol"`
	Network    string `yaml:"network"`
	Collateral string `yaml:"collateral"`
	Debt       string `yaml:"debt"`

	MaxLTV               decimal.Decimal  `yaml:"max_ltv"`
	LiquidationThreshold decimal.Decimal  `yaml:"liquidation_threshold"`
	DustLimit            decimal.Decimal  `yaml:"dust_limit"`
	FlashloanToken       string           `yaml:"flashloan_token"`
	FlashloanTokenMaxLTV decimal.Decimal  `yaml:"flashloan_token_max_ltv"`
	AvailableLiquidity   *decimal.Decimal `yaml:"available_liquidity"`
	LiquidityBuffer      decimal.Decimal  `yaml:"liquidity_buffer"`
	EModeCategory        uint8            `yaml:"emode_category"`

	Ilk         string          `yaml:"ilk"`
	DebtCeiling decimal.Decimal `yaml:"debt_ceiling"`
	DebtTotal   decimal.Decimal `yaml:"debt_total"`

	LowestUtilizedPrice   decimal.Decimal `yaml:"lowest_utilized_price"`
	HighestThresholdPrice decimal.Decimal `yaml:"highest_threshold_price"`
}

// PositionConfig is a known position, matched by protocol, proxy and pair
type PositionConfig struct {
	Protocol   string          `yaml:"protocol"`
	Network    string          `yaml:"network"`
	Proxy      common.Address  `yaml:"proxy"`
	Collateral string          `yaml:"collateral"`
	Debt       string          `yaml:"debt"`
	Amounts    PositionAmounts `yaml:"amounts"`
	VaultID    uint64          `yaml:"vault_id"`
}

// PositionAmounts are token units
type PositionAmounts struct {
	Collateral decimal.Decimal `yaml:"collateral"`
	Debt       decimal.Decimal `yaml:"debt"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Missing keys keep their DefaultConfig values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	for _, check := range []func() error{
		c.validateSystemConfig,
		c.validateTelemetryConfig,
		c.validatePlannerConfig,
		c.validateQuoteConfig,
		c.validateConcurrencyConfig,
		c.validateMarketConfig,
		c.validateTables,
	} {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateTelemetryConfig() error {
	if c.Telemetry.ServiceName == "" {
		return ValidationError{Field: "telemetry.service_name", Message: "service name is required"}
	}
	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort <= 0 || c.Telemetry.MetricsPort > 65535) {
		return ValidationError{
			Field:   "telemetry.metrics_port",
			Value:   c.Telemetry.MetricsPort,
			Message: "must be a valid port when metrics are enabled",
		}
	}
	return nil
}

func (c *Config) validatePlannerConfig() error {
	p := c.Planner
	fractions := []struct {
		field string
		value decimal.Decimal
	}{
		{"planner.default_slippage", p.DefaultSlippage},
		{"planner.close_to_max_ltv_offset", p.CloseToMaxLTVOffset},
		{"planner.ltv_safety_margin", p.LTVSafetyMargin},
	}
	for _, f := range fractions {
		if f.value.IsNegative() || f.value.GreaterThanOrEqual(tokenmath.One) {
			return ValidationError{Field: f.field, Value: f.value, Message: "must be within [0, 1)"}
		}
	}
	if p.FeeEstimateInflator.IsNegative() {
		return ValidationError{Field: "planner.fee_estimate_inflator", Value: p.FeeEstimateInflator, Message: "must not be negative"}
	}
	for provider, fee := range p.FlashloanFees {
		if fee.IsNegative() || fee.GreaterThanOrEqual(tokenmath.One) {
			return ValidationError{Field: "planner.flashloan_fees." + provider, Value: fee, Message: "must be within [0, 1)"}
		}
	}
	return nil
}

func (c *Config) validateQuoteConfig() error {
	switch c.Quote.Provider {
	case "static":
		if len(c.Market.PricesUSD) == 0 {
			return ValidationError{Field: "market.prices_usd", Message: "static quoting needs at least one price"}
		}
		s := c.Quote.Static.Spread
		if s.IsNegative() || s.GreaterThanOrEqual(tokenmath.One) {
			return ValidationError{Field: "quote.static.spread", Value: s, Message: "must be within [0, 1)"}
		}
	case "aggregator":
		a := c.Quote.Aggregator
		if !strings.HasPrefix(a.BaseURL, "http://") && !strings.HasPrefix(a.BaseURL, "https://") {
			return ValidationError{Field: "quote.aggregator.base_url", Value: a.BaseURL, Message: "must be an http(s) URL"}
		}
		if a.ChainID == 0 {
			return ValidationError{Field: "quote.aggregator.chain_id", Message: "chain id is required"}
		}
	default:
		return ValidationError{Field: "quote.provider", Value: c.Quote.Provider, Message: "must be one of: static, aggregator"}
	}
	return nil
}

func (c *Config) validateConcurrencyConfig() error {
	if c.Concurrency.BatchPoolSize < 1 || c.Concurrency.BatchPoolSize > 256 {
		return ValidationError{Field: "concurrency.batch_pool_size", Value: c.Concurrency.BatchPoolSize, Message: "must be within [1, 256]"}
	}
	if c.Concurrency.BatchPoolBuffer < 0 {
		return ValidationError{Field: "concurrency.batch_pool_buffer", Value: c.Concurrency.BatchPoolBuffer, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateMarketConfig() error {
	for sym, price := range c.Market.PricesUSD {
		if !price.IsPositive() {
			return ValidationError{Field: "market.prices_usd." + sym, Value: price, Message: "price must be positive"}
		}
	}
	for i, pair := range c.Market.Pairs {
		field := fmt.Sprintf("market.pairs[%d]", i)
		if _, err := core.ParseProtocol(pair.Protocol); err != nil {
			return ValidationError{Field: field + ".protocol", Value: pair.Protocol, Message: err.Error()}
		}
		if _, err := core.ParseNetwork(pair.Network); err != nil {
			return ValidationError{Field: field + ".network", Value: pair.Network, Message: err.Error()}
		}
		if pair.Collateral == "" || pair.Debt == "" {
			return ValidationError{Field: field, Message: "collateral and debt symbols are required"}
		}
		if !pair.MaxLTV.IsPositive() || pair.MaxLTV.GreaterThanOrEqual(tokenmath.One) {
			return ValidationError{Field: field + ".max_ltv", Value: pair.MaxLTV, Message: "must be within (0, 1)"}
		}
		if pair.LiquidationThreshold.LessThan(pair.MaxLTV) || pair.LiquidationThreshold.GreaterThan(tokenmath.One) {
			return ValidationError{Field: field + ".liquidation_threshold", Value: pair.LiquidationThreshold, Message: "must be within [max_ltv, 1]"}
		}
		if pair.LiquidityBuffer.IsNegative() || pair.LiquidityBuffer.GreaterThanOrEqual(tokenmath.One) {
			return ValidationError{Field: field + ".liquidity_buffer", Value: pair.LiquidityBuffer, Message: "must be within [0, 1)"}
		}
		for _, sym := range []string{pair.Collateral, pair.Debt, pair.FlashloanToken} {
			if sym == "" {
				continue
			}
			if _, ok := c.Market.Price(sym); !ok {
				return ValidationError{Field: field, Value: sym, Message: "no entry in market.prices_usd"}
			}
		}
	}
	for i, pos := range c.Market.Positions {
		field := fmt.Sprintf("market.positions[%d]", i)
		if _, err := core.ParseProtocol(pos.Protocol); err != nil {
			return ValidationError{Field: field + ".protocol", Value: pos.Protocol, Message: err.Error()}
		}
		if pos.Amounts.Collateral.IsNegative() || pos.Amounts.Debt.IsNegative() {
			return ValidationError{Field: field + ".amounts", Message: "amounts must not be negative"}
		}
	}
	return nil
}

func (c *Config) validateTables() error {
	if _, _, err := c.Tables(); err != nil {
		return ValidationError{Field: "fees/flashloan", Message: err.Error()}
	}
	return nil
}

// Price looks a USD price up case-insensitively
func (m MarketConfig) Price(symbol string) (decimal.Decimal, bool) {
	for sym, p := range m.PricesUSD {
		if strings.EqualFold(sym, symbol) {
			return p, true
		}
	}
	return decimal.Zero, false
}

// String returns a YAML dump with secrets redacted
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the configuration every file is layered over
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "leverage-planner",
			MetricsPort: 9090,
		},
		Planner: PlannerConfig{
			DefaultSlippage:     decimal.RequireFromString("0.005"),
			CloseToMaxLTVOffset: decimal.RequireFromString("0.05"),
			FeeEstimateInflator: decimal.RequireFromString("0.2"),
			LTVSafetyMargin:     decimal.RequireFromString("0.001"),
		},
		Quote: QuoteConfig{
			Provider: "static",
			Aggregator: AggregatorConfig{
				Timeout:    10 * time.Second,
				MaxRetries: 3,
				RateLimit:  1,
				RateBurst:  1,
			},
		},
		Concurrency: ConcurrencyConfig{
			BatchPoolSize:   4,
			BatchPoolBuffer: 100,
		},
		Market: MarketConfig{
			PricesUSD: map[string]decimal.Decimal{},
		},
	}
}
