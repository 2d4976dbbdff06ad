package position

import (
	"leverage_planner/pkg/tokenmath"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Balance is a token amount held at a known on-chain precision
type Balance struct {
	Amount    decimal.Decimal `json:"amount"`
	Symbol    string          `json:"symbol"`
	Precision int32           `json:"precision"`
}

// NewBalance builds a Balance
func NewBalance(amount decimal.Decimal, symbol string, precision int32) Balance {
	return Balance{Amount: amount, Symbol: symbol, Precision: precision}
}

// NormalisedAmount returns the amount truncated to what the token can hold
func (b Balance) NormalisedAmount() decimal.Decimal {
	return tokenmath.Round(b.Amount, b.Precision, tokenmath.RoundDown)
}

// BaseUnits returns the on-chain integer amount
func (b Balance) BaseUnits(mode tokenmath.RoundingMode) (*uint256.Int, error) {
	return tokenmath.ToBaseUnits(b.Amount, b.Precision, mode)
}

// Add returns a Balance increased by amount
func (b Balance) Add(amount decimal.Decimal) Balance {
	b.Amount = b.Amount.Add(amount)
	return b
}

// Sub returns a Balance decreased by amount. The result may be negative.
func (b Balance) Sub(amount decimal.Decimal) Balance {
	b.Amount = b.Amount.Sub(amount)
	return b
}

// WithAmount returns a Balance of the same token holding amount
func (b Balance) WithAmount(amount decimal.Decimal) Balance {
	b.Amount = amount
	return b
}

// IsZero reports a zero amount
func (b Balance) IsZero() bool {
	return b.Amount.IsZero()
}

// Equal compares amount and token identity
func (b Balance) Equal(other Balance) bool {
	return b.Amount.Equal(other.Amount) && b.Symbol == other.Symbol && b.Precision == other.Precision
}
