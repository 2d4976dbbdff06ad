// Package core defines the core interfaces for the position planner
package core

import (
	"context"

	"leverage_planner/internal/domain/position"

	"github.com/shopspring/decimal"
)

// ISwapQuoter fetches a swap quote for amount of from, honoring slippage.
type ISwapQuoter interface {
	GetSwapData(ctx context.Context, from, to Token, amount decimal.Decimal, slippage decimal.Decimal) (*SwapData, error)
}

// IPositionReader is the protocol-specific read view of an existing position
type IPositionReader interface {
	GetCurrentPosition(ctx context.Context, query PositionQuery) (position.Position, error)
}

// IProtocolDataReader snapshots the on-chain protocol state needed for a plan
type IProtocolDataReader interface {
	GetProtocolData(ctx context.Context, query PositionQuery) (*ProtocolData, error)
}

// Call is an opaque, executor-specific operation call. The planner never
// inspects it.
type Call any

// ICallFactory builds one opaque call for an operation type and its
// already-computed arguments.
type ICallFactory interface {
	BuildCall(op OperationType, args any) (Call, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
