// Package operations turns a computed plan into the ordered, opaque calls a
// downstream executor replays. Call encoding belongs to the injected
// core.ICallFactory.
package operations

import (
	"fmt"

	"leverage_planner/internal/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Operation types understood by the call factory
const (
	OpPullToken         core.OperationType = "pull-token"
	OpSetApproval       core.OperationType = "set-approval"
	OpDeposit           core.OperationType = "deposit"
	OpBorrow            core.OperationType = "borrow"
	OpSwap              core.OperationType = "swap"
	OpPayback           core.OperationType = "payback"
	OpWithdraw          core.OperationType = "withdraw"
	OpWrapEth           core.OperationType = "wrap-eth"
	OpUnwrapEth         core.OperationType = "unwrap-eth"
	OpSetEMode          core.OperationType = "set-emode"
	OpTakeFlashloan     core.OperationType = "take-flashloan"
	OpReturnFunds       core.OperationType = "return-funds"
	OpPositionCreated   core.OperationType = "position-created"
	OpMakerOpenVault    core.OperationType = "maker-open-vault"
	OpMakerDeposit      core.OperationType = "maker-deposit"
	OpMakerGenerate     core.OperationType = "maker-generate"
	OpMakerPayback      core.OperationType = "maker-payback"
	OpMakerWithdraw     core.OperationType = "maker-withdraw"
	OpAjnaDepositBorrow core.OperationType = "ajna-deposit-borrow"
	OpAjnaRepayWithdraw core.OperationType = "ajna-repay-withdraw"
)

// Action is the user intent a plan fulfils
type Action string

const (
	ActionOpen            Action = "open"
	ActionAdjustRiskUp    Action = "adjust-risk-up"
	ActionAdjustRiskDown  Action = "adjust-risk-down"
	ActionClose           Action = "close"
	ActionDepositBorrow   Action = "deposit-borrow"
	ActionPaybackWithdraw Action = "payback-withdraw"
)

var protocolLabels = map[core.Protocol]string{
	core.ProtocolAaveV2: "AAVE",
	core.ProtocolAaveV3: "AAVEV3",
	core.ProtocolSpark:  "Spark",
	core.ProtocolMaker:  "Maker",
	core.ProtocolAjna:   "Ajna",
}

// Name returns the executor operation name for a protocol and action,
// e.g. OpenAAVEV3Position or AjnaDepositBorrow.
func Name(protocol core.Protocol, action Action) (string, error) {
	label, ok := protocolLabels[protocol]
	if !ok {
		return "", fmt.Errorf("no operation names for protocol %q", protocol)
	}
	switch action {
	case ActionOpen:
		return "Open" + label + "Position", nil
	case ActionAdjustRiskUp:
		return "AdjustRiskUp" + label + "Position", nil
	case ActionAdjustRiskDown:
		return "AdjustRiskDown" + label + "Position", nil
	case ActionClose:
		return "Close" + label + "Position", nil
	case ActionDepositBorrow:
		return label + "DepositBorrow", nil
	case ActionPaybackWithdraw:
		return label + "PaybackWithdraw", nil
	}
	return "", fmt.Errorf("unknown action %q", action)
}

// Call arguments. Amounts are token base units.

type PullTokenArgs struct {
	Asset  common.Address
	From   common.Address
	Amount *uint256.Int
}

type SetApprovalArgs struct {
	Asset      common.Address
	Spender    common.Address
	Amount     *uint256.Int
	SumAmounts bool
}

type DepositArgs struct {
	Protocol   core.Protocol
	Asset      common.Address
	Amount     *uint256.Int
	SumAmounts bool
}

type BorrowArgs struct {
	Protocol core.Protocol
	Asset    common.Address
	Amount   *uint256.Int
	To       common.Address
}

type SwapArgs struct {
	FromAsset             common.Address
	ToAsset               common.Address
	Amount                *uint256.Int
	ReceiveAtLeast        *uint256.Int
	FeeBps                uint64
	CollectFeeInFromToken bool
	Calldata              []byte
}

type PaybackArgs struct {
	Protocol   core.Protocol
	Asset      common.Address
	Amount     *uint256.Int
	PaybackAll bool
}

type WithdrawArgs struct {
	Protocol core.Protocol
	Asset    common.Address
	Amount   *uint256.Int
	To       common.Address
	// WithdrawAll withdraws the full balance regardless of Amount
	WithdrawAll bool
}

type WrapEthArgs struct {
	Amount *uint256.Int
}

type UnwrapEthArgs struct {
	Amount *uint256.Int
	// UnwrapAll unwraps the whole WETH balance of the proxy
	UnwrapAll bool
}

type SetEModeArgs struct {
	CategoryID uint8
}

type TakeFlashloanArgs struct {
	Provider   string
	Asset      common.Address
	Amount     *uint256.Int
	IsDssFlash bool
	Calls      []core.Call
}

type ReturnFundsArgs struct {
	Asset common.Address
}

type PositionCreatedArgs struct {
	Protocol        core.Protocol
	PositionType    string
	CollateralToken common.Address
	DebtToken       common.Address
}

type MakerOpenVaultArgs struct {
	Ilk string
}

// Maker vault calls with VaultID zero use the vault opened earlier in the
// same transaction.
type MakerDepositArgs struct {
	VaultID    uint64
	Asset      common.Address
	Amount     *uint256.Int
	SumAmounts bool
}

type MakerGenerateArgs struct {
	VaultID uint64
	Amount  *uint256.Int
	To      common.Address
}

type MakerPaybackArgs struct {
	VaultID    uint64
	Amount     *uint256.Int
	PaybackAll bool
}

type MakerWithdrawArgs struct {
	VaultID     uint64
	Amount      *uint256.Int
	WithdrawAll bool
}

type AjnaDepositBorrowArgs struct {
	Pool          common.Address
	DepositAmount *uint256.Int
	BorrowAmount  *uint256.Int
	Price         *uint256.Int
	SumAmounts    bool
}

type AjnaRepayWithdrawArgs struct {
	Pool           common.Address
	RepayAmount    *uint256.Int
	WithdrawAmount *uint256.Int
	Price          *uint256.Int
	RepayAll       bool
	WithdrawAll    bool
}
