package operations

import (
	"fmt"

	"leverage_planner/internal/core"
)

// CallDescriptor is a readable call: the operation name and its arguments.
// Executors that need calldata encode it themselves.
type CallDescriptor struct {
	Op   core.OperationType `json:"op"`
	Args any                `json:"args"`
}

// DescriptorFactory is a core.ICallFactory that emits CallDescriptors
type DescriptorFactory struct{}

// BuildCall implements core.ICallFactory
func (DescriptorFactory) BuildCall(op core.OperationType, args any) (core.Call, error) {
	if op == "" {
		return nil, fmt.Errorf("empty operation type")
	}
	return CallDescriptor{Op: op, Args: args}, nil
}
