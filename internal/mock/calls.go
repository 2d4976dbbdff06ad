package mock

import (
	"fmt"
	"sync"

	"leverage_planner/internal/core"
)

// RecordedCall is the opaque call produced by RecordingCallFactory
type RecordedCall struct {
	Index int
	Op    core.OperationType
	Args  any
}

// RecordingCallFactory implements core.ICallFactory and keeps every call it
// was asked to build, in order.
type RecordingCallFactory struct {
	mu     sync.Mutex
	calls  []RecordedCall
	failOn map[core.OperationType]error
}

func NewRecordingCallFactory() *RecordingCallFactory {
	return &RecordingCallFactory{failOn: make(map[core.OperationType]error)}
}

// FailOn makes BuildCall return err for op
func (f *RecordingCallFactory) FailOn(op core.OperationType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
}

func (f *RecordingCallFactory) BuildCall(op core.OperationType, args any) (core.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failOn[op]; ok {
		return nil, err
	}
	if op == "" {
		return nil, fmt.Errorf("empty operation type")
	}
	call := RecordedCall{Index: len(f.calls), Op: op, Args: args}
	f.calls = append(f.calls, call)
	return call, nil
}

// Calls returns the recorded calls in build order
func (f *RecordingCallFactory) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns the recorded operation types in build order
func (f *RecordingCallFactory) Ops() []core.OperationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.OperationType, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func (f *RecordingCallFactory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
