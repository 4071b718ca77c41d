package vm

import (
	"io"
)

// Option configures a Vm.
type Option func(vm *Vm)

// WithMaxCallDepth limits the call stack depth.
func WithMaxCallDepth(depth int) Option {
	return func(vm *Vm) {
		vm.Stack.Limit = depth
	}
}

// WithHeapCapacity limits the number of heap slots. Zero is unlimited.
func WithHeapCapacity(slots int) Option {
	return func(vm *Vm) {
		vm.Heap.Capacity = slots
	}
}

// WithMaxObjectSize limits the byte size of a single allocation.
func WithMaxObjectSize(size uint64) Option {
	return func(vm *Vm) {
		vm.MaxObjectSize = size
	}
}

// WithOutput sets the destination of the print opcode.
func WithOutput(w io.Writer) Option {
	return func(vm *Vm) {
		vm.Output = w
	}
}

// WithVerbose enables instruction tracing.
func WithVerbose(verbose bool) Option {
	return func(vm *Vm) {
		vm.Verbose = verbose
	}
}
