// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"math"
	"os"

	"github.com/ezrec/dvm/bytecode"
	"github.com/ezrec/dvm/heap"
	"github.com/ezrec/dvm/internal"
	"github.com/tliron/commonlog"
)

const (
	HEAP_CAPACITY   = 1000    // Default heap slot limit.
	MAX_OBJECT_SIZE = 1 << 24 // Default allocation size limit, in bytes.
)

var log = commonlog.GetLogger("dvm.vm")

// Vm executes a single program.
type Vm struct {
	Verbose bool // Set to trace every instruction.

	Program       *bytecode.Program // Program being executed.
	Heap          *heap.Heap        // Heap objects referenced by pointer registers.
	Stack         CallStack         // Call frames; the top frame is the active one.
	Output        io.Writer         // Destination of the print opcode.
	MaxObjectSize uint64            // Allocation size limit, in bytes.

	Ip     uint64 // Address of the next opcode word.
	Halted bool   // Set once execution has ended.
	Ticks  int    // Instructions executed since reset.

	wc    uint64
	frame *Frame
}

func newVm(opts ...Option) (vm *Vm) {
	vm = &Vm{
		Heap:          heap.New(HEAP_CAPACITY),
		Output:        os.Stdout,
		MaxObjectSize: MAX_OBJECT_SIZE,
	}
	vm.Stack.Limit = MAX_CALL_DEPTH

	for _, opt := range opts {
		opt(vm)
	}

	return
}

// New creates a VM ready to run prog from its entry function.
func New(prog *bytecode.Program, opts ...Option) (vm *Vm, err error) {
	vm = newVm(opts...)
	vm.Program = prog

	err = vm.Reset()
	if err != nil {
		vm = nil
	}

	return
}

// Defines returns the assembler equates for a VM built with opts.
func Defines(opts ...Option) iter.Seq2[string, string] {
	return newVm(opts...).Defines()
}

// Defines for the vm
func (vm *Vm) Defines() iter.Seq2[string, string] {
	limits := map[string]string{
		"MAX_CALL_DEPTH":  internal.Define(vm.Stack.limit()),
		"HEAP_CAPACITY":   internal.Define(vm.Heap.Capacity),
		"MAX_OBJECT_SIZE": internal.Define(vm.MaxObjectSize),
	}

	return internal.IterSeq2Concat(bytecode.Defines(), maps.All(limits))
}

// Reset the VM state.
// - Frees all heap objects.
// - Checks the register counts of the function table.
// - Replaces the call stack with a single frame for the entry function.
// - Zeros the tick counter.
func (vm *Vm) Reset() (err error) {
	prog := vm.Program
	if prog == nil {
		err = bytecode.ErrEntryIndex
		return
	}

	entry := prog.Entry()
	if entry == nil {
		err = bytecode.ErrEntryIndex
		return
	}

	vm.wc = uint64(len(prog.Code))
	if entry.Entry > vm.wc {
		err = bytecode.ErrFunctionOffset
		return
	}

	for _, fe := range prog.Functions {
		if int(fe.Registers) > bytecode.FRAME_REGISTERS || fe.Args() > int(fe.Registers) {
			err = bytecode.ErrRegisterCount
			return
		}
	}

	vm.Heap.Reset()
	vm.Stack.Reset()

	frame, err := vm.Stack.Push()
	if err != nil {
		return
	}
	frame.Function = entry
	frame.ReturnIp = math.MaxUint64
	frame.ReturnDst = bytecode.NO_REGISTER

	vm.frame = frame
	vm.Ip = entry.Entry
	vm.Halted = false
	vm.Ticks = 0

	if vm.Verbose {
		log.Infof("reset: function %d @%04x, %d words", prog.EntryIndex, entry.Entry, vm.wc)
	}

	return
}

// Frame returns the active call frame.
func (vm *Vm) Frame() *Frame {
	return vm.frame
}

// Step executes a single instruction.
func (vm *Vm) Step() (done bool, err error) {
	if vm.Halted || vm.Ip >= vm.wc {
		vm.Halted = true
		done = true
		return
	}

	ip := vm.Ip
	word := vm.Program.Code[ip]
	op, ok := bytecode.Decode(word)

	defer func() {
		if err != nil {
			vm.Halted = true
			done = true
			err = &Fault{Ip: ip, Opcode: op, Word: word, Err: err}
			log.Errorf("%v", err)
		}
	}()

	vm.Ticks++

	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	next_ip := ip + 1 + uint64(op.Operands())
	if next_ip > vm.wc {
		err = ErrAddress
		return
	}
	operands := vm.Program.Code[ip+1 : next_ip]
	vm.Ip = next_ip

	if vm.Verbose {
		log.Debugf("%04x: %v", ip, bytecode.Instruction{Opcode: op, Operands: operands, Valid: true})
	}

	err = dispatch[op](vm, operands)
	if err != nil {
		return
	}

	if vm.Ip >= vm.wc {
		vm.Halted = true
	}
	done = vm.Halted

	return
}

// Run until halted or faulted.
func (vm *Vm) Run() (err error) {
	for {
		var done bool
		done, err = vm.Step()
		if done || err != nil {
			return
		}
	}
}

// String returns the current VM state as a string.
func (vm *Vm) String() (text string) {
	text += fmt.Sprintf("% 6s: %04x\n", "ip", vm.Ip)
	text += fmt.Sprintf("% 6s: %v\n", "halted", vm.Halted)
	text += fmt.Sprintf("% 6s: %d\n", "ticks", vm.Ticks)
	text += fmt.Sprintf("% 6s: %d\n", "depth", vm.Stack.Len())
	text += fmt.Sprintf("% 6s: %d/%d\n", "heap", vm.Heap.Live(), vm.Heap.Len())

	frame := vm.frame
	if frame == nil {
		return
	}

	count := bytecode.FRAME_REGISTERS
	if frame.Function != nil {
		count = int(frame.Function.Registers)
	}
	for n := range count {
		text += fmt.Sprintf("% 6s: %v\n", fmt.Sprintf("r%d", n), frame.Register[n])
	}

	for slot, obj := range vm.Heap.Objects() {
		text += fmt.Sprintf("% 6s: %v\n", fmt.Sprintf("@%d", slot), obj)
	}

	return
}
