package vm

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"fortio.org/safecast"
	"github.com/ezrec/dvm/bytecode"
	"github.com/ezrec/dvm/heap"
)

type Register = bytecode.Register

// handler executes one instruction. Ip already addresses the next instruction.
type handler func(vm *Vm, ops []uint64) error

var dispatch [bytecode.OPCODE_COUNT]handler

func init() {
	dispatch = [bytecode.OPCODE_COUNT]handler{
		bytecode.OP_LOAD_I32:     opLoad(bytecode.KIND_I32),
		bytecode.OP_LOAD_I64:     opLoad(bytecode.KIND_I64),
		bytecode.OP_LOAD_F32:     opLoad(bytecode.KIND_F32),
		bytecode.OP_LOAD_F64:     opLoad(bytecode.KIND_F64),
		bytecode.OP_MOV:          opMov,
		bytecode.OP_ADD_I32:      opArith(bytecode.KIND_I32, addI32),
		bytecode.OP_ADD_I64:      opArith(bytecode.KIND_I64, addI64),
		bytecode.OP_ADD_F32:      opArith(bytecode.KIND_F32, addF32),
		bytecode.OP_ADD_F64:      opArith(bytecode.KIND_F64, addF64),
		bytecode.OP_SUB_I32:      opArith(bytecode.KIND_I32, subI32),
		bytecode.OP_SUB_I64:      opArith(bytecode.KIND_I64, subI64),
		bytecode.OP_SUB_F32:      opArith(bytecode.KIND_F32, subF32),
		bytecode.OP_SUB_F64:      opArith(bytecode.KIND_F64, subF64),
		bytecode.OP_MUL_I32:      opArith(bytecode.KIND_I32, mulI32),
		bytecode.OP_MUL_I64:      opArith(bytecode.KIND_I64, mulI64),
		bytecode.OP_MUL_F32:      opArith(bytecode.KIND_F32, mulF32),
		bytecode.OP_MUL_F64:      opArith(bytecode.KIND_F64, mulF64),
		bytecode.OP_DIV_I32:      opArith(bytecode.KIND_I32, divI32),
		bytecode.OP_DIV_I64:      opArith(bytecode.KIND_I64, divI64),
		bytecode.OP_DIV_F32:      opArith(bytecode.KIND_F32, divF32),
		bytecode.OP_DIV_F64:      opArith(bytecode.KIND_F64, divF64),
		bytecode.OP_EQUAL:        opCompare(func(a, b uint64) bool { return a == b }),
		bytecode.OP_GREATER_THAN: opCompare(func(a, b uint64) bool { return a >= b }),
		bytecode.OP_LESS_THAN:    opCompare(func(a, b uint64) bool { return a <= b }),
		bytecode.OP_CALL:         opCall,
		bytecode.OP_JMP:          opJmp,
		bytecode.OP_JMPIF:        opJmpIf(true),
		bytecode.OP_JMPNIF:       opJmpIf(false),
		bytecode.OP_PRINT:        opPrint,
		bytecode.OP_ADD_I32_PTR:  opAddPtr(false),
		bytecode.OP_ADD_I64_PTR:  opAddPtr(true),
		bytecode.OP_RET:          opRet,
		bytecode.OP_HALT:         opHalt,
		bytecode.OP_CAST:         opCast,
		bytecode.OP_ALLOC:        opAlloc,
		bytecode.OP_FREE:         opFree,
		bytecode.OP_FETCH:        opFetch,
		bytecode.OP_STORE:        opStore,
	}
}

// branch moves Ip by a signed offset from the next instruction.
func (vm *Vm) branch(offset uint64) (err error) {
	target := vm.Ip + offset
	if target > vm.wc {
		err = ErrAddress
		return
	}

	vm.Ip = target
	return
}

// pointer returns the heap object and byte offset a pointer register refers to.
func (vm *Vm) pointer(index uint64) (obj *heap.Object, offset uint64, err error) {
	ptr, err := vm.frame.Get(index)
	if err != nil {
		return
	}
	if ptr.Kind != bytecode.KIND_PTR {
		err = ErrKindMismatch
		return
	}

	obj, err = vm.Heap.Get(uint64(ptr.Slot()))
	if err != nil {
		return
	}

	offset = uint64(ptr.Offset())
	return
}

func opLoad(kind bytecode.Kind) handler {
	return func(vm *Vm, ops []uint64) (err error) {
		dst, err := vm.frame.Ref(ops[0])
		if err != nil {
			return
		}

		*dst = bytecode.Tagged(ops[1], kind)
		return
	}
}

func opMov(vm *Vm, ops []uint64) (err error) {
	src, err := vm.frame.Get(ops[1])
	if err != nil {
		return
	}
	dst, err := vm.frame.Ref(ops[0])
	if err != nil {
		return
	}

	*dst = src
	return
}

func opArith(kind bytecode.Kind, fn func(a, b Register) (Register, error)) handler {
	return func(vm *Vm, ops []uint64) (err error) {
		a, err := vm.frame.Get(ops[1])
		if err != nil {
			return
		}
		b, err := vm.frame.Get(ops[2])
		if err != nil {
			return
		}
		dst, err := vm.frame.Ref(ops[0])
		if err != nil {
			return
		}
		if a.Kind != kind || b.Kind != kind {
			err = fmt.Errorf("%w: %v, %v", ErrKindMismatch, a.Kind, b.Kind)
			return
		}

		value, err := fn(a, b)
		if err != nil {
			return
		}

		*dst = value
		return
	}
}

func addI32(a, b Register) (Register, error) { return bytecode.I32(a.AsI32() + b.AsI32()), nil }
func addI64(a, b Register) (Register, error) { return bytecode.I64(a.AsI64() + b.AsI64()), nil }
func addF32(a, b Register) (Register, error) { return bytecode.F32(a.AsF32() + b.AsF32()), nil }
func addF64(a, b Register) (Register, error) { return bytecode.F64(a.AsF64() + b.AsF64()), nil }
func subI32(a, b Register) (Register, error) { return bytecode.I32(a.AsI32() - b.AsI32()), nil }
func subI64(a, b Register) (Register, error) { return bytecode.I64(a.AsI64() - b.AsI64()), nil }
func subF32(a, b Register) (Register, error) { return bytecode.F32(a.AsF32() - b.AsF32()), nil }
func subF64(a, b Register) (Register, error) { return bytecode.F64(a.AsF64() - b.AsF64()), nil }
func mulI32(a, b Register) (Register, error) { return bytecode.I32(a.AsI32() * b.AsI32()), nil }
func mulI64(a, b Register) (Register, error) { return bytecode.I64(a.AsI64() * b.AsI64()), nil }
func mulF32(a, b Register) (Register, error) { return bytecode.F32(a.AsF32() * b.AsF32()), nil }
func mulF64(a, b Register) (Register, error) { return bytecode.F64(a.AsF64() * b.AsF64()), nil }
func divF32(a, b Register) (Register, error) { return bytecode.F32(a.AsF32() / b.AsF32()), nil }
func divF64(a, b Register) (Register, error) { return bytecode.F64(a.AsF64() / b.AsF64()), nil }

func divI32(a, b Register) (reg Register, err error) {
	if b.AsI32() == 0 {
		err = ErrDivideByZero
		return
	}
	reg = bytecode.I32(a.AsI32() / b.AsI32())
	return
}

func divI64(a, b Register) (reg Register, err error) {
	if b.AsI64() == 0 {
		err = ErrDivideByZero
		return
	}
	reg = bytecode.I64(a.AsI64() / b.AsI64())
	return
}

// Comparisons look only at the raw payload.
func opCompare(test func(a, b uint64) bool) handler {
	return func(vm *Vm, ops []uint64) (err error) {
		a, err := vm.frame.Get(ops[1])
		if err != nil {
			return
		}
		b, err := vm.frame.Get(ops[2])
		if err != nil {
			return
		}

		if test(a.Bits, b.Bits) {
			err = vm.branch(ops[0])
		}
		return
	}
}

func opJmp(vm *Vm, ops []uint64) error {
	return vm.branch(ops[0])
}

func opJmpIf(zero bool) handler {
	return func(vm *Vm, ops []uint64) (err error) {
		reg, err := vm.frame.Get(ops[1])
		if err != nil {
			return
		}

		if reg.Zero() == zero {
			err = vm.branch(ops[0])
		}
		return
	}
}

func opPrint(vm *Vm, ops []uint64) (err error) {
	reg, err := vm.frame.Get(ops[0])
	if err != nil {
		return
	}

	_, err = fmt.Fprintf(vm.Output, "r%d: %v\n", ops[0], reg)
	return
}

func opCall(vm *Vm, ops []uint64) (err error) {
	index, dst, base := ops[0], ops[1], ops[2]

	if index >= uint64(len(vm.Program.Functions)) {
		err = ErrFunctionIndex
		return
	}
	fe := &vm.Program.Functions[index]
	if fe.Entry > vm.wc {
		err = ErrAddress
		return
	}
	if dst != bytecode.NO_REGISTER && dst >= bytecode.FRAME_REGISTERS {
		err = ErrRegister
		return
	}

	args := uint64(fe.Args())
	if args > 0 && (base >= bytecode.FRAME_REGISTERS || bytecode.FRAME_REGISTERS-base < args) {
		err = ErrRegister
		return
	}
	caller := vm.frame
	for n, kind := range fe.ArgKinds {
		if caller.Register[base+uint64(n)].Kind != kind {
			err = fmt.Errorf("%w: argument %d", ErrKindMismatch, n)
			return
		}
	}

	callee, err := vm.Stack.Push()
	if err != nil {
		return
	}
	callee.Function = fe
	callee.ReturnIp = vm.Ip
	callee.ReturnDst = dst
	copy(callee.Register[:args], caller.Register[base:base+args])

	vm.frame = callee
	vm.Ip = fe.Entry

	if vm.Verbose {
		log.Debugf("call: function %d @%04x depth %d", index, fe.Entry, vm.Stack.Len())
	}

	return
}

func opRet(vm *Vm, ops []uint64) (err error) {
	callee, ok := vm.Stack.Pop()
	if !ok {
		err = ErrStackEmpty
		return
	}

	result := callee.Register[0]
	if callee.Function != nil && callee.Function.HasReturn && result.Kind != callee.Function.Return {
		err = fmt.Errorf("%w: return %v, expected %v", ErrKindMismatch, result.Kind, callee.Function.Return)
		return
	}

	caller, ok := vm.Stack.Peek()
	if !ok {
		vm.Halted = true
		return
	}

	if callee.ReturnDst != bytecode.NO_REGISTER {
		var dst *Register
		dst, err = caller.Ref(callee.ReturnDst)
		if err != nil {
			return
		}
		*dst = result
	}

	vm.frame = caller
	vm.Ip = callee.ReturnIp

	return
}

func opHalt(vm *Vm, ops []uint64) error {
	vm.Halted = true
	return nil
}

func opAddPtr(wide bool) handler {
	return func(vm *Vm, ops []uint64) (err error) {
		reg, err := vm.frame.Ref(ops[0])
		if err != nil {
			return
		}
		if reg.Kind != bytecode.KIND_PTR {
			err = ErrKindMismatch
			return
		}

		delta := ops[1] * ops[2]
		if wide {
			reg.Bits += delta
		} else {
			*reg = bytecode.Ptr(reg.Slot(), reg.Offset()+uint32(delta))
		}
		return
	}
}

func opCast(vm *Vm, ops []uint64) (err error) {
	src, err := vm.frame.Get(ops[1])
	if err != nil {
		return
	}
	dst, err := vm.frame.Ref(ops[0])
	if err != nil {
		return
	}
	kind := bytecode.Kind(ops[2])
	if ops[2] > uint64(bytecode.KIND_PTR) {
		err = bytecode.ErrKindInvalid
		return
	}

	value, err := Cast(src, kind)
	if err != nil {
		return
	}

	*dst = value
	return
}

// Cast converts a register to another kind. Integer and float conversions are
// numeric; pointers only convert to and from i64, preserving bits.
func Cast(src Register, kind bytecode.Kind) (reg Register, err error) {
	if src.Kind == kind {
		reg = src
		return
	}

	// Float to integer.
	var fv float64
	switch src.Kind {
	case bytecode.KIND_F32:
		fv = float64(src.AsF32())
	case bytecode.KIND_F64:
		fv = src.AsF64()
	}

	switch {
	case src.Kind == bytecode.KIND_PTR && kind == bytecode.KIND_I64,
		src.Kind == bytecode.KIND_I64 && kind == bytecode.KIND_PTR:
		reg = bytecode.Tagged(src.Bits, kind)
	case src.Kind == bytecode.KIND_PTR || kind == bytecode.KIND_PTR:
		err = fmt.Errorf("%w: %v to %v", ErrKindMismatch, src.Kind, kind)
	case src.Kind == bytecode.KIND_I32:
		reg = fromInt(int64(src.AsI32()), kind)
	case src.Kind == bytecode.KIND_I64:
		reg = fromInt(src.AsI64(), kind)
	case kind == bytecode.KIND_F32:
		reg = bytecode.F32(float32(fv))
	case kind == bytecode.KIND_F64:
		reg = bytecode.F64(fv)
	case kind == bytecode.KIND_I32:
		t := math.Trunc(fv)
		if math.IsNaN(fv) || t < math.MinInt32 || t > math.MaxInt32 {
			err = ErrCastRange
			return
		}
		reg = bytecode.I32(int32(t))
	case kind == bytecode.KIND_I64:
		t := math.Trunc(fv)
		if math.IsNaN(fv) || t < math.MinInt64 || t >= math.MaxInt64 {
			err = ErrCastRange
			return
		}
		reg = bytecode.I64(int64(t))
	default:
		err = ErrKindMismatch
	}

	return
}

func fromInt(value int64, kind bytecode.Kind) (reg Register) {
	switch kind {
	case bytecode.KIND_I32:
		reg = bytecode.I32(int32(value))
	case bytecode.KIND_I64:
		reg = bytecode.I64(value)
	case bytecode.KIND_F32:
		reg = bytecode.F32(float32(value))
	case bytecode.KIND_F64:
		reg = bytecode.F64(float64(value))
	}
	return
}

func opAlloc(vm *Vm, ops []uint64) (err error) {
	dst, err := vm.frame.Ref(ops[0])
	if err != nil {
		return
	}

	words, ws := ops[1], ops[2]
	hi, size := bits.Mul64(words, ws)
	if hi != 0 || size > vm.MaxObjectSize {
		err = ErrObjectSize
		return
	}
	switch ws {
	case 1, 2, 4, 8:
	default:
		err = heap.ErrWordSize
		return
	}

	index, err := vm.Heap.Push(heap.Vector(make([]byte, size), ws))
	if err != nil {
		return
	}
	slot, err := safecast.Convert[uint32](index)
	if err != nil {
		err = errors.Join(heap.ErrFull, err)
		vm.Heap.Free(index)
		return
	}

	*dst = bytecode.Ptr(slot, 0)
	return
}

func opFree(vm *Vm, ops []uint64) (err error) {
	ptr, err := vm.frame.Get(ops[0])
	if err != nil {
		return
	}
	if ptr.Kind != bytecode.KIND_PTR {
		err = ErrKindMismatch
		return
	}

	err = vm.Heap.Free(uint64(ptr.Slot()))
	return
}

func opFetch(vm *Vm, ops []uint64) (err error) {
	if ops[2] > uint64(bytecode.KIND_PTR) {
		err = bytecode.ErrKindInvalid
		return
	}
	dst, err := vm.frame.Ref(ops[0])
	if err != nil {
		return
	}
	obj, offset, err := vm.pointer(ops[1])
	if err != nil {
		return
	}

	value, err := obj.Read(offset)
	if err != nil {
		return
	}

	*dst = bytecode.Tagged(value, bytecode.Kind(ops[2]))
	return
}

func opStore(vm *Vm, ops []uint64) (err error) {
	src, err := vm.frame.Get(ops[1])
	if err != nil {
		return
	}
	obj, offset, err := vm.pointer(ops[0])
	if err != nil {
		return
	}

	err = obj.Write(offset, src.Bits)
	return
}
