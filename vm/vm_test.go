package vm

import (
	"bytes"
	"errors"
	"io"
	"maps"
	"math"
	"strings"
	"testing"

	"github.com/ezrec/dvm/bytecode"
	"github.com/ezrec/dvm/heap"
	"github.com/stretchr/testify/assert"
)

func op(code bytecode.Opcode, operands ...uint64) []uint64 {
	return append([]uint64{uint64(code)}, operands...)
}

func off(n int64) uint64 {
	return uint64(n)
}

func words(ops ...[]uint64) (code []uint64) {
	for _, o := range ops {
		code = append(code, o...)
	}
	return
}

func single(code []uint64) *bytecode.Program {
	return &bytecode.Program{
		Functions: []bytecode.FunctionEntry{{Entry: 0, Registers: 8}},
		Code:      code,
	}
}

func run(t *testing.T, prog *bytecode.Program, opts ...Option) (vm *Vm, output string, err error) {
	var out bytes.Buffer
	vm, err = New(prog, append([]Option{WithOutput(&out)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	err = vm.Run()
	output = out.String()
	return
}

func reg(t *testing.T, vm *Vm, index uint64) bytecode.Register {
	r, err := vm.Frame().Get(index)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func loop() []uint64 {
	return words(
		op(bytecode.OP_LOAD_I32, 0, 1),
		op(bytecode.OP_LOAD_I32, 1, 1000),
		op(bytecode.OP_LOAD_I32, 2, 0),
		op(bytecode.OP_PRINT, 0),
		op(bytecode.OP_PRINT, 1),
		op(bytecode.OP_PRINT, 2),
		op(bytecode.OP_ADD_I32, 2, 2, 0),
		op(bytecode.OP_SUB_I32, 1, 1, 0),
		op(bytecode.OP_PRINT, 0),
		op(bytecode.OP_PRINT, 1),
		op(bytecode.OP_PRINT, 2),
		op(bytecode.OP_JMPNIF, off(-17), 1),
		op(bytecode.OP_HALT),
	)
}

func TestVm_Loop(t *testing.T) {
	assert := assert.New(t)

	vm, output, err := run(t, single(loop()))
	assert.NoError(err)
	assert.True(vm.Halted)
	assert.Equal(uint64(33), vm.Ip)
	assert.Equal(3+3+6*1000+1, vm.Ticks)

	assert.Equal(bytecode.I32(1000), reg(t, vm, 2))
	assert.Equal(bytecode.I32(0), reg(t, vm, 1))

	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	assert.Equal(3+3000, len(lines))
	assert.Equal([]string{"r0: 1 i32", "r1: 1000 i32", "r2: 0 i32"}, lines[:3])
	assert.Equal([]string{"r0: 1 i32", "r1: 999 i32", "r2: 1 i32"}, lines[3:6])
	assert.Equal([]string{"r0: 1 i32", "r1: 0 i32", "r2: 1000 i32"}, lines[len(lines)-3:])
}

func TestVm_Termination(t *testing.T) {
	assert := assert.New(t)

	// Running off the end of the code ends execution.
	vm, _, err := run(t, single(op(bytecode.OP_LOAD_I32, 0, 1)))
	assert.NoError(err)
	assert.True(vm.Halted)
	assert.Equal(1, vm.Ticks)

	// Empty code
	vm, _, err = run(t, single(nil))
	assert.NoError(err)
	assert.True(vm.Halted)
	assert.Equal(0, vm.Ticks)

	// Halt stops before later instructions.
	vm, output, err := run(t, single(words(op(bytecode.OP_HALT), op(bytecode.OP_PRINT, 0))))
	assert.NoError(err)
	assert.Equal("", output)
	assert.Equal(uint64(1), vm.Ip)

	// Stepping a halted VM does nothing.
	done, err := vm.Step()
	assert.True(done)
	assert.NoError(err)
	assert.Equal(1, vm.Ticks)

	// Top-level return halts.
	vm, output, err = run(t, single(words(op(bytecode.OP_RET), op(bytecode.OP_PRINT, 0))))
	assert.NoError(err)
	assert.True(vm.Halted)
	assert.Equal("", output)
}

func TestVm_Wrap(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, single(words(
		op(bytecode.OP_LOAD_I32, 0, 0x7fffffff),
		op(bytecode.OP_LOAD_I32, 1, 1),
		op(bytecode.OP_ADD_I32, 2, 0, 1),
		op(bytecode.OP_LOAD_I64, 3, 0x7fffffffffffffff),
		op(bytecode.OP_LOAD_I64, 4, 1),
		op(bytecode.OP_ADD_I64, 5, 3, 4),
	)))
	assert.NoError(err)

	assert.Equal(bytecode.Register{Bits: 0x80000000, Kind: bytecode.KIND_I32}, reg(t, vm, 2))
	assert.Equal(bytecode.Register{Bits: 0x8000000000000000, Kind: bytecode.KIND_I64}, reg(t, vm, 5))
}

func TestVm_Load(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, single(words(
		op(bytecode.OP_LOAD_I32, 0, 0x1_2345_6789),
		op(bytecode.OP_LOAD_I64, 1, 0x1_2345_6789),
		op(bytecode.OP_LOAD_F32, 2, uint64(bytecode.F32(2.5).Bits)),
		op(bytecode.OP_LOAD_F64, 3, bytecode.F64(-1.25).Bits),
		op(bytecode.OP_MOV, 4, 3),
	)))
	assert.NoError(err)

	assert.Equal(bytecode.Register{Bits: 0x2345_6789, Kind: bytecode.KIND_I32}, reg(t, vm, 0))
	assert.Equal(bytecode.Register{Bits: 0x1_2345_6789, Kind: bytecode.KIND_I64}, reg(t, vm, 1))
	assert.Equal(float32(2.5), reg(t, vm, 2).AsF32())
	assert.Equal(bytecode.F64(-1.25), reg(t, vm, 4))
}

func TestVm_Arithmetic(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		opcode   bytecode.Opcode
		a, b     bytecode.Register
		expected bytecode.Register
	}){
		{"addi32", bytecode.OP_ADD_I32, bytecode.I32(-5), bytecode.I32(3), bytecode.I32(-2)},
		{"subi32", bytecode.OP_SUB_I32, bytecode.I32(0), bytecode.I32(1), bytecode.I32(-1)},
		{"muli32", bytecode.OP_MUL_I32, bytecode.I32(0x10000), bytecode.I32(0x10000), bytecode.I32(0)},
		{"divi32", bytecode.OP_DIV_I32, bytecode.I32(-7), bytecode.I32(2), bytecode.I32(-3)},
		{"addi64", bytecode.OP_ADD_I64, bytecode.I64(1 << 40), bytecode.I64(1), bytecode.I64(1<<40 + 1)},
		{"subi64", bytecode.OP_SUB_I64, bytecode.I64(-1 << 63), bytecode.I64(1), bytecode.I64(1<<63 - 1)},
		{"muli64", bytecode.OP_MUL_I64, bytecode.I64(-3), bytecode.I64(7), bytecode.I64(-21)},
		{"divi64", bytecode.OP_DIV_I64, bytecode.I64(100), bytecode.I64(-7), bytecode.I64(-14)},
		{"addf32", bytecode.OP_ADD_F32, bytecode.F32(1.5), bytecode.F32(0.25), bytecode.F32(1.75)},
		{"subf32", bytecode.OP_SUB_F32, bytecode.F32(1.5), bytecode.F32(2), bytecode.F32(-0.5)},
		{"mulf32", bytecode.OP_MUL_F32, bytecode.F32(1.5), bytecode.F32(4), bytecode.F32(6)},
		{"divf32", bytecode.OP_DIV_F32, bytecode.F32(1), bytecode.F32(4), bytecode.F32(0.25)},
		{"addf64", bytecode.OP_ADD_F64, bytecode.F64(1e300), bytecode.F64(1e300), bytecode.F64(2e300)},
		{"subf64", bytecode.OP_SUB_F64, bytecode.F64(0.5), bytecode.F64(0.25), bytecode.F64(0.25)},
		{"mulf64", bytecode.OP_MUL_F64, bytecode.F64(-2), bytecode.F64(8), bytecode.F64(-16)},
		{"divf64", bytecode.OP_DIV_F64, bytecode.F64(3), bytecode.F64(-2), bytecode.F64(-1.5)},
	}

	for _, entry := range table {
		loadA := bytecode.Opcode(entry.a.Kind)
		loadB := bytecode.Opcode(entry.b.Kind)
		vm, _, err := run(t, single(words(
			op(loadA, 0, entry.a.Bits),
			op(loadB, 1, entry.b.Bits),
			op(entry.opcode, 2, 0, 1),
		)))
		assert.NoError(err, entry.name)
		assert.Equal(entry.expected, reg(t, vm, 2), entry.name)
	}
}

func TestVm_FloatDivideByZero(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, single(words(
		op(bytecode.OP_LOAD_F64, 0, bytecode.F64(1).Bits),
		op(bytecode.OP_LOAD_F64, 1, 0),
		op(bytecode.OP_DIV_F64, 2, 0, 1),
	)))
	assert.NoError(err)
	assert.True(reg(t, vm, 2).AsF64() > 1e308)
}

func TestVm_DivideByZero(t *testing.T) {
	assert := assert.New(t)

	vm, output, err := run(t, single(words(
		op(bytecode.OP_LOAD_I32, 0, 10),
		op(bytecode.OP_LOAD_I32, 1, 0),
		op(bytecode.OP_PRINT, 0),
		op(bytecode.OP_DIV_I32, 2, 0, 1),
		op(bytecode.OP_PRINT, 2),
	)))

	assert.ErrorIs(err, ErrDivideByZero)
	var fault *Fault
	assert.True(errors.As(err, &fault))
	assert.Equal(uint64(8), fault.Ip)
	assert.Equal(bytecode.OP_DIV_I32, fault.Opcode)
	assert.Contains(fault.Error(), "divi32")

	assert.True(vm.Halted)
	assert.Equal("r0: 10 i32\n", output)
	assert.Equal(bytecode.Register{}, reg(t, vm, 2))
}

func TestVm_KindMismatch(t *testing.T) {
	assert := assert.New(t)

	_, _, err := run(t, single(words(
		op(bytecode.OP_LOAD_I64, 0, 1),
		op(bytecode.OP_LOAD_I32, 1, 1),
		op(bytecode.OP_ADD_I32, 2, 0, 1),
	)))
	assert.ErrorIs(err, ErrKindMismatch)

	_, _, err = run(t, single(words(
		op(bytecode.OP_LOAD_F32, 0, 1),
		op(bytecode.OP_ADD_I32_PTR, 0, 1, 4),
	)))
	assert.ErrorIs(err, ErrKindMismatch)
}

func TestVm_Faults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		code []uint64
		ip   uint64
		err  error
	}){
		{"register", op(bytecode.OP_LOAD_I32, bytecode.FRAME_REGISTERS, 1), 0, ErrRegister},
		{"register-src", op(bytecode.OP_MOV, 0, 1000), 0, ErrRegister},
		{"print", op(bytecode.OP_PRINT, bytecode.NO_REGISTER), 0, ErrRegister},
		{"reserved", []uint64{uint64(bytecode.OP_HALT) | 1<<32}, 0, ErrOpcodeInvalid},
		{"undefined", []uint64{uint64(bytecode.OPCODE_COUNT)}, 0, ErrOpcodeInvalid},
		{"operands", op(bytecode.OP_LOAD_I32, 0), 0, ErrAddress},
		{"jmp-past", op(bytecode.OP_JMP, 1), 0, ErrAddress},
		{"jmp-before", words(op(bytecode.OP_LOAD_I32, 0, 0), op(bytecode.OP_JMP, off(-6))), 3, ErrAddress},
		{"function", op(bytecode.OP_CALL, 1, bytecode.NO_REGISTER, 0), 0, ErrFunctionIndex},
		{"call-dst", op(bytecode.OP_CALL, 0, bytecode.FRAME_REGISTERS, 0), 0, ErrRegister},
		{"cast-kind", op(bytecode.OP_CAST, 0, 0, 9), 0, bytecode.ErrKindInvalid},
		{"fetch-kind", op(bytecode.OP_FETCH, 0, 0, 9), 0, bytecode.ErrKindInvalid},
		{"free-kind", op(bytecode.OP_FREE, 0), 0, ErrKindMismatch},
	}

	for _, entry := range table {
		vm, _, err := run(t, single(entry.code))
		assert.ErrorIs(err, entry.err, entry.name)
		var fault *Fault
		if assert.True(errors.As(err, &fault), entry.name) {
			assert.Equal(entry.ip, fault.Ip, entry.name)
		}
		assert.True(vm.Halted, entry.name)
	}
}

func TestVm_Branch(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		opcode bytecode.Opcode
		a, b   uint64
		taken  bool
	}){
		{"eq", bytecode.OP_EQUAL, 5, 5, true},
		{"eq-not", bytecode.OP_EQUAL, 5, 6, false},
		{"gt", bytecode.OP_GREATER_THAN, 6, 5, true},
		{"gt-inclusive", bytecode.OP_GREATER_THAN, 5, 5, true},
		{"gt-not", bytecode.OP_GREATER_THAN, 4, 5, false},
		{"gt-unsigned", bytecode.OP_GREATER_THAN, 0xffffffff, 1, true},
		{"lt", bytecode.OP_LESS_THAN, 4, 5, true},
		{"lt-inclusive", bytecode.OP_LESS_THAN, 5, 5, true},
		{"lt-not", bytecode.OP_LESS_THAN, 6, 5, false},
	}

	for _, entry := range table {
		_, output, err := run(t, single(words(
			op(bytecode.OP_LOAD_I32, 0, entry.a),
			op(bytecode.OP_LOAD_I32, 1, entry.b),
			op(entry.opcode, 2, 0, 1),
			op(bytecode.OP_PRINT, 0),
		)))
		assert.NoError(err, entry.name)
		assert.Equal(!entry.taken, output != "", entry.name)
	}

	// Jmpif branches on zero, jmpnif on non-zero.
	for _, value := range []uint64{0, 1} {
		_, output, err := run(t, single(words(
			op(bytecode.OP_LOAD_F64, 0, value),
			op(bytecode.OP_JMPIF, 2, 0),
			op(bytecode.OP_PRINT, 0),
			op(bytecode.OP_JMPNIF, 2, 0),
			op(bytecode.OP_PRINT, 0),
		)))
		assert.NoError(err)
		assert.Equal(1, strings.Count(output, "\n"), "%d", value)
	}

	// A branch to the end of the code terminates.
	vm, _, err := run(t, single(op(bytecode.OP_JMP, 0)))
	assert.NoError(err)
	assert.True(vm.Halted)
	assert.Equal(uint64(2), vm.Ip)
}

func callProgram() *bytecode.Program {
	return &bytecode.Program{
		Functions: []bytecode.FunctionEntry{
			{Entry: 0, Registers: 4},
			{Entry: 13, Registers: 3, ArgKinds: []bytecode.Kind{bytecode.KIND_I32, bytecode.KIND_I32},
				Return: bytecode.KIND_I32, HasReturn: true},
		},
		Code: words(
			op(bytecode.OP_LOAD_I32, 1, 20),
			op(bytecode.OP_LOAD_I32, 2, 22),
			op(bytecode.OP_CALL, 1, 0, 1),
			op(bytecode.OP_PRINT, 0),
			op(bytecode.OP_HALT),
			// add
			op(bytecode.OP_ADD_I32, 0, 0, 1),
			op(bytecode.OP_RET),
		),
	}
}

func TestVm_Call(t *testing.T) {
	assert := assert.New(t)

	var out bytes.Buffer
	vm, err := New(callProgram(), WithOutput(&out))
	assert.NoError(err)

	for range 3 {
		_, err = vm.Step()
		assert.NoError(err)
	}
	assert.Equal(2, vm.Stack.Len())
	assert.Equal(uint64(13), vm.Ip)
	assert.Equal(bytecode.I32(20), reg(t, vm, 0))
	assert.Equal(bytecode.I32(22), reg(t, vm, 1))
	assert.Equal(bytecode.Register{}, reg(t, vm, 2))

	for range 2 {
		_, err = vm.Step()
		assert.NoError(err)
	}
	assert.Equal(1, vm.Stack.Len())
	assert.Equal(uint64(10), vm.Ip)
	assert.Equal(bytecode.I32(42), reg(t, vm, 0))

	assert.NoError(vm.Run())
	assert.Equal("r0: 42 i32\n", out.String())
}

func TestVm_CallNoDestination(t *testing.T) {
	assert := assert.New(t)

	prog := callProgram()
	prog.Code[8] = bytecode.NO_REGISTER

	vm, output, err := run(t, prog)
	assert.NoError(err)
	assert.Equal(bytecode.Register{}, reg(t, vm, 0))
	assert.Equal("r0: 0 i32\n", output)
}

func TestVm_CallKinds(t *testing.T) {
	assert := assert.New(t)

	// Argument kind mismatch
	prog := callProgram()
	prog.Code[0] = uint64(bytecode.OP_LOAD_I64)
	_, _, err := run(t, prog)
	assert.ErrorIs(err, ErrKindMismatch)
	var fault *Fault
	assert.True(errors.As(err, &fault))
	assert.Equal(bytecode.OP_CALL, fault.Opcode)

	// Return kind mismatch
	prog = callProgram()
	prog.Functions[1].Return = bytecode.KIND_F64
	_, _, err = run(t, prog)
	assert.ErrorIs(err, ErrKindMismatch)
	assert.True(errors.As(err, &fault))
	assert.Equal(bytecode.OP_RET, fault.Opcode)

	// Return kind mismatch, result discarded
	prog = callProgram()
	prog.Functions[1].Return = bytecode.KIND_F64
	prog.Code[8] = bytecode.NO_REGISTER
	_, _, err = run(t, prog)
	assert.ErrorIs(err, ErrKindMismatch)
	assert.True(errors.As(err, &fault))
	assert.Equal(bytecode.OP_RET, fault.Opcode)

	// Return kind mismatch from the entry function
	prog = single(words(
		op(bytecode.OP_LOAD_F64, 0, math.Float64bits(1)),
		op(bytecode.OP_RET),
	))
	prog.Functions[0].Return = bytecode.KIND_I32
	prog.Functions[0].HasReturn = true
	_, _, err = run(t, prog)
	assert.ErrorIs(err, ErrKindMismatch)

	// Argument window past the register file
	prog = callProgram()
	prog.Code[9] = bytecode.FRAME_REGISTERS - 1
	_, _, err = run(t, prog)
	assert.ErrorIs(err, ErrRegister)
}

func TestVm_StackOverflow(t *testing.T) {
	assert := assert.New(t)

	prog := single(op(bytecode.OP_CALL, 0, bytecode.NO_REGISTER, 0))

	vm, _, err := run(t, prog, WithMaxCallDepth(8))
	assert.ErrorIs(err, ErrStackOverflow)
	assert.Equal(8, vm.Stack.Len())
	assert.Equal(8, vm.Ticks)
}

func TestVm_Heap(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, single(words(
		op(bytecode.OP_ALLOC, 0, 4, 4),
		op(bytecode.OP_LOAD_I32, 1, 0x12345678),
		op(bytecode.OP_STORE, 0, 1),
		op(bytecode.OP_ADD_I32_PTR, 0, 1, 4),
		op(bytecode.OP_STORE, 0, 1),
		op(bytecode.OP_ADD_I32_PTR, 0, off(-1), 4),
		op(bytecode.OP_FETCH, 2, 0, uint64(bytecode.KIND_I32)),
		op(bytecode.OP_ADD_I64_PTR, 0, 3, 4),
		op(bytecode.OP_FETCH, 3, 0, uint64(bytecode.KIND_I64)),
	)))
	assert.NoError(err)

	assert.Equal(bytecode.Ptr(0, 12), reg(t, vm, 0))
	assert.Equal(bytecode.I32(0x12345678), reg(t, vm, 2))
	assert.Equal(bytecode.I64(0), reg(t, vm, 3))

	obj, err := vm.Heap.Get(0)
	assert.NoError(err)
	assert.Equal(heap.OBJECT_VECTOR, obj.Type)
	assert.Equal([]byte{0x78, 0x56, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0, 0, 0, 0, 0, 0, 0, 0}, obj.Data)
}

func TestVm_HeapReuse(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, single(words(
		op(bytecode.OP_ALLOC, 0, 1, 8),
		op(bytecode.OP_FREE, 0),
		op(bytecode.OP_ALLOC, 1, 2, 8),
	)))
	assert.NoError(err)
	assert.Equal(bytecode.Ptr(1<<heap.SLOT_BITS, 0), reg(t, vm, 1))
	assert.Equal(1, vm.Heap.Len())
}

func TestVm_HeapFaults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		code []uint64
		err  error
	}){
		{"use-after-free", words(
			op(bytecode.OP_ALLOC, 0, 1, 8),
			op(bytecode.OP_FREE, 0),
			op(bytecode.OP_FETCH, 1, 0, uint64(bytecode.KIND_I64)),
		), heap.ErrFreed},
		{"stale-after-reuse", words(
			op(bytecode.OP_ALLOC, 0, 1, 8),
			op(bytecode.OP_MOV, 1, 0),
			op(bytecode.OP_FREE, 0),
			op(bytecode.OP_ALLOC, 2, 1, 8),
			op(bytecode.OP_LOAD_I64, 3, 77),
			op(bytecode.OP_STORE, 1, 3),
		), heap.ErrFreed},
		{"stale-free-after-reuse", words(
			op(bytecode.OP_ALLOC, 0, 1, 8),
			op(bytecode.OP_MOV, 1, 0),
			op(bytecode.OP_FREE, 0),
			op(bytecode.OP_ALLOC, 2, 1, 8),
			op(bytecode.OP_FREE, 1),
		), heap.ErrFreed},
		{"double-free", words(
			op(bytecode.OP_ALLOC, 0, 1, 8),
			op(bytecode.OP_FREE, 0),
			op(bytecode.OP_FREE, 0),
		), heap.ErrFreed},
		{"never-allocated", words(
			op(bytecode.OP_LOAD_I64, 0, 5<<32),
			op(bytecode.OP_CAST, 0, 0, uint64(bytecode.KIND_PTR)),
			op(bytecode.OP_STORE, 0, 0),
		), heap.ErrIndex},
		{"bounds", words(
			op(bytecode.OP_ALLOC, 0, 2, 4),
			op(bytecode.OP_ADD_I32_PTR, 0, 2, 4),
			op(bytecode.OP_STORE, 0, 0),
		), heap.ErrBounds},
		{"word-size", op(bytecode.OP_ALLOC, 0, 2, 3), heap.ErrWordSize},
		{"too-large", op(bytecode.OP_ALLOC, 0, 1<<40, 8), ErrObjectSize},
		{"overflow", op(bytecode.OP_ALLOC, 0, 1<<62, 8), ErrObjectSize},
		{"full", words(
			op(bytecode.OP_ALLOC, 0, 1, 1),
			op(bytecode.OP_ALLOC, 0, 1, 1),
			op(bytecode.OP_ALLOC, 0, 1, 1),
		), heap.ErrFull},
	}

	for _, entry := range table {
		_, _, err := run(t, single(entry.code), WithHeapCapacity(2))
		assert.ErrorIs(err, entry.err, entry.name)
	}

	// The object in the reused slot is untouched by the stale store.
	var out bytes.Buffer
	vm, err := New(single(words(
		op(bytecode.OP_ALLOC, 0, 1, 8),
		op(bytecode.OP_MOV, 1, 0),
		op(bytecode.OP_FREE, 0),
		op(bytecode.OP_ALLOC, 2, 1, 8),
		op(bytecode.OP_LOAD_I64, 3, 77),
		op(bytecode.OP_STORE, 1, 3),
	)), WithOutput(&out))
	assert.NoError(err)
	assert.ErrorIs(vm.Run(), heap.ErrFreed)
	obj, err := vm.Heap.Get(reg(t, vm, 2).Bits >> 32)
	assert.NoError(err)
	assert.Equal(make([]byte, 8), obj.Data)
}

func TestCast(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		src      bytecode.Register
		kind     bytecode.Kind
		expected bytecode.Register
		err      error
	}){
		{"i32-i64", bytecode.I32(-2), bytecode.KIND_I64, bytecode.I64(-2), nil},
		{"i64-i32", bytecode.I64(0x1_0000_0005), bytecode.KIND_I32, bytecode.I32(5), nil},
		{"i32-f64", bytecode.I32(-3), bytecode.KIND_F64, bytecode.F64(-3), nil},
		{"i64-f32", bytecode.I64(1 << 20), bytecode.KIND_F32, bytecode.F32(1 << 20), nil},
		{"f64-i32", bytecode.F64(-3.75), bytecode.KIND_I32, bytecode.I32(-3), nil},
		{"f32-i64", bytecode.F32(1e10), bytecode.KIND_I64, bytecode.I64(10000000000), nil},
		{"f32-f64", bytecode.F32(0.5), bytecode.KIND_F64, bytecode.F64(0.5), nil},
		{"f64-f32", bytecode.F64(0.25), bytecode.KIND_F32, bytecode.F32(0.25), nil},
		{"same", bytecode.F64(7), bytecode.KIND_F64, bytecode.F64(7), nil},
		{"ptr-i64", bytecode.Ptr(2, 3), bytecode.KIND_I64, bytecode.I64(2<<32 | 3), nil},
		{"i64-ptr", bytecode.I64(2<<32 | 3), bytecode.KIND_PTR, bytecode.Ptr(2, 3), nil},
		{"f64-i32-range", bytecode.F64(3e9), bytecode.KIND_I32, bytecode.Register{}, ErrCastRange},
		{"f64-i64-range", bytecode.F64(1e19), bytecode.KIND_I64, bytecode.Register{}, ErrCastRange},
		{"f32-i32-nan", bytecode.F32(float32(math.NaN())), bytecode.KIND_I32, bytecode.Register{}, ErrCastRange},
		{"ptr-i32", bytecode.Ptr(1, 1), bytecode.KIND_I32, bytecode.Register{}, ErrKindMismatch},
		{"f64-ptr", bytecode.F64(1), bytecode.KIND_PTR, bytecode.Register{}, ErrKindMismatch},
	}

	for _, entry := range table {
		got, err := Cast(entry.src, entry.kind)
		if entry.err != nil {
			assert.ErrorIs(err, entry.err, entry.name)
			continue
		}
		assert.NoError(err, entry.name)
		assert.Equal(entry.expected, got, entry.name)
	}
}

func TestVm_HandlerWidth(t *testing.T) {
	assert := assert.New(t)

	for code := range bytecode.Opcodes() {
		if code == bytecode.OP_CALL {
			continue
		}
		operands := make([]uint64, code.Operands())
		if code == bytecode.OP_ALLOC {
			operands = []uint64{0, 1, 8}
		}
		vm, err := New(single(words(op(code, operands...), op(bytecode.OP_HALT))), WithOutput(io.Discard))
		assert.NoError(err)

		_, err = vm.Step()
		if errors.Is(err, ErrKindMismatch) || errors.Is(err, ErrDivideByZero) {
			continue
		}
		assert.NoError(err, code.String())
		assert.Equal(uint64(1+code.Operands()), vm.Ip, code.String())
	}
}

func TestVm_New(t *testing.T) {
	assert := assert.New(t)

	_, err := New(&bytecode.Program{})
	assert.ErrorIs(err, bytecode.ErrEntryIndex)

	_, err = New(&bytecode.Program{
		Functions: []bytecode.FunctionEntry{{Entry: 2}},
		Code:      []uint64{0},
	})
	assert.ErrorIs(err, bytecode.ErrFunctionOffset)

	table := [](struct {
		name  string
		entry bytecode.FunctionEntry
	}){
		{"registers", bytecode.FunctionEntry{Registers: bytecode.FRAME_REGISTERS + 100}},
		{"args", bytecode.FunctionEntry{Registers: 1, ArgKinds: []bytecode.Kind{bytecode.KIND_I32, bytecode.KIND_I32}}},
	}
	for _, entry := range table {
		prog := callProgram()
		prog.Functions = append(prog.Functions, entry.entry)
		vm, err := New(prog)
		assert.Nil(vm, entry.name)
		assert.ErrorIs(err, bytecode.ErrRegisterCount, entry.name)
	}

	vm, _, err := run(t, callProgram())
	assert.NoError(err)
	assert.NoError(vm.Reset())
	assert.False(vm.Halted)
	assert.Equal(0, vm.Ticks)
	assert.Equal(1, vm.Stack.Len())
	assert.Equal(bytecode.Register{}, reg(t, vm, 0))
}

func TestVm_String(t *testing.T) {
	assert := assert.New(t)

	vm, _, err := run(t, callProgram())
	assert.NoError(err)

	text := vm.String()
	assert.Contains(text, "    ip: 000d\n")
	assert.Contains(text, "    r0: 42 i32\n")
	assert.Contains(text, "    r3: 0 i32\n")
	assert.NotContains(text, "r4:")
}

func TestVm_Defines(t *testing.T) {
	assert := assert.New(t)

	defines := maps.Collect(Defines(WithMaxCallDepth(16), WithHeapCapacity(0)))
	assert.Equal("0x10", defines["MAX_CALL_DEPTH"])
	assert.Equal("0x0", defines["HEAP_CAPACITY"])
	assert.Equal("0x12c", defines["FRAME_REGISTERS"])
	assert.Equal("0x4", defines["KIND_PTR"])

	defines = maps.Collect(Defines())
	assert.Equal("0x400", defines["MAX_CALL_DEPTH"])
	assert.Equal("0x3e8", defines["HEAP_CAPACITY"])
}

func TestVm_Verbose(t *testing.T) {
	assert := assert.New(t)

	vm, output, err := run(t, callProgram(), WithVerbose(true))
	assert.NoError(err)
	assert.True(vm.Verbose)
	assert.Equal("r0: 42 i32\n", output)
}
