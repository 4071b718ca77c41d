package bytecode

import (
	"iter"
	"maps"
	"slices"
)

// Opcode selects the handler for an instruction. It occupies the low 16 bits
// of an opcode word; the upper 48 bits are reserved and must be zero.
type Opcode uint16

//go:generate go tool stringer -linecomment -type=Opcode
const (
	OP_LOAD_I32     = Opcode(0)  // loadi32
	OP_LOAD_I64     = Opcode(1)  // loadi64
	OP_LOAD_F32     = Opcode(2)  // loadf32
	OP_LOAD_F64     = Opcode(3)  // loadf64
	OP_MOV          = Opcode(4)  // mov
	OP_ADD_I32      = Opcode(5)  // addi32
	OP_ADD_I64      = Opcode(6)  // addi64
	OP_ADD_F32      = Opcode(7)  // addf32
	OP_ADD_F64      = Opcode(8)  // addf64
	OP_SUB_I32      = Opcode(9)  // subi32
	OP_SUB_I64      = Opcode(10) // subi64
	OP_SUB_F32      = Opcode(11) // subf32
	OP_SUB_F64      = Opcode(12) // subf64
	OP_MUL_I32      = Opcode(13) // muli32
	OP_MUL_I64      = Opcode(14) // muli64
	OP_MUL_F32      = Opcode(15) // mulf32
	OP_MUL_F64      = Opcode(16) // mulf64
	OP_DIV_I32      = Opcode(17) // divi32
	OP_DIV_I64      = Opcode(18) // divi64
	OP_DIV_F32      = Opcode(19) // divf32
	OP_DIV_F64      = Opcode(20) // divf64
	OP_EQUAL        = Opcode(21) // eq
	OP_GREATER_THAN = Opcode(22) // gt
	OP_LESS_THAN    = Opcode(23) // lt
	OP_CALL         = Opcode(24) // call
	OP_JMP          = Opcode(25) // jmp
	OP_JMPIF        = Opcode(26) // jmpif
	OP_JMPNIF       = Opcode(27) // jmpnif
	OP_PRINT        = Opcode(28) // print
	OP_ADD_I32_PTR  = Opcode(29) // addi32ptr
	OP_ADD_I64_PTR  = Opcode(30) // addi64ptr
	OP_RET          = Opcode(31) // ret
	OP_HALT         = Opcode(32) // halt
	OP_CAST         = Opcode(33) // cast
	OP_ALLOC        = Opcode(34) // alloc
	OP_FREE         = Opcode(35) // free
	OP_FETCH        = Opcode(36) // fetch
	OP_STORE        = Opcode(37) // store
)

// OPCODE_COUNT is the number of defined opcodes.
const OPCODE_COUNT = int(OP_STORE) + 1

// Operand describes how an operand word is interpreted.
type Operand byte

const (
	OPERAND_REG    = Operand('r') // Register index.
	OPERAND_DST    = Operand('d') // Register index, or NO_REGISTER.
	OPERAND_IMM    = Operand('i') // Immediate value.
	OPERAND_OFFSET = Operand('o') // Signed branch offset.
	OPERAND_FUNC   = Operand('f') // Function table index.
	OPERAND_KIND   = Operand('k') // Value kind.
)

// NO_REGISTER is the destination operand meaning "discard".
const NO_REGISTER = ^uint64(0)

var signature = [OPCODE_COUNT]string{
	OP_LOAD_I32:     "ri",
	OP_LOAD_I64:     "ri",
	OP_LOAD_F32:     "ri",
	OP_LOAD_F64:     "ri",
	OP_MOV:          "rr",
	OP_ADD_I32:      "rrr",
	OP_ADD_I64:      "rrr",
	OP_ADD_F32:      "rrr",
	OP_ADD_F64:      "rrr",
	OP_SUB_I32:      "rrr",
	OP_SUB_I64:      "rrr",
	OP_SUB_F32:      "rrr",
	OP_SUB_F64:      "rrr",
	OP_MUL_I32:      "rrr",
	OP_MUL_I64:      "rrr",
	OP_MUL_F32:      "rrr",
	OP_MUL_F64:      "rrr",
	OP_DIV_I32:      "rrr",
	OP_DIV_I64:      "rrr",
	OP_DIV_F32:      "rrr",
	OP_DIV_F64:      "rrr",
	OP_EQUAL:        "orr",
	OP_GREATER_THAN: "orr",
	OP_LESS_THAN:    "orr",
	OP_CALL:         "fdr",
	OP_JMP:          "o",
	OP_JMPIF:        "or",
	OP_JMPNIF:       "or",
	OP_PRINT:        "r",
	OP_ADD_I32_PTR:  "rii",
	OP_ADD_I64_PTR:  "rii",
	OP_RET:          "",
	OP_HALT:         "",
	OP_CAST:         "rrk",
	OP_ALLOC:        "rii",
	OP_FREE:         "r",
	OP_FETCH:        "rrk",
	OP_STORE:        "rr",
}

var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, OPCODE_COUNT)
	for op := range Opcodes() {
		m[op.String()] = op
	}
	return m
}()

// Opcodes iterates over all defined opcodes in numeric order.
func Opcodes() iter.Seq[Opcode] {
	return func(yield func(Opcode) bool) {
		for n := range OPCODE_COUNT {
			if !yield(Opcode(n)) {
				return
			}
		}
	}
}

// Lookup finds an opcode by its mnemonic.
func Lookup(mnemonic string) (op Opcode, ok bool) {
	op, ok = mnemonics[mnemonic]
	return
}

// Mnemonics returns all mnemonics, sorted.
func Mnemonics() []string {
	return slices.Sorted(maps.Keys(mnemonics))
}

// Valid returns true if op is a defined opcode.
func (op Opcode) Valid() bool {
	return int(op) < OPCODE_COUNT
}

// Signature returns the operand layout of the opcode.
func (op Opcode) Signature() []Operand {
	if !op.Valid() {
		return nil
	}
	return []Operand(signature[op])
}

// Operands returns the number of operand words following the opcode word.
func (op Opcode) Operands() int {
	if !op.Valid() {
		return 0
	}
	return len(signature[op])
}

// Branches returns true if the opcode takes a branch offset.
func (op Opcode) Branches() bool {
	sig := op.Signature()
	return len(sig) > 0 && sig[0] == OPERAND_OFFSET
}

// Decode splits an opcode word into its opcode. Words with reserved bits set,
// or naming an undefined opcode, do not decode.
func Decode(word uint64) (op Opcode, ok bool) {
	if word>>16 != 0 {
		return
	}
	op = Opcode(word)
	ok = op.Valid()
	return
}
