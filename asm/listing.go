package asm

import (
	"iter"

	"github.com/ezrec/dvm/bytecode"
)

// Statement is one assembled source line.
type Statement struct {
	LineNo int      // Source line (or macro line) number.
	Ip     uint64   // Address of the first word.
	Words  []string // Source words after expansion.
	Code   []uint64 // Encoded words.
	Link   []Link   // Operands resolved after parsing.
}

// Link is an operand that names a label or a function.
type Link struct {
	Index int              // Index into Statement.Code.
	Kind  bytecode.Operand // OPERAND_OFFSET or OPERAND_FUNC.
	Name  string
}

// Function is a function declared by .func.
type Function struct {
	Name   string
	LineNo int
	bytecode.FunctionEntry
}

// Listing is the output of the assembler.
type Listing struct {
	Statements []Statement
	Functions  []Function
	EntryIndex uint32
}

// Debug locates an address within the listing.
type Debug struct {
	*Statement
	Index int // Word index within the statement.
}

// Debug returns the statement containing ip, if any.
func (lst *Listing) Debug(ip uint64) (dbg Debug) {
	for n, stmt := range lst.Statements {
		if ip >= stmt.Ip && ip < stmt.Ip+uint64(len(stmt.Code)) {
			dbg = Debug{
				Statement: &lst.Statements[n],
				Index:     int(ip - stmt.Ip),
			}
			break
		}
	}

	return
}

// LineNo returns the source line of the statement containing ip, or 0.
func (lst *Listing) LineNo(ip uint64) int {
	dbg := lst.Debug(ip)
	if dbg.Statement == nil {
		return 0
	}
	return dbg.LineNo
}

// Code iterates over every assembled word by address.
func (lst *Listing) Code() iter.Seq2[uint64, uint64] {
	return func(yield func(ip uint64, word uint64) bool) {
		for _, stmt := range lst.Statements {
			for n, word := range stmt.Code {
				if !yield(stmt.Ip+uint64(n), word) {
					return
				}
			}
		}
	}
}

// Program builds the program image.
func (lst *Listing) Program() (prog *bytecode.Program) {
	prog = &bytecode.Program{
		Version:    bytecode.VERSION,
		EntryIndex: lst.EntryIndex,
	}

	for _, fn := range lst.Functions {
		prog.Functions = append(prog.Functions, fn.FunctionEntry)
	}

	for _, word := range lst.Code() {
		prog.Code = append(prog.Code, word)
	}

	return
}

// Binary returns the encoded program image.
func (lst *Listing) Binary() ([]byte, error) {
	return lst.Program().MarshalBinary()
}
