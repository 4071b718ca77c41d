package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"fortio.org/safecast"
)

const (
	MAGIC       = uint32(0x44564D31) // Program image magic.
	VERSION     = uint32(1)          // Format version written by MarshalBinary.
	HEADER_SIZE = 4 + 4 + 4 + 4 + 4 + 8

	minFunctionSize = 8 + 2 + 2 + 1 + 4
)

// Program is a loaded program image. It is immutable once built.
type Program struct {
	Version       uint32
	EntryIndex    uint32          // Index into Functions of the start function.
	ConstantCount uint32          // Reserved; the constant table has no payload yet.
	Functions     []FunctionEntry // Function table.
	Code          []uint64        // Instruction stream.
}

// reader reads little-endian fields, checking length before every slice.
type reader struct {
	data   []byte
	offset int
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

func (r *reader) take(field string, n int) (b []byte, err error) {
	if n < 0 || r.remaining() < n {
		err = &ErrLoad{Offset: r.offset, Field: field, Err: ErrTruncated}
		return
	}
	b = r.data[r.offset : r.offset+n]
	r.offset += n
	return
}

func (r *reader) u8(field string) (v uint8, err error) {
	b, err := r.take(field, 1)
	if err == nil {
		v = b[0]
	}
	return
}

func (r *reader) u16(field string) (v uint16, err error) {
	b, err := r.take(field, 2)
	if err == nil {
		v = binary.LittleEndian.Uint16(b)
	}
	return
}

func (r *reader) u32(field string) (v uint32, err error) {
	b, err := r.take(field, 4)
	if err == nil {
		v = binary.LittleEndian.Uint32(b)
	}
	return
}

func (r *reader) u64(field string) (v uint64, err error) {
	b, err := r.take(field, 8)
	if err == nil {
		v = binary.LittleEndian.Uint64(b)
	}
	return
}

// Load parses a program image.
func Load(data []byte) (prog *Program, err error) {
	r := &reader{data: data}

	magic, err := r.u32("magic")
	if err != nil {
		return
	}
	if magic != MAGIC {
		err = &ErrLoad{Offset: 0, Field: "magic", Err: ErrInvalidMagic}
		return
	}

	p := &Program{}
	if p.Version, err = r.u32("version"); err != nil {
		return
	}
	functions, err := r.u32("function count")
	if err != nil {
		return
	}
	if p.EntryIndex, err = r.u32("entry index"); err != nil {
		return
	}
	if p.ConstantCount, err = r.u32("constant count"); err != nil {
		return
	}
	words_at := r.offset
	words, err := r.u64("word count")
	if err != nil {
		return
	}

	if int64(functions) > int64(r.remaining()/minFunctionSize) {
		err = &ErrLoad{Offset: r.offset, Field: "function table", Err: ErrTruncated}
		return
	}
	p.Functions = make([]FunctionEntry, 0, functions)
	entry_at := make([]int, 0, functions)
	for range functions {
		at := r.offset
		entry_at = append(entry_at, at)
		var fe FunctionEntry
		fe, err = readFunction(r)
		if err != nil {
			return
		}
		if int(fe.Registers) > FRAME_REGISTERS || fe.Args() > int(fe.Registers) {
			err = &ErrLoad{Offset: at, Field: "function registers", Err: ErrRegisterCount}
			return
		}
		p.Functions = append(p.Functions, fe)
	}

	if p.EntryIndex >= functions {
		err = &ErrLoad{Offset: 12, Field: "entry index", Err: ErrEntryIndex}
		return
	}

	if words > uint64(r.remaining()/8) {
		err = &ErrLoad{Offset: r.offset, Field: "code", Err: ErrTruncated}
		return
	}
	count, err := safecast.Convert[int](words)
	if err != nil {
		err = &ErrLoad{Offset: words_at, Field: "word count", Err: err}
		return
	}
	for n, fe := range p.Functions {
		if fe.Entry > words {
			err = &ErrLoad{Offset: entry_at[n], Field: fmt.Sprintf("function %d entry", n), Err: ErrFunctionOffset}
			return
		}
	}

	p.Code = make([]uint64, count)
	for n := range p.Code {
		p.Code[n], err = r.u64("code")
		if err != nil {
			return
		}
	}

	prog = p
	return
}

// UnmarshalBinary replaces the program with the decoded image.
func (prog *Program) UnmarshalBinary(data []byte) (err error) {
	p, err := Load(data)
	if err != nil {
		return
	}

	*prog = *p
	return
}

// MarshalBinary encodes the program image. A zero Version is written as VERSION.
func (prog *Program) MarshalBinary() (data []byte, err error) {
	version := prog.Version
	if version == 0 {
		version = VERSION
	}

	functions, err := tableCount(len(prog.Functions))
	if err != nil {
		return
	}

	data = make([]byte, 0, HEADER_SIZE+len(prog.Functions)*minFunctionSize+len(prog.Code)*8)
	data = binary.LittleEndian.AppendUint32(data, MAGIC)
	data = binary.LittleEndian.AppendUint32(data, version)
	data = binary.LittleEndian.AppendUint32(data, functions)
	data = binary.LittleEndian.AppendUint32(data, prog.EntryIndex)
	data = binary.LittleEndian.AppendUint32(data, prog.ConstantCount)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(prog.Code)))
	for n := range prog.Functions {
		data, err = prog.Functions[n].AppendBinary(data)
		if err != nil {
			data = nil
			return
		}
	}
	for _, word := range prog.Code {
		data = binary.LittleEndian.AppendUint64(data, word)
	}

	return
}

// tableCount checks that a function table length fits its header field.
func tableCount(n int) (count uint32, err error) {
	count, err = safecast.Convert[uint32](n)
	if err != nil {
		err = errors.Join(ErrFunctionCount, err)
	}
	return
}

// Entry returns the start function.
func (prog *Program) Entry() *FunctionEntry {
	if int(prog.EntryIndex) >= len(prog.Functions) {
		return nil
	}
	return &prog.Functions[prog.EntryIndex]
}

// Instruction is a decoded instruction from the code stream.
type Instruction struct {
	Opcode   Opcode
	Operands []uint64
	Valid    bool // False for undecodable or truncated words.
	Word     uint64
}

// Next returns the address following the instruction.
func (ins Instruction) Next(ip uint64) uint64 {
	if !ins.Valid {
		return ip + 1
	}
	return ip + 1 + uint64(len(ins.Operands))
}

// String returns the assembler form of the instruction.
func (ins Instruction) String() string {
	if !ins.Valid {
		return fmt.Sprintf(".word %#x", ins.Word)
	}

	words := []string{ins.Opcode.String()}
	for n, kind := range ins.Opcode.Signature() {
		value := ins.Operands[n]
		switch kind {
		case OPERAND_REG:
			words = append(words, fmt.Sprintf("r%d", value))
		case OPERAND_DST:
			if value == NO_REGISTER {
				words = append(words, "-")
			} else {
				words = append(words, fmt.Sprintf("r%d", value))
			}
		case OPERAND_OFFSET:
			words = append(words, fmt.Sprintf("%+d", int64(value)))
		case OPERAND_KIND:
			words = append(words, Kind(value).String())
		case OPERAND_FUNC:
			words = append(words, fmt.Sprintf("%d", value))
		default:
			words = append(words, fmt.Sprintf("%#x", value))
		}
	}

	return strings.Join(words, " ")
}

// Instructions iterates over the code stream by address. An undecodable word,
// or an instruction whose operands run past the end, is yielded as invalid
// and decoding resumes at the following word.
func (prog *Program) Instructions() iter.Seq2[uint64, Instruction] {
	return func(yield func(ip uint64, ins Instruction) bool) {
		code := prog.Code
		for ip := uint64(0); ip < uint64(len(code)); {
			word := code[ip]
			ins := Instruction{Word: word}
			op, ok := Decode(word)
			end := ip + 1 + uint64(op.Operands())
			if ok && end <= uint64(len(code)) {
				ins.Opcode = op
				ins.Operands = code[ip+1 : end]
				ins.Valid = true
			}
			if !yield(ip, ins) {
				return
			}
			ip = ins.Next(ip)
		}
	}
}

// Disassemble writes a listing of the program.
func (prog *Program) Disassemble(w io.Writer) (err error) {
	for n, fe := range prog.Functions {
		ret := "void"
		if fe.HasReturn {
			ret = fe.Return.String()
		}
		args := make([]string, len(fe.ArgKinds))
		for i, kind := range fe.ArgKinds {
			args[i] = kind.String()
		}
		entry := ""
		if uint32(n) == prog.EntryIndex {
			entry = " entry"
		}
		_, err = fmt.Fprintf(w, "; func %d @%04x regs=%d args=[%s] ret=%s flags=%#x%s\n",
			n, fe.Entry, fe.Registers, strings.Join(args, ","), ret, fe.Flags, entry)
		if err != nil {
			return
		}
	}

	for ip, ins := range prog.Instructions() {
		_, err = fmt.Fprintf(w, "%04x: %v\n", ip, ins)
		if err != nil {
			return
		}
	}

	return
}
