// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package asm implements a macro assembler for dvm programs.
//
// Each source line holds an optional label, then a mnemonic and its operands
// separated by spaces or commas. Text after ';' is a comment.
//
//	.func main 3 void         ; name, registers, return kind, argument kinds...
//	    loadi32 r0 1
//	loop:
//	    subi32 r1 r1 r0
//	    jmpnif loop r1
//	    call add r2 r0        ; function, destination (or -), first argument
//	    halt
//
// Equates (.equ), macros (.macro/.endm, with '@' expanding to a unique
// prefix), character constants ('c') and compile-time $(...) expressions are
// expanded before the line is assembled.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/ezrec/dvm/bytecode"
	"github.com/tliron/commonlog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var log = commonlog.GetLogger("dvm.asm")

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reName       = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
)

// Assembler is a single pass macro assembler for dvm programs.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string   // Predefines
	Label     map[string]uint64   // Map of jump labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
	Function  []Function          // Declared functions, in table order.

	entry     string
	expansion int
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint64, err error) {
	invert := false
	if strings.HasPrefix(word, "~") {
		invert = true
		word = word[1:]
	}

	v64, err := strconv.ParseInt(word, 0, 64)
	if err == nil {
		value = uint64(v64)
	} else {
		value, err = strconv.ParseUint(word, 0, 64)
		if err != nil {
			err = ErrParseNumber(word)
			return
		}
	}

	if invert {
		value = ^value
	}

	return
}

// floatOf returns the bit pattern of a float word. Hexadecimal words are taken
// as raw bits.
func (asm *Assembler) floatOf(word string, size int) (value uint64, err error) {
	lower := strings.ToLower(strings.TrimPrefix(word, "-"))
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(word, "~") {
		return asm.valueOf(word)
	}

	fv, err := strconv.ParseFloat(word, size)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if size == 32 {
		value = uint64(math.Float32bits(float32(fv)))
	} else {
		value = math.Float64bits(fv)
	}
	return
}

// register returns the index of an rN word.
func (asm *Assembler) register(word string) (index uint64, err error) {
	if len(word) < 2 || word[0] != 'r' {
		err = ErrRegisterInvalid
		return
	}

	index, err = strconv.ParseUint(word[1:], 10, 16)
	if err != nil || index >= bytecode.FRAME_REGISTERS {
		err = ErrRegisterInvalid
		return
	}

	return
}

// kindOf returns a kind by name or number.
func (asm *Assembler) kindOf(word string) (kind bytecode.Kind, err error) {
	kind, ok := bytecode.ParseKind(word)
	if ok {
		return
	}

	value, err := asm.valueOf(word)
	if err != nil || value > uint64(bytecode.KIND_PTR) {
		err = ErrKindInvalid
		return
	}

	kind = bytecode.Kind(value)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value string, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value64 uint64
		value64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeUint64(value64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}

	switch rc := dict["rc"].(type) {
	case starlark.Int:
		if i64, ok := rc.Int64(); ok {
			value = strconv.FormatInt(i64, 10)
		} else if u64, ok := rc.Uint64(); ok {
			value = strconv.FormatUint(u64, 10)
		} else {
			err = ErrParseExpression(expr)
		}
	case starlark.Float:
		value = strconv.FormatFloat(float64(rc), 'g', -1, 64)
	default:
		err = ErrParseExpression(expr)
	}

	return
}

// splitWords splits a line on spaces and commas.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// parseLine parses a single line into words, expanding macros.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "0":
				str = "\000"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return value
	})
	if err != nil {
		return
	}

	words = splitWords(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		asm.Label[label] = asm.currentIp()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		prefix := fmt.Sprintf("%v_%v_", name, asm.expansion)
		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", prefix)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentIp gets the address of the next word.
func (asm *Assembler) currentIp() uint64 {
	if len(asm.Statement) == 0 {
		return 0
	}

	last := asm.Statement[len(asm.Statement)-1]

	return last.Ip + uint64(len(last.Code))
}

// Parse parses an input stream into a Listing.
func (asm *Assembler) Parse(input io.Reader) (lst *Listing, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint64, 16)
	asm.Statement = asm.Statement[:0]
	asm.Function = asm.Function[:0]
	asm.entry = ""
	asm.expansion = 0
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Debugf("%v: %v", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if err = scanner.Err(); err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Without any .func, the whole program is one function.
	if len(asm.Function) == 0 {
		asm.Function = append(asm.Function, Function{
			Name:          "main",
			FunctionEntry: bytecode.FunctionEntry{Registers: bytecode.FRAME_REGISTERS},
		})
	}

	entry := 0
	if asm.entry != "" {
		var ok bool
		entry, ok = asm.functionIndex(asm.entry)
		if !ok {
			err = ErrFunctionMissing(asm.entry)
			return
		}
	} else if index, ok := asm.functionIndex("main"); ok {
		entry = index
	}

	// Final linking of labels and function names.
	for n := range asm.Statement {
		stmt := &asm.Statement[n]
		for _, link := range stmt.Link {
			switch link.Kind {
			case bytecode.OPERAND_OFFSET:
				ip, ok := asm.Label[link.Name]
				if !ok {
					err = ErrLabelMissing(link.Name)
					break
				}
				// Relative to the end of the instruction.
				stmt.Code[link.Index] = ip - (stmt.Ip + uint64(len(stmt.Code)))
			case bytecode.OPERAND_FUNC:
				index, ok := asm.functionIndex(link.Name)
				if !ok {
					err = ErrFunctionMissing(link.Name)
					break
				}
				stmt.Code[link.Index] = uint64(index)
			}
			if err != nil {
				lineno = stmt.LineNo
				line = strings.Join(stmt.Words, " ")
				return
			}
		}
	}

	lst = &Listing{
		Statements: slices.Clone(asm.Statement),
		Functions:  slices.Clone(asm.Function),
		EntryIndex: uint32(entry),
	}

	return
}

// functionIndex finds a declared function by name.
func (asm *Assembler) functionIndex(name string) (index int, ok bool) {
	index = slices.IndexFunc(asm.Function, func(fn Function) bool { return fn.Name == name })
	ok = index >= 0
	return
}

// parseFunc handles .func NAME REGS RET [ARGS...]
func (asm *Assembler) parseFunc(words []string, lineno int) (err error) {
	if len(words) < 3 || !reName.MatchString(words[0]) {
		err = ErrFunctionSyntax
		return
	}

	if _, ok := asm.functionIndex(words[0]); ok {
		err = ErrFunctionDuplicate
		return
	}

	regs, err := asm.valueOf(words[1])
	if err != nil {
		return
	}
	if regs > bytecode.FRAME_REGISTERS || regs < uint64(len(words)-3) {
		err = bytecode.ErrRegisterCount
		return
	}

	fn := Function{
		Name:   words[0],
		LineNo: lineno,
		FunctionEntry: bytecode.FunctionEntry{
			Entry:     asm.currentIp(),
			Registers: uint16(regs),
		},
	}

	if words[2] != "void" {
		fn.Return, err = asm.kindOf(words[2])
		if err != nil {
			return
		}
		fn.HasReturn = true
	}

	for _, word := range words[3:] {
		var kind bytecode.Kind
		kind, err = asm.kindOf(word)
		if err != nil {
			return
		}
		fn.ArgKinds = append(fn.ArgKinds, kind)
	}

	asm.Function = append(asm.Function, fn)

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	switch words[0] {
	case ".func":
		return asm.parseFunc(words[1:], lineno)
	case ".flags":
		if len(words) != 2 {
			return ErrOpcodeMissing
		}
		if len(asm.Function) == 0 {
			return ErrFunctionOutside
		}
		var flags uint64
		flags, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if flags > math.MaxUint32 {
			return ErrParseNumber(words[1])
		}
		asm.Function[len(asm.Function)-1].Flags = uint32(flags)
		return
	case ".entry":
		if len(words) != 2 || !reName.MatchString(words[1]) {
			return ErrEntrySyntax
		}
		if asm.entry != "" {
			return ErrEntryDuplicate
		}
		asm.entry = words[1]
		return
	}

	stmt := Statement{LineNo: lineno, Ip: asm.currentIp(), Words: words}

	defer func() {
		if err == nil && len(stmt.Code) > 0 {
			asm.Statement = append(asm.Statement, stmt)
		}
	}()

	if words[0] == ".word" {
		if len(words) < 2 {
			err = ErrOpcodeMissing
			return
		}
		for _, word := range words[1:] {
			var value uint64
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			stmt.Code = append(stmt.Code, value)
		}
		return
	}

	op, ok := bytecode.Lookup(words[0])
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	args := words[1:]
	sig := op.Signature()
	if len(args) < len(sig) {
		err = ErrOpcodeMissing
		return
	}
	if len(args) > len(sig) {
		err = ErrOpcodeExtraArgs
		return
	}

	stmt.Code = make([]uint64, 1, 1+len(sig))
	stmt.Code[0] = uint64(op)
	for n, operand := range sig {
		word := args[n]
		var value uint64
		switch operand {
		case bytecode.OPERAND_REG:
			value, err = asm.register(word)
		case bytecode.OPERAND_DST:
			if word == "-" {
				value = bytecode.NO_REGISTER
			} else {
				value, err = asm.register(word)
			}
		case bytecode.OPERAND_IMM:
			switch op {
			case bytecode.OP_LOAD_F32:
				value, err = asm.floatOf(word, 32)
			case bytecode.OP_LOAD_F64:
				value, err = asm.floatOf(word, 64)
			default:
				value, err = asm.valueOf(word)
			}
		case bytecode.OPERAND_KIND:
			var kind bytecode.Kind
			kind, err = asm.kindOf(word)
			value = uint64(kind)
		case bytecode.OPERAND_OFFSET, bytecode.OPERAND_FUNC:
			value, err = asm.valueOf(word)
			if err != nil && reName.MatchString(word) {
				err = nil
				stmt.Link = append(stmt.Link, Link{Index: 1 + n, Kind: operand, Name: word})
			}
		}
		if err != nil {
			return
		}
		stmt.Code = append(stmt.Code, value)
	}

	return
}
