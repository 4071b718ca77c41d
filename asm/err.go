package asm

import (
	"errors"

	"github.com/ezrec/dvm/translate"
)

var f = translate.From

var (
	// Directive errors
	ErrEquateSyntax      = errors.New(f(".equ syntax"))
	ErrEquateDuplicate   = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate    = errors.New(f("label duplicated"))
	ErrMacroSyntax       = errors.New(f(".macro syntax"))
	ErrMacroNesting      = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate    = errors.New(f(".macro duplicated"))
	ErrMacroLonely       = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm   = errors.New(f(".endm without .macro"))
	ErrFunctionSyntax    = errors.New(f(".func syntax"))
	ErrFunctionDuplicate = errors.New(f(".func duplicated"))
	ErrFunctionOutside   = errors.New(f(".flags outside of .func"))
	ErrEntrySyntax       = errors.New(f(".entry syntax"))
	ErrEntryDuplicate    = errors.New(f(".entry duplicated"))

	// Instruction errors
	ErrOpcodeExtraArgs = errors.New(f("excessive arguments"))
	ErrOpcodeMissing   = errors.New(f("operand missing"))
	ErrOpcodeInvalid   = errors.New(f("opcode invalid"))
	ErrRegisterInvalid = errors.New(f("register invalid"))
	ErrKindInvalid     = errors.New(f("kind invalid"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrFunctionMissing string

func (ef ErrFunctionMissing) Error() string {
	return f("function %v missing", string(ef))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err *ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err *ErrMacro) Unwrap() error {
	return err.Err
}
