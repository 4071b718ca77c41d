package vm

import (
	"errors"
	"fmt"

	"github.com/ezrec/dvm/bytecode"
	"github.com/ezrec/dvm/translate"
)

var f = translate.From

var (
	// Execution faults
	ErrOpcodeInvalid = errors.New(f("opcode invalid"))
	ErrRegister      = errors.New(f("register out of range"))
	ErrAddress       = errors.New(f("address out of range"))
	ErrDivideByZero  = errors.New(f("divide by zero"))
	ErrKindMismatch  = errors.New(f("kind mismatch"))
	ErrFunctionIndex = errors.New(f("function index out of range"))
	ErrStackOverflow = errors.New(f("call stack overflow"))
	ErrStackEmpty    = errors.New(f("call stack empty"))
	ErrCastRange     = errors.New(f("cast out of range"))
	ErrObjectSize    = errors.New(f("object size out of range"))
)

// Fault is an execution fault. The VM halts on the first fault.
type Fault struct {
	Ip     uint64          // Address of the faulting opcode word.
	Opcode bytecode.Opcode // Faulting opcode, if it decoded.
	Word   uint64          // Raw opcode word.
	Err    error
}

func (err *Fault) Error() string {
	var op string
	if _, ok := bytecode.Decode(err.Word); ok {
		op = err.Opcode.String()
	} else {
		op = fmt.Sprintf("%#x", err.Word)
	}
	return f("fault at %04x %v: %v", err.Ip, op, err.Err)
}

func (err *Fault) Unwrap() error {
	return err.Err
}
