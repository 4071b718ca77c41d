package vm

import (
	"github.com/ezrec/dvm/bytecode"
)

// Frame is the activation record of one function call.
type Frame struct {
	Function  *bytecode.FunctionEntry // Function being executed.
	ReturnIp  uint64                  // Caller address to resume at.
	ReturnDst uint64                  // Caller register for the result, or NO_REGISTER.

	Register [bytecode.FRAME_REGISTERS]bytecode.Register
}

// Ref returns the register at index.
func (fr *Frame) Ref(index uint64) (reg *bytecode.Register, err error) {
	if index >= bytecode.FRAME_REGISTERS {
		err = ErrRegister
		return
	}

	reg = &fr.Register[index]
	return
}

// Get returns a copy of the register at index.
func (fr *Frame) Get(index uint64) (reg bytecode.Register, err error) {
	ref, err := fr.Ref(index)
	if err != nil {
		return
	}

	reg = *ref
	return
}
