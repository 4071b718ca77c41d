package bytecode

import (
	"iter"
	"maps"

	"github.com/ezrec/dvm/internal"
)

var _bytecode_defines = map[string]string{
	"FRAME_REGISTERS": internal.Define(FRAME_REGISTERS),
	"NO_REGISTER":     internal.Define(NO_REGISTER),
	"KIND_I32":        internal.Define(KIND_I32),
	"KIND_I64":        internal.Define(KIND_I64),
	"KIND_F32":        internal.Define(KIND_F32),
	"KIND_F64":        internal.Define(KIND_F64),
	"KIND_PTR":        internal.Define(KIND_PTR),
	"RETURN_NONE":     internal.Define(RETURN_NONE),
}

// Defines for the program format.
func Defines() iter.Seq2[string, string] {
	return maps.All(_bytecode_defines)
}
