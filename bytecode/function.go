package bytecode

import (
	"encoding/binary"
	"math"
)

// FunctionEntry is the static description of a function in the function table.
type FunctionEntry struct {
	Entry     uint64 // Code word offset of the first instruction.
	Registers uint16 // Declared register count.
	ArgKinds  []Kind // Kinds of the arguments, passed in r0..rN-1.
	Return    Kind   // Kind of the value returned in r0, if HasReturn.
	HasReturn bool
	Flags     uint32 // Reserved.
}

// Args returns the argument count.
func (fe *FunctionEntry) Args() int {
	return len(fe.ArgKinds)
}

// AppendBinary appends the encoded function table entry to b.
func (fe *FunctionEntry) AppendBinary(b []byte) ([]byte, error) {
	if len(fe.ArgKinds) > math.MaxUint16 {
		return b, ErrArgCount
	}

	b = binary.LittleEndian.AppendUint64(b, fe.Entry)
	b = binary.LittleEndian.AppendUint16(b, fe.Registers)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(fe.ArgKinds)))
	for _, kind := range fe.ArgKinds {
		b = append(b, byte(kind))
	}
	if fe.HasReturn {
		b = append(b, byte(fe.Return))
	} else {
		b = append(b, RETURN_NONE)
	}
	b = binary.LittleEndian.AppendUint32(b, fe.Flags)

	return b, nil
}

// readFunction decodes a function table entry.
func readFunction(r *reader) (fe FunctionEntry, err error) {
	if fe.Entry, err = r.u64("function entry"); err != nil {
		return
	}
	if fe.Registers, err = r.u16("function registers"); err != nil {
		return
	}
	args, err := r.u16("function argument count")
	if err != nil {
		return
	}
	at := r.offset
	kinds, err := r.take("function argument kinds", int(args))
	if err != nil {
		return
	}
	for n, kind := range kinds {
		if !Kind(kind).Valid() {
			err = &ErrLoad{Offset: at + n, Field: "function argument kinds", Err: ErrKindInvalid}
			return
		}
		fe.ArgKinds = append(fe.ArgKinds, Kind(kind))
	}
	ret, err := r.u8("function return kind")
	if err != nil {
		return
	}
	if Kind(ret).Valid() {
		fe.Return = Kind(ret)
		fe.HasReturn = true
	}
	fe.Flags, err = r.u32("function flags")

	return
}
