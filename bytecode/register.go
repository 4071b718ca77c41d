package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the value kind tag of a register.
type Kind uint8

//go:generate go tool stringer -linecomment -type=Kind
const (
	KIND_I32 = Kind(0) // i32
	KIND_I64 = Kind(1) // i64
	KIND_F32 = Kind(2) // f32
	KIND_F64 = Kind(3) // f64
	KIND_PTR = Kind(4) // ptr
)

// FRAME_REGISTERS is the register capacity of every call frame.
const FRAME_REGISTERS = 300

// RETURN_NONE is the encoded return kind of a function with no return value.
// Any return kind byte above KIND_PTR decodes as "no return value".
const RETURN_NONE = byte(0xff)

var kindNames = map[string]Kind{
	"i32": KIND_I32,
	"i64": KIND_I64,
	"f32": KIND_F32,
	"f64": KIND_F64,
	"ptr": KIND_PTR,
}

// ParseKind parses a kind name.
func ParseKind(name string) (kind Kind, ok bool) {
	kind, ok = kindNames[name]
	return
}

// Valid returns true if the kind is one of the defined kinds.
func (kind Kind) Valid() bool {
	return kind <= KIND_PTR
}

// Wide returns true for kinds whose payload uses all 64 bits.
func (kind Kind) Wide() bool {
	return kind == KIND_I64 || kind == KIND_F64 || kind == KIND_PTR
}

// Register is a tagged 64-bit value. The payload is only meaningful when
// interpreted according to Kind; 32-bit kinds are zero-extended.
type Register struct {
	Bits uint64
	Kind Kind
}

// I32 makes an i32 register.
func I32(value int32) Register {
	return Register{Bits: uint64(uint32(value)), Kind: KIND_I32}
}

// I64 makes an i64 register.
func I64(value int64) Register {
	return Register{Bits: uint64(value), Kind: KIND_I64}
}

// F32 makes an f32 register.
func F32(value float32) Register {
	return Register{Bits: uint64(math.Float32bits(value)), Kind: KIND_F32}
}

// F64 makes an f64 register.
func F64(value float64) Register {
	return Register{Bits: math.Float64bits(value), Kind: KIND_F64}
}

// Ptr makes a pointer register to a byte offset within a heap object. The
// slot is the object's heap handle.
func Ptr(slot uint32, offset uint32) Register {
	return Register{Bits: (uint64(slot) << 32) | uint64(offset), Kind: KIND_PTR}
}

// Tagged makes a register of the given kind from a raw payload, truncating
// the payload of 32-bit kinds.
func Tagged(bits uint64, kind Kind) Register {
	if !kind.Wide() {
		bits = uint64(uint32(bits))
	}
	return Register{Bits: bits, Kind: kind}
}

// Zero is true when the payload is zero, regardless of kind.
func (reg Register) Zero() bool {
	return reg.Bits == 0
}

func (reg Register) AsI32() int32 {
	return int32(uint32(reg.Bits))
}

func (reg Register) AsI64() int64 {
	return int64(reg.Bits)
}

func (reg Register) AsF32() float32 {
	return math.Float32frombits(uint32(reg.Bits))
}

func (reg Register) AsF64() float64 {
	return math.Float64frombits(reg.Bits)
}

// Slot is the heap handle of a pointer.
func (reg Register) Slot() uint32 {
	return uint32(reg.Bits >> 32)
}

// Offset is the byte offset of a pointer within its heap object.
func (reg Register) Offset() uint32 {
	return uint32(reg.Bits)
}

// String returns the value as interpreted by its kind, followed by the kind.
func (reg Register) String() string {
	var val string
	switch reg.Kind {
	case KIND_I32:
		val = strconv.FormatInt(int64(reg.AsI32()), 10)
	case KIND_I64:
		val = strconv.FormatInt(reg.AsI64(), 10)
	case KIND_F32:
		val = strconv.FormatFloat(float64(reg.AsF32()), 'g', -1, 32)
	case KIND_F64:
		val = strconv.FormatFloat(reg.AsF64(), 'g', -1, 64)
	case KIND_PTR:
		val = fmt.Sprintf("%d+%d", reg.Slot(), reg.Offset())
	default:
		val = fmt.Sprintf("%#x", reg.Bits)
	}

	return val + " " + reg.Kind.String()
}
